/*
 * Copyright (c) 2021 Gilles Chehade <gilles@poolp.org>
 *
 * Permission to use, copy, modify, and distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package filter

import (
	"flag"
	"fmt"

	"github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands"
	"github.com/PlakarLabs/tilediff/cmd/tilediff/utils"
	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/filter"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/retrieve"
)

func init() {
	subcommands.Register("filter", cmd_filter)
}

func cmd_filter(ctx *context.Context, _ *config.ConfigAPI, args []string) int {
	var opt_chunk string
	var opt_identity string

	flags := flag.NewFlagSet("filter", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s [OPTIONS] SNAPSHOT OUT\n", flags.Name())
		fmt.Fprintf(flags.Output(), "\nOPTIONS:\n")
		flags.PrintDefaults()
	}
	flags.StringVar(&opt_chunk, "chunk", "", "chunk selection to keep, every chunk by default")
	flags.StringVar(&opt_identity, "id", "", "snapshot identity, derived from its location by default")
	flags.Parse(args)

	if flags.NArg() != 2 {
		flags.Usage()
		return 1
	}

	var keep func(objects.Coord) bool
	if opt_chunk != "" {
		selection, err := retrieve.ParseSelection(opt_chunk)
		if err != nil {
			ctx.Logger.Error("%s", err)
			return 1
		}
		keep = selection.Contains
	}

	src, err := utils.OpenSource(ctx, flags.Arg(0), opt_identity)
	if err != nil {
		ctx.Logger.Error("%s: %s", flags.Arg(0), err)
		return 1
	}
	defer src.Close()

	sink, err := utils.OpenSink(ctx, flags.Arg(1))
	if err != nil {
		ctx.Logger.Error("%s: %s", flags.Arg(1), err)
		return 1
	}

	stats, err := filter.Filter(ctx, src, keep, func(entry objects.Entry) error {
		return sink.StoreChunk(entry)
	})
	if err != nil {
		sink.Abort()
		ctx.Logger.Error("filter: %s", err)
		return 1
	}
	if err := sink.Commit(); err != nil {
		ctx.Logger.Error("%s: %s", flags.Arg(1), err)
		return 1
	}

	ctx.Logger.Info("%s: %s", src.Identity(), stats)
	return 0
}
