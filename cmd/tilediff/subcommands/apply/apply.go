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

package apply

import (
	"flag"
	"fmt"

	"github.com/PlakarLabs/tilediff/apply"
	"github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands"
	"github.com/PlakarLabs/tilediff/cmd/tilediff/utils"
	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diffile"
	"github.com/PlakarLabs/tilediff/objects"
)

func init() {
	subcommands.Register("apply", cmd_apply)
}

func cmd_apply(ctx *context.Context, _ *config.ConfigAPI, args []string) int {
	var opt_disableChecksum bool
	var opt_parent string

	flags := flag.NewFlagSet("apply", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s [OPTIONS] PARENT DIFF OUT\n", flags.Name())
		fmt.Fprintf(flags.Output(), "\nOPTIONS:\n")
		flags.PrintDefaults()
	}
	flags.BoolVar(&opt_disableChecksum, "disable-csum", false, "skip checksum validation, corruption then goes undetected")
	flags.StringVar(&opt_parent, "parent-id", "", "parent identity, derived from its location by default")
	flags.Parse(args)

	if flags.NArg() != 3 {
		flags.Usage()
		return 1
	}

	d, err := diffile.ReadFile(flags.Arg(1), &diffile.DecodeOptions{
		DisableChecksum: opt_disableChecksum,
		Logger:          ctx.Logger,
	})
	if err != nil {
		ctx.Logger.Error("%s: %s", flags.Arg(1), err)
		return 1
	}

	base, err := utils.OpenSource(ctx, flags.Arg(0), opt_parent)
	if err != nil {
		ctx.Logger.Error("%s: %s", flags.Arg(0), err)
		return 1
	}
	defer base.Close()

	sink, err := utils.OpenSink(ctx, flags.Arg(2))
	if err != nil {
		ctx.Logger.Error("%s: %s", flags.Arg(2), err)
		return 1
	}

	stats, err := apply.Apply(ctx, base, d, &apply.Options{DisableChecksum: opt_disableChecksum}, func(entry objects.Entry) error {
		return sink.StoreChunk(entry)
	})
	if err != nil {
		sink.Abort()
		ctx.Logger.Error("apply: %s", err)
		return 1
	}
	if err := sink.Commit(); err != nil {
		ctx.Logger.Error("%s: %s", flags.Arg(2), err)
		return 1
	}

	ctx.Logger.Info("%s: %s", d.Header.Child, stats)
	return 0
}
