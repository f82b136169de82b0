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

package compare

import (
	"flag"
	"fmt"

	"github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands"
	"github.com/PlakarLabs/tilediff/cmd/tilediff/utils"
	"github.com/PlakarLabs/tilediff/compare"
	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/dustin/go-humanize"
)

func init() {
	subcommands.Register("compare", cmd_compare)
}

func cmd_compare(ctx *context.Context, _ *config.ConfigAPI, args []string) int {
	var opt_verbose bool

	flags := flag.NewFlagSet("compare", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s [OPTIONS] LEFT RIGHT\n", flags.Name())
		fmt.Fprintf(flags.Output(), "\nOPTIONS:\n")
		flags.PrintDefaults()
	}
	flags.BoolVar(&opt_verbose, "verbose", false, "also report identical chunks")
	flags.Parse(args)

	if flags.NArg() != 2 {
		flags.Usage()
		return 1
	}

	left, err := utils.OpenSource(ctx, flags.Arg(0), "")
	if err != nil {
		ctx.Logger.Error("%s: %s", flags.Arg(0), err)
		return 1
	}
	defer left.Close()

	right, err := utils.OpenSource(ctx, flags.Arg(1), "")
	if err != nil {
		ctx.Logger.Error("%s: %s", flags.Arg(1), err)
		return 1
	}
	defer right.Close()

	done := eventsProcessorStdio(ctx, opt_verbose)
	report, err := compare.Compare(ctx, left, right)
	ctx.Events().Close()
	<-done
	if err != nil {
		ctx.Logger.Error("compare: %s", err)
		return 1
	}

	if report.Equal() {
		ctx.Logger.Stdout("%s %s and %s are identical (%s chunks)", checkMark, report.Left, report.Right, humanize.Comma(int64(report.Identical)))
		return 0
	}

	ctx.Logger.Stdout("%s %s and %s differ: %d identical, %d differing, %d missing in %s, %d missing in %s",
		crossMark, report.Left, report.Right,
		report.Identical,
		report.Count(compare.ContentDiffers),
		report.Count(compare.MissingInLeft), report.Left,
		report.Count(compare.MissingInRight), report.Right)
	for _, discrepancy := range report.Discrepancies {
		ctx.Logger.Stdout("%s: %s", discrepancy.Coord, discrepancy.Status)
	}
	return 1
}
