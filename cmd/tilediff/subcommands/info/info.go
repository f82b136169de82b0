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

package info

import (
	"flag"
	"fmt"
	"os"

	"github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands"
	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diff"
	"github.com/PlakarLabs/tilediff/diffile"
	"github.com/dustin/go-humanize"
)

func init() {
	subcommands.Register("info", cmd_info)
}

func cmd_info(ctx *context.Context, _ *config.ConfigAPI, args []string) int {
	var opt_operations bool

	flags := flag.NewFlagSet("info", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s [OPTIONS] DIFF...\n", flags.Name())
		fmt.Fprintf(flags.Output(), "\nOPTIONS:\n")
		flags.PrintDefaults()
	}
	flags.BoolVar(&opt_operations, "operations", false, "list every operation")
	flags.Parse(args)

	if flags.NArg() == 0 {
		flags.Usage()
		return 1
	}

	for _, pathname := range flags.Args() {
		idx, err := diffile.ScanFile(pathname)
		if err != nil {
			ctx.Logger.Error("%s: %s", pathname, err)
			return 1
		}

		summary := diff.SummarizeIndex(idx)
		fmt.Fprintf(os.Stdout, "File: %s\n", pathname)
		fmt.Fprintf(os.Stdout, "Size: %s (%s bytes)\n", humanize.Bytes(uint64(idx.Size)), humanize.Comma(idx.Size))
		fmt.Fprintf(os.Stdout, "Parent: %s\n", idx.Header.Parent)
		fmt.Fprintf(os.Stdout, "Child: %s\n", idx.Header.Child)
		fmt.Fprintf(os.Stdout, "Operations: %d\n", summary.Operations())
		fmt.Fprintf(os.Stdout, " - add: %d\n", summary.Adds)
		fmt.Fprintf(os.Stdout, " - modify: %d\n", summary.Modifies)
		fmt.Fprintf(os.Stdout, " - remove: %d\n", summary.Removes)
		fmt.Fprintf(os.Stdout, "Payload: %s\n", humanize.Bytes(summary.PayloadBytes))

		if opt_operations {
			for _, loc := range idx.Locations {
				if loc.Kind.HasPayload() {
					fmt.Fprintf(os.Stdout, "%s %s %s %s\n", loc.Kind, loc.Coord, humanize.Bytes(loc.Length), loc.Checksum)
				} else {
					fmt.Fprintf(os.Stdout, "%s %s\n", loc.Kind, loc.Coord)
				}
			}
		}
		if flags.NArg() > 1 {
			fmt.Fprintln(os.Stdout)
		}
	}
	return 0
}
