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

package diff

import (
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands"
	"github.com/PlakarLabs/tilediff/cmd/tilediff/utils"
	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diff"
	"github.com/PlakarLabs/tilediff/diffile"
)

func init() {
	subcommands.Register("diff", cmd_diff)
}

func cmd_diff(ctx *context.Context, _ *config.ConfigAPI, args []string) int {
	var opt_parent string
	var opt_child string
	var opt_summary bool

	flags := flag.NewFlagSet("diff", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s [OPTIONS] PARENT CHILD OUT\n", flags.Name())
		fmt.Fprintf(flags.Output(), "\nOPTIONS:\n")
		flags.PrintDefaults()
	}
	flags.StringVar(&opt_parent, "parent-id", "", "parent identity, derived from its location by default")
	flags.StringVar(&opt_child, "child-id", "", "child identity, derived from its location by default")
	flags.BoolVar(&opt_summary, "summary", false, "print a summary of the operations")
	flags.Parse(args)

	if flags.NArg() != 3 {
		flags.Usage()
		return 1
	}

	parent, err := utils.OpenSource(ctx, flags.Arg(0), opt_parent)
	if err != nil {
		ctx.Logger.Error("%s: %s", flags.Arg(0), err)
		return 1
	}
	defer parent.Close()

	child, err := utils.OpenSource(ctx, flags.Arg(1), opt_child)
	if err != nil {
		ctx.Logger.Error("%s: %s", flags.Arg(1), err)
		return 1
	}
	defer child.Close()

	// diff files are append only, fail before computing anything
	pathname := utils.DiffPathname(flags.Arg(2), child.Identity())
	if _, err := os.Stat(pathname); err == nil {
		ctx.Logger.Error("%s: %s", pathname, fs.ErrExist)
		return 1
	}

	d, err := diff.Compute(ctx, parent, child)
	if err != nil {
		ctx.Logger.Error("diff: %s", err)
		return 1
	}

	if err := diffile.WriteFile(pathname, d); err != nil {
		ctx.Logger.Error("%s: %s", pathname, err)
		return 1
	}

	summary := diff.Summarize(d)
	ctx.Logger.Info("%s: %s", pathname, summary)
	if opt_summary {
		ctx.Logger.Stdout("%s", summary)
	}
	return 0
}
