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

package chain

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands"
	"github.com/PlakarLabs/tilediff/cmd/tilediff/utils"
	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diff"
	"github.com/dustin/go-humanize"
)

func init() {
	subcommands.Register("chain", cmd_chain)
}

func cmd_chain(ctx *context.Context, cfg *config.ConfigAPI, args []string) int {
	var opt_long bool

	flags := flag.NewFlagSet("chain", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s [OPTIONS] DIFF-DIR BASE-ID\n", flags.Name())
		fmt.Fprintf(flags.Output(), "       %s [OPTIONS] NAME\n", flags.Name())
		fmt.Fprintf(flags.Output(), "\nOPTIONS:\n")
		flags.PrintDefaults()
	}
	flags.BoolVar(&opt_long, "l", false, "display a summary of each diff file")
	flags.Parse(args)

	var dirs []string
	var base string
	switch flags.NArg() {
	case 1:
		dir, err := cfg.GetChainParameter(flags.Arg(0), "dir")
		if err != nil {
			ctx.Logger.Error("%s", err)
			return 1
		}
		dirs = utils.SplitDirs(dir)
		if base, err = cfg.GetChainParameter(flags.Arg(0), "base"); err != nil {
			ctx.Logger.Error("%s", err)
			return 1
		}
	case 2:
		dirs, base = utils.SplitDirs(flags.Arg(0)), flags.Arg(1)
	default:
		flags.Usage()
		return 1
	}

	c, release, err := utils.OpenChain(ctx, dirs, base)
	if err != nil {
		ctx.Logger.Error("%s: %s", strings.Join(dirs, ","), err)
		return 1
	}
	defer release()

	fmt.Fprintf(os.Stdout, "%s (base)\n", c.Base())
	for _, link := range c.Links() {
		if !opt_long {
			fmt.Fprintf(os.Stdout, "%s\n", link.Identity())
			continue
		}
		summary := diff.SummarizeIndex(link.Index)
		fmt.Fprintf(os.Stdout, "%s %8s %s", link.Identity(), humanize.Bytes(uint64(link.Index.Size)), summary)
		if len(c.Dirs()) > 1 {
			fmt.Fprintf(os.Stdout, " %s", filepath.Dir(link.Pathname))
		}
		fmt.Fprintf(os.Stdout, "\n")
	}
	return 0
}
