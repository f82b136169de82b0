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

package retrieve

import (
	"errors"
	"flag"
	"fmt"

	"github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands"
	"github.com/PlakarLabs/tilediff/cmd/tilediff/utils"
	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/retrieve"
	"github.com/PlakarLabs/tilediff/stitch"
)

func init() {
	subcommands.Register("retrieve", cmd_retrieve)
}

func cmd_retrieve(ctx *context.Context, cfg *config.ConfigAPI, args []string) int {
	var opt_chunk string
	var opt_diffDirs utils.DirsFlag
	var opt_configDir string
	var opt_base string
	var opt_baseIdentity string
	var opt_chain string
	var opt_out string
	var opt_at string
	var opt_all bool
	var opt_stitch bool
	var opt_onlyStitched bool
	var opt_blank string
	var opt_disableChecksum bool

	flags := flag.NewFlagSet("retrieve", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s -chunk SELECTION [OPTIONS]\n", flags.Name())
		fmt.Fprintf(flags.Output(), "\nOPTIONS:\n")
		flags.PrintDefaults()
	}
	flags.StringVar(&opt_chunk, "chunk", "", "chunk selection, e.g. 1717-837 or 0-0..3-3,7-7")
	flags.Var(&opt_diffDirs, "diff-dir", "directory holding diff files, may be repeated")
	flags.StringVar(&opt_base, "base-snapshot", "", "location of the base snapshot")
	flags.StringVar(&opt_baseIdentity, "base-id", "", "base identity, derived from its location by default")
	flags.StringVar(&opt_chain, "chain", "", "named chain from the configuration")
	flags.StringVar(&opt_out, "out", "", "output directory")
	flags.StringVar(&opt_at, "at", "", "identity to retrieve, latest by default")
	flags.BoolVar(&opt_all, "all", false, "retrieve every version along the chain")
	flags.BoolVar(&opt_stitch, "stitch", false, "also write a stitched image per version")
	flags.BoolVar(&opt_onlyStitched, "only-stitched", false, "only write stitched images")
	flags.StringVar(&opt_blank, "blank", "", "fill color for missing tiles, transparent by default")
	flags.BoolVar(&opt_disableChecksum, "disable-csum", false, "skip payload checksum verification")
	flags.Parse(args)

	if opt_chain != "" {
		for key, value := range map[string]*string{"dir": &opt_configDir, "source": &opt_base, "base": &opt_baseIdentity} {
			if *value != "" {
				continue
			}
			parameter, err := cfg.GetChainParameter(opt_chain, key)
			if err != nil && !errors.Is(err, config.ErrParameterNotFound) {
				ctx.Logger.Error("chain %s: %s", opt_chain, err)
				return 1
			}
			*value = parameter
		}
	}

	if len(opt_diffDirs) == 0 {
		opt_diffDirs = utils.SplitDirs(opt_configDir)
	}

	if opt_chunk == "" || len(opt_diffDirs) == 0 || opt_base == "" || opt_out == "" || flags.NArg() != 0 {
		flags.Usage()
		return 1
	}

	selection, err := retrieve.ParseSelection(opt_chunk)
	if err != nil {
		ctx.Logger.Error("%s", err)
		return 1
	}

	blank := stitch.Blank{}
	if opt_blank != "" {
		blank.Color, err = utils.ParseColor(opt_blank)
		if err != nil {
			ctx.Logger.Error("%s", err)
			return 1
		}
	}

	base, err := utils.OpenSource(ctx, opt_base, opt_baseIdentity)
	if err != nil {
		ctx.Logger.Error("%s: %s", opt_base, err)
		return 1
	}
	defer base.Close()

	c, release, err := utils.OpenChain(ctx, opt_diffDirs, base.Identity())
	if err != nil {
		ctx.Logger.Error("%s: %s", opt_diffDirs.String(), err)
		return 1
	}
	defer release()

	output, err := retrieve.NewOutput(ctx, opt_out, selection, retrieve.OutputOptions{
		Extension:    ctx.GetChunkExtension(),
		Stitch:       opt_stitch,
		OnlyStitched: opt_onlyStitched,
		Blank:        blank,
		TileSize:     ctx.GetTileSize(),
	})
	if err != nil {
		ctx.Logger.Error("%s: %s", opt_out, err)
		return 1
	}

	retriever := retrieve.New(c, base, retrieve.Options{
		Target:          opt_at,
		History:         opt_all,
		DisableChecksum: opt_disableChecksum,
	})
	result, err := retriever.Run(ctx, selection, func(version *retrieve.Version) error {
		ctx.Logger.Info("%s: %d chunks, %d changed, %d removed", version.Identity, len(version.Chunks), len(version.Changed), len(version.Removed))
		return output.Write(version)
	})
	if werr := output.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		ctx.Logger.Error("retrieve: %s", err)
		return 1
	}

	for _, missing := range result.NotFound {
		ctx.Logger.Warn("%s", missing)
	}
	if opt_all && result.Versions == 0 {
		ctx.Logger.Warn("no diff up to %s changes the selection, retrieve it with -at %s", result.Target, c.Base())
	}
	ctx.Logger.Info("%d versions retrieved up to %s", result.Versions, result.Target)
	if len(result.NotFound) == len(selection) {
		ctx.Logger.Error("retrieve: %s", objects.ErrChunkNotFound)
		return 1
	}
	return 0
}
