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

package version

import (
	"flag"
	"fmt"
	"runtime"
	"strings"

	"github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands"
	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diffile"
	"github.com/PlakarLabs/tilediff/hashing"
	"github.com/PlakarLabs/tilediff/snapshot/exporter"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
	"golang.org/x/mod/semver"
)

const VERSION = "v0.1.0"

func init() {
	subcommands.Register("version", cmd_version)
}

// details lists what a build can read and write, diff files it produces
// are only readable by builds sharing the same format version
func details(ctx *context.Context) []string {
	return []string{
		fmt.Sprintf("diff format: %s v%d", diffile.MAGIC, diffile.VERSION),
		fmt.Sprintf("fingerprints: %s (using %s)", strings.Join(hashing.Algorithms(), ", "), ctx.GetFingerprint()),
		fmt.Sprintf("importers: %s", strings.Join(importer.Backends(), ", ")),
		fmt.Sprintf("exporters: %s", strings.Join(exporter.Backends(), ", ")),
		fmt.Sprintf("runtime: %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
}

func cmd_version(ctx *context.Context, _ *config.ConfigAPI, args []string) int {
	var opt_verbose bool

	flags := flag.NewFlagSet("version", flag.ExitOnError)
	flags.BoolVar(&opt_verbose, "v", false, "also display the diff format and supported backends")
	flags.Parse(args)

	if !semver.IsValid(VERSION) {
		ctx.Logger.Error("invalid version string: %s", VERSION)
		return 1
	}

	ctx.Logger.Stdout("tilediff %s", semver.Canonical(VERSION))
	if opt_verbose {
		for _, line := range details(ctx) {
			ctx.Logger.Stdout("  %s", line)
		}
	}
	return 0
}
