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

package utils

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PlakarLabs/tilediff/caching"
	"github.com/PlakarLabs/tilediff/chain"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diffile"
	"github.com/PlakarLabs/tilediff/snapshot/exporter"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
)

// OpenSource opens a snapshot container, identity may be empty to derive
// it from the location.
func OpenSource(ctx *context.Context, location string, identity string) (*importer.Importer, error) {
	return importer.NewImporter(location, &importer.Options{
		Identity:       identity,
		Extension:      ctx.GetChunkExtension(),
		MaxConcurrency: ctx.GetMaxConcurrency(),
		Logger:         ctx.Logger,
		Excludes:       ctx.GetExcludes(),
	})
}

func OpenSink(ctx *context.Context, location string) (*exporter.Exporter, error) {
	return exporter.NewExporter(location, &exporter.Options{
		Extension: ctx.GetChunkExtension(),
		Logger:    ctx.Logger,
	})
}

// OpenChain resolves the chain spread over dirs, going through the
// location cache unless it is disabled. Cache entries of diff files gone
// from dirs are pruned. The returned function releases both.
func OpenChain(ctx *context.Context, dirs []string, base string) (*chain.Chain, func(), error) {
	opts := &chain.Options{}

	var manager *caching.Manager
	if ctx.CacheEnabled() {
		manager = caching.NewManager(ctx.GetCacheDir())
		if cache, err := manager.Locations(); err != nil {
			ctx.Logger.Warn("location cache unavailable: %s", err)
		} else {
			opts.Cache = cache
			for _, dir := range dirs {
				if n, err := cache.Prune(dir); err != nil {
					ctx.Logger.Warn("%s: location cache: %s", dir, err)
				} else if n != 0 {
					ctx.Logger.Trace("cache", "%s: pruned %d vanished diff files", dir, n)
				}
			}
		}
	}

	c, err := chain.OpenDirs(ctx, dirs, base, opts)
	if err != nil {
		if manager != nil {
			manager.Close()
		}
		return nil, nil, err
	}
	return c, func() {
		c.Close()
		if manager != nil {
			manager.Close()
		}
	}, nil
}

// SplitDirs expands a configured list of directories, separated like
// PATH entries.
func SplitDirs(value string) []string {
	ret := make([]string, 0)
	for _, dir := range filepath.SplitList(value) {
		if dir != "" {
			ret = append(ret, dir)
		}
	}
	return ret
}

// DirsFlag collects a repeatable directory option.
type DirsFlag []string

func (d *DirsFlag) String() string {
	return strings.Join(*d, string(filepath.ListSeparator))
}

func (d *DirsFlag) Set(value string) error {
	*d = append(*d, SplitDirs(value)...)
	return nil
}

// DiffPathname is out itself, or the canonical diff file name inside it
// when out is an existing directory.
func DiffPathname(out string, child string) string {
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, diffile.FileName(child))
	}
	return out
}

// ParseColor accepts "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{
		R: uint8(value >> 24),
		G: uint8(value >> 16),
		B: uint8(value >> 8),
		A: uint8(value),
	}, nil
}
