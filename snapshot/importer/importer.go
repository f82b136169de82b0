/*
 * Copyright (c) 2023 Gilles Chehade <gilles@poolp.org>
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

package importer

import (
	"fmt"
	"iter"
	"log"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PlakarLabs/tilediff/logging"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/profiler"
	"github.com/gobwas/glob"
)

// Source yields the entries of one snapshot. Entries may be iterated more
// than once; each iteration restarts from the beginning of the container.
type Source interface {
	Identity() string
	Entries() iter.Seq2[objects.Entry, error]
	Close() error
}

// Lookuper is implemented by sources offering random access by coordinate.
type Lookuper interface {
	Lookup(coord objects.Coord) ([]byte, bool, error)
}

type Options struct {
	Identity       string
	Extension      string
	MaxConcurrency int
	Logger         *logging.Logger

	// chunk paths matching any of these, relative to the container root,
	// are not part of the snapshot
	Excludes []glob.Glob
}

func (o *Options) normalize() {
	if o.Extension == "" {
		o.Extension = "png"
	}
	o.Extension = strings.TrimPrefix(o.Extension, ".")
	if o.MaxConcurrency < 1 {
		o.MaxConcurrency = 1
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
}

type Importer struct {
	location string
	logger   *logging.Logger
	backend  Source
}

var muBackends sync.Mutex
var backends map[string]func(location string, opts *Options) (Source, error) = make(map[string]func(location string, opts *Options) (Source, error))

func Register(name string, backend func(location string, opts *Options) (Source, error)) {
	muBackends.Lock()
	defer muBackends.Unlock()

	if _, ok := backends[name]; ok {
		log.Fatalf("backend '%s' registered twice", name)
	}
	backends[name] = backend
}

func Backends() []string {
	muBackends.Lock()
	defer muBackends.Unlock()

	ret := make([]string, 0)
	for backendName := range backends {
		ret = append(ret, backendName)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i] < ret[j]
	})
	return ret
}

// BackendName picks the backend serving a location.
func BackendName(location string) (string, error) {
	if idx := strings.Index(location, "://"); idx != -1 {
		scheme := location[:idx]
		switch scheme {
		case "s3", "fs", "tar":
			return scheme, nil
		}
		return "", fmt.Errorf("unsupported importer protocol %q", scheme)
	}
	for _, ext := range []string{".tar", ".tar.gz", ".tgz", ".tar.lz4"} {
		if strings.HasSuffix(location, ext) {
			return "tar", nil
		}
	}
	return "fs", nil
}

func NewImporter(location string, opts *Options) (*Importer, error) {
	if opts == nil {
		opts = &Options{}
	}
	opts.normalize()
	if opts.Identity == "" {
		opts.Identity = objects.ExtractIdentity(location)
	}

	backendName, err := BackendName(location)
	if err != nil {
		return nil, err
	}

	muBackends.Lock()
	backend, exists := backends[backendName]
	muBackends.Unlock()
	if !exists {
		return nil, fmt.Errorf("backend '%s' does not exist", backendName)
	}

	backendInstance, err := backend(location, opts)
	if err != nil {
		return nil, err
	}
	return &Importer{location: location, logger: opts.Logger, backend: backendInstance}, nil
}

func (importer *Importer) Location() string {
	return importer.location
}

func (importer *Importer) Identity() string {
	return importer.backend.Identity()
}

func (importer *Importer) Entries() iter.Seq2[objects.Entry, error] {
	return func(yield func(objects.Entry, error) bool) {
		t0 := time.Now()
		count := 0
		defer func() {
			profiler.RecordEvent("snapshot.importer.Entries", time.Since(t0))
			importer.logger.Trace("importer", "%s: Entries(): %d entries in %s", importer.location, count, time.Since(t0))
		}()

		for entry, err := range importer.backend.Entries() {
			if err == nil {
				count++
			}
			if !yield(entry, err) {
				return
			}
		}
	}
}

// Lookuper returns the random access interface of the backend, if any.
func (importer *Importer) Lookuper() (Lookuper, bool) {
	lookuper, ok := importer.backend.(Lookuper)
	return lookuper, ok
}

func (importer *Importer) Close() error {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("snapshot.importer.Close", time.Since(t0))
		importer.logger.Trace("importer", "%s: Close(): %s", importer.location, time.Since(t0))
	}()

	return importer.backend.Close()
}

// AsLookuper exposes random access on a source when it has one.
func AsLookuper(src Source) (Lookuper, bool) {
	if importer, ok := src.(*Importer); ok {
		return importer.Lookuper()
	}
	lookuper, ok := src.(Lookuper)
	return lookuper, ok
}

// ChunkMatcher recognizes chunk paths of the form [root/]<x>/<y>.<ext>
// that no exclusion pattern matches.
type ChunkMatcher struct {
	extension string
	excludes  []glob.Glob
	pattern   *regexp.Regexp
}

func NewChunkMatcher(extension string, excludes ...glob.Glob) *ChunkMatcher {
	extension = strings.TrimPrefix(extension, ".")
	return &ChunkMatcher{
		extension: extension,
		excludes:  excludes,
		pattern:   regexp.MustCompile(`(?:^|/)(\d+)/(\d+)\.` + regexp.QuoteMeta(extension) + `$`),
	}
}

// CompileExcludes compiles exclusion patterns, '/' separated, where "*"
// stays within a path component and "**" crosses them.
func CompileExcludes(patterns []string) ([]glob.Glob, error) {
	excludes := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude %q: %w", pattern, err)
		}
		excludes = append(excludes, compiled)
	}
	return excludes, nil
}

func (m *ChunkMatcher) excluded(pathname string) bool {
	for _, exclude := range m.excludes {
		if exclude.Match(pathname) {
			return true
		}
	}
	return false
}

func (m *ChunkMatcher) Extension() string {
	return m.extension
}

// Match returns the coordinate encoded in a slash separated path.
func (m *ChunkMatcher) Match(pathname string) (objects.Coord, bool) {
	atoms := m.pattern.FindStringSubmatch(pathname)
	if atoms == nil || m.excluded(pathname) {
		return objects.Coord{}, false
	}
	x, err := strconv.ParseUint(atoms[1], 10, 32)
	if err != nil {
		return objects.Coord{}, false
	}
	y, err := strconv.ParseUint(atoms[2], 10, 32)
	if err != nil {
		return objects.Coord{}, false
	}
	return objects.Coord{X: uint32(x), Y: uint32(y)}, true
}

// Pathname is the relative path a chunk is stored at.
func (m *ChunkMatcher) Pathname(coord objects.Coord) string {
	return path.Join(strconv.FormatUint(uint64(coord.X), 10), strconv.FormatUint(uint64(coord.Y), 10)+"."+m.extension)
}
