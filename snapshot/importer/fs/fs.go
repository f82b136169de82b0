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

package fs

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
	"github.com/iafan/cwalk"
)

type FSImporter struct {
	rootDir  string
	identity string
	matcher  *importer.ChunkMatcher

	muIndex sync.Mutex
	index   map[objects.Coord]string
}

func init() {
	importer.Register("fs", NewFSImporter)
}

func NewFSImporter(location string, opts *importer.Options) (importer.Source, error) {
	location = strings.TrimPrefix(location, "fs://")

	info, err := os.Stat(location)
	if err != nil {
		return nil, objects.SourceError(location, err)
	}
	if !info.IsDir() {
		return nil, objects.SourceError(location, errors.New("not a directory"))
	}

	return &FSImporter{
		rootDir:  filepath.Clean(location),
		identity: opts.Identity,
		matcher:  importer.NewChunkMatcher(opts.Extension, opts.Excludes...),
	}, nil
}

func (p *FSImporter) Identity() string {
	return p.identity
}

type scanResult struct {
	pathname string
	coord    objects.Coord
	err      error
}

// the walk runs concurrently, entries are read by the consumer one by one
func (p *FSImporter) walk(done <-chan struct{}) <-chan scanResult {
	results := make(chan scanResult, 1000)

	go func() {
		defer close(results)

		err := cwalk.Walk(p.rootDir, func(pathname string, info fs.FileInfo, err error) error {
			select {
			case <-done:
				return nil
			default:
			}

			if err != nil {
				results <- scanResult{pathname: pathname, err: err}
				return nil
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			coord, ok := p.matcher.Match(filepath.ToSlash(pathname))
			if !ok {
				return nil
			}
			select {
			case results <- scanResult{pathname: filepath.Join(p.rootDir, pathname), coord: coord}:
			case <-done:
			}
			return nil
		})
		if err != nil {
			select {
			case results <- scanResult{pathname: p.rootDir, err: err}:
			case <-done:
			}
		}
	}()

	return results
}

func (p *FSImporter) Entries() iter.Seq2[objects.Entry, error] {
	return func(yield func(objects.Entry, error) bool) {
		done := make(chan struct{})
		results := p.walk(done)
		defer func() {
			close(done)
			for range results {
			}
		}()

		for result := range results {
			if result.err != nil {
				if !yield(objects.Entry{}, objects.SourceError(result.pathname, result.err)) {
					return
				}
				continue
			}

			data, err := os.ReadFile(result.pathname)
			if err != nil {
				if !yield(objects.Entry{}, objects.SourceError(result.pathname, err)) {
					return
				}
				continue
			}
			if !yield(objects.NewEntry(result.coord, data), nil) {
				return
			}
		}
	}
}

// buildIndex walks the tree once and records where each chunk lives, so
// lookups accept the same layouts as Entries.
func (p *FSImporter) buildIndex() error {
	done := make(chan struct{})
	defer close(done)

	index := make(map[objects.Coord]string)
	var firstErr error
	for result := range p.walk(done) {
		if firstErr != nil {
			continue
		}
		if result.err != nil {
			firstErr = objects.SourceError(result.pathname, result.err)
			continue
		}
		if previous, exists := index[result.coord]; exists {
			firstErr = objects.NewChunkError(objects.ErrDuplicateChunk, result.coord, "%s and %s", previous, result.pathname)
			continue
		}
		index[result.coord] = result.pathname
	}
	if firstErr != nil {
		return firstErr
	}
	p.index = index
	return nil
}

func (p *FSImporter) Lookup(coord objects.Coord) ([]byte, bool, error) {
	p.muIndex.Lock()
	if p.index == nil {
		if err := p.buildIndex(); err != nil {
			p.muIndex.Unlock()
			return nil, false, err
		}
	}
	pathname, exists := p.index[coord]
	p.muIndex.Unlock()
	if !exists {
		return nil, false, nil
	}

	data, err := os.ReadFile(pathname)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, objects.SourceError(pathname, err)
	}
	return data, true, nil
}

func (p *FSImporter) Close() error {
	return nil
}
