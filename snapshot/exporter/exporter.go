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

package exporter

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PlakarLabs/tilediff/logging"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/profiler"
	"github.com/google/uuid"
)

// ExporterBackend receives the entries of a snapshot being materialized. Nothing
// is visible at the destination until Commit succeeds; Abort discards
// whatever was stored.
type ExporterBackend interface {
	StoreChunk(entry objects.Entry) error
	Commit() error
	Abort() error
}

type Options struct {
	Extension string
	Logger    *logging.Logger
}

type Exporter struct {
	location string
	logger   *logging.Logger
	backend  ExporterBackend
	stored   int
	done     bool
}

var muBackends sync.Mutex
var backends map[string]func(location string, opts *Options) (ExporterBackend, error) = make(map[string]func(location string, opts *Options) (ExporterBackend, error))

func Register(name string, backend func(location string, opts *Options) (ExporterBackend, error)) {
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

func BackendName(location string) (string, error) {
	if idx := strings.Index(location, "://"); idx != -1 {
		scheme := location[:idx]
		switch scheme {
		case "s3", "fs", "tar":
			return scheme, nil
		}
		return "", fmt.Errorf("unsupported exporter protocol %q", scheme)
	}
	for _, ext := range []string{".tar", ".tar.gz", ".tgz", ".tar.lz4"} {
		if strings.HasSuffix(location, ext) {
			return "tar", nil
		}
	}
	return "fs", nil
}

func NewExporter(location string, opts *Options) (*Exporter, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Extension == "" {
		opts.Extension = "png"
	}
	opts.Extension = strings.TrimPrefix(opts.Extension, ".")
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
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
	return &Exporter{location: location, logger: opts.Logger, backend: backendInstance}, nil
}

// TemporaryName derives a unique sibling name for staging output.
func TemporaryName(name string) string {
	return fmt.Sprintf("%s.tmp-%s", name, uuid.NewString())
}

func (exporter *Exporter) Location() string {
	return exporter.location
}

func (exporter *Exporter) StoreChunk(entry objects.Entry) error {
	if exporter.done {
		return fmt.Errorf("%s: exporter already finalized", exporter.location)
	}
	if err := exporter.backend.StoreChunk(entry); err != nil {
		return err
	}
	exporter.stored++
	return nil
}

func (exporter *Exporter) Commit() error {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("snapshot.exporter.Commit", time.Since(t0))
		exporter.logger.Trace("exporter", "%s: Commit(): %d chunks in %s", exporter.location, exporter.stored, time.Since(t0))
	}()

	if exporter.done {
		return fmt.Errorf("%s: exporter already finalized", exporter.location)
	}
	exporter.done = true
	if err := exporter.backend.Commit(); err != nil {
		_ = exporter.backend.Abort()
		return err
	}
	return nil
}

// Abort is a no-op once the exporter was committed.
func (exporter *Exporter) Abort() error {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("snapshot.exporter.Abort", time.Since(t0))
		exporter.logger.Trace("exporter", "%s: Abort(): %s", exporter.location, time.Since(t0))
	}()

	if exporter.done {
		return nil
	}
	exporter.done = true
	return exporter.backend.Abort()
}
