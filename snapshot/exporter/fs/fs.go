package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/exporter"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
)

type FSExporter struct {
	rootDir    string
	stagingDir string
	matcher    *importer.ChunkMatcher
}

func init() {
	exporter.Register("fs", NewFSExporter)
}

func NewFSExporter(location string, opts *exporter.Options) (exporter.ExporterBackend, error) {
	location = filepath.Clean(strings.TrimPrefix(location, "fs://"))

	if entries, err := os.ReadDir(location); err == nil {
		if len(entries) != 0 {
			return nil, fmt.Errorf("%s: destination exists and is not empty", location)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(location), 0700); err != nil {
		return nil, err
	}
	stagingDir := exporter.TemporaryName(location)
	if err := os.Mkdir(stagingDir, 0700); err != nil {
		return nil, err
	}

	return &FSExporter{
		rootDir:    location,
		stagingDir: stagingDir,
		matcher:    importer.NewChunkMatcher(opts.Extension),
	}, nil
}

func (p *FSExporter) StoreChunk(entry objects.Entry) error {
	pathname := filepath.Join(p.stagingDir, filepath.FromSlash(p.matcher.Pathname(entry.Coord)))
	if err := os.MkdirAll(filepath.Dir(pathname), 0700); err != nil {
		return err
	}
	return os.WriteFile(pathname, entry.Data, 0644)
}

func (p *FSExporter) Commit() error {
	// an empty destination directory may be replaced
	if err := os.Remove(p.rootDir); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(p.stagingDir, p.rootDir)
}

func (p *FSExporter) Abort() error {
	return os.RemoveAll(p.stagingDir)
}
