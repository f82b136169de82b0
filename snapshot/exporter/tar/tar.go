package tar

import (
	"archive/tar"
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PlakarLabs/tilediff/compression"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/exporter"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
)

// members carry a fixed modification time so that equal snapshots
// produce equal tarballs
var epoch = time.Unix(0, 0).UTC()

type TarExporter struct {
	pathname    string
	stagingPath string
	matcher     *importer.ChunkMatcher

	fp         *os.File
	buffered   *bufio.Writer
	compressor io.WriteCloser
	tw         *tar.Writer
}

func init() {
	exporter.Register("tar", NewTarExporter)
}

func NewTarExporter(location string, opts *exporter.Options) (exporter.ExporterBackend, error) {
	location = filepath.Clean(strings.TrimPrefix(location, "tar://"))

	if err := os.MkdirAll(filepath.Dir(location), 0700); err != nil {
		return nil, err
	}
	stagingPath := exporter.TemporaryName(location)
	fp, err := os.OpenFile(stagingPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}

	p := &TarExporter{
		pathname:    location,
		stagingPath: stagingPath,
		matcher:     importer.NewChunkMatcher(opts.Extension),
		fp:          fp,
		buffered:    bufio.NewWriter(fp),
	}

	var w io.Writer = p.buffered
	if method := compression.MethodFromName(location); method != "" {
		p.compressor, err = compression.NewWriter(method, p.buffered)
		if err != nil {
			fp.Close()
			os.Remove(stagingPath)
			return nil, err
		}
		w = p.compressor
	}
	p.tw = tar.NewWriter(w)
	return p, nil
}

func (p *TarExporter) StoreChunk(entry objects.Entry) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     p.matcher.Pathname(entry.Coord),
		Mode:     0644,
		Size:     int64(len(entry.Data)),
		ModTime:  epoch,
		Format:   tar.FormatPAX,
	}
	if err := p.tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := p.tw.Write(entry.Data)
	return err
}

func (p *TarExporter) Commit() error {
	if err := p.tw.Close(); err != nil {
		return err
	}
	if p.compressor != nil {
		if err := p.compressor.Close(); err != nil {
			return err
		}
	}
	if err := p.buffered.Flush(); err != nil {
		return err
	}
	if err := p.fp.Sync(); err != nil {
		return err
	}
	if err := p.fp.Close(); err != nil {
		return err
	}
	return os.Rename(p.stagingPath, p.pathname)
}

func (p *TarExporter) Abort() error {
	p.fp.Close()
	if err := os.Remove(p.stagingPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
