package tar

import (
	"archive/tar"
	"errors"
	"io"
	"iter"
	"os"
	"strings"
	"sync"

	"github.com/PlakarLabs/tilediff/compression"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
)

type member struct {
	offset int64
	size   int64
}

type TarImporter struct {
	pathname    string
	compression string
	identity    string
	matcher     *importer.ChunkMatcher
}

// SeekableTarImporter serves uncompressed archives, whose members can be
// read in place once their offsets are known.
type SeekableTarImporter struct {
	*TarImporter

	muIndex sync.Mutex
	fp      *os.File
	index   map[objects.Coord]member
}

func init() {
	importer.Register("tar", NewTarImporter)
}

func NewTarImporter(location string, opts *importer.Options) (importer.Source, error) {
	location = strings.TrimPrefix(location, "tar://")

	info, err := os.Stat(location)
	if err != nil {
		return nil, objects.SourceError(location, err)
	}
	if !info.Mode().IsRegular() {
		return nil, objects.SourceError(location, errors.New("not a regular file"))
	}

	p := &TarImporter{
		pathname:    location,
		compression: compression.MethodFromName(location),
		identity:    opts.Identity,
		matcher:     importer.NewChunkMatcher(opts.Extension, opts.Excludes...),
	}
	if p.compression != "" {
		// compressed streams cannot seek, callers fall back to one filtered scan
		return p, nil
	}
	return &SeekableTarImporter{TarImporter: p}, nil
}

func (p *TarImporter) Identity() string {
	return p.identity
}

func (p *TarImporter) open() (*os.File, io.Reader, error) {
	fp, err := os.Open(p.pathname)
	if err != nil {
		return nil, nil, err
	}
	if p.compression == "" {
		return fp, fp, nil
	}
	rd, err := compression.InflateStream(p.compression, fp)
	if err != nil {
		fp.Close()
		return nil, nil, err
	}
	return fp, rd, nil
}

func isChunkMember(hdr *tar.Header) bool {
	return hdr.Typeflag == tar.TypeReg
}

func (p *TarImporter) Entries() iter.Seq2[objects.Entry, error] {
	return func(yield func(objects.Entry, error) bool) {
		fp, rd, err := p.open()
		if err != nil {
			yield(objects.Entry{}, objects.SourceError(p.pathname, err))
			return
		}
		defer fp.Close()

		tr := tar.NewReader(rd)
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				// the stream cannot be resynchronized past a bad header
				yield(objects.Entry{}, objects.SourceError(p.pathname, err))
				return
			}
			if !isChunkMember(hdr) {
				continue
			}
			coord, ok := p.matcher.Match(strings.TrimPrefix(hdr.Name, "./"))
			if !ok {
				continue
			}

			data, err := io.ReadAll(tr)
			if err != nil {
				yield(objects.Entry{}, objects.SourceError(p.pathname+":"+hdr.Name, err))
				return
			}
			if !yield(objects.NewEntry(coord, data), nil) {
				return
			}
		}
	}
}

type countingReader struct {
	rd     io.Reader
	offset int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.rd.Read(p)
	c.offset += int64(n)
	return n, err
}

// buildIndex records the data offset of every chunk member. The tar
// reader consumes whole blocks, so the running count after Next is the
// first byte of the member data.
func (p *SeekableTarImporter) buildIndex() error {
	fp, err := os.Open(p.pathname)
	if err != nil {
		return err
	}

	counter := &countingReader{rd: fp}
	tr := tar.NewReader(counter)
	index := make(map[objects.Coord]member)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fp.Close()
			return err
		}
		if !isChunkMember(hdr) {
			continue
		}
		coord, ok := p.matcher.Match(strings.TrimPrefix(hdr.Name, "./"))
		if !ok {
			continue
		}
		if _, exists := index[coord]; exists {
			fp.Close()
			return objects.NewChunkError(objects.ErrDuplicateChunk, coord, "%s", hdr.Name)
		}
		index[coord] = member{offset: counter.offset, size: hdr.Size}
	}

	p.fp = fp
	p.index = index
	return nil
}

func (p *SeekableTarImporter) Lookup(coord objects.Coord) ([]byte, bool, error) {
	p.muIndex.Lock()
	defer p.muIndex.Unlock()

	if p.index == nil {
		if err := p.buildIndex(); err != nil {
			return nil, false, objects.SourceError(p.pathname, err)
		}
	}

	m, exists := p.index[coord]
	if !exists {
		return nil, false, nil
	}
	data := make([]byte, m.size)
	if _, err := p.fp.ReadAt(data, m.offset); err != nil {
		return nil, false, objects.SourceError(p.pathname, err)
	}
	return data, true, nil
}

func (p *TarImporter) Close() error {
	return nil
}

func (p *SeekableTarImporter) Close() error {
	p.muIndex.Lock()
	defer p.muIndex.Unlock()

	if p.fp != nil {
		err := p.fp.Close()
		p.fp = nil
		p.index = nil
		return err
	}
	return nil
}
