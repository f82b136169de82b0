package diffile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/PlakarLabs/tilediff/hashing"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/profiler"
)

// Location records where an operation's payload lives in a diff file.
// Offset and Length are zero for removals.
type Location struct {
	Kind     Kind             `msgpack:"kind"`
	Coord    objects.Coord    `msgpack:"coord"`
	Offset   int64            `msgpack:"offset"`
	Length   uint64           `msgpack:"length"`
	Checksum objects.Checksum `msgpack:"checksum"`
}

// Index is the payload-free view of a diff file.
type Index struct {
	Header    Header     `msgpack:"header"`
	Size      int64      `msgpack:"size"`
	Locations []Location `msgpack:"locations"`
}

// Find returns the location of the operation on coord, if any.
func (idx *Index) Find(coord objects.Coord) (Location, bool) {
	lo, hi := 0, len(idx.Locations)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if idx.Locations[mid].Coord.Less(coord) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(idx.Locations) && idx.Locations[lo].Coord == coord {
		return idx.Locations[lo], true
	}
	return Location{}, false
}

// seekingReader buffers small reads and seeks over payloads.
type seekingReader struct {
	rs     io.ReadSeeker
	br     *bufio.Reader
	offset int64
}

func (s *seekingReader) Read(p []byte) (int, error) {
	n, err := s.br.Read(p)
	s.offset += int64(n)
	return n, err
}

func (s *seekingReader) skip(n int64) error {
	if buffered := int64(s.br.Buffered()); n <= buffered {
		_, err := s.br.Discard(int(n))
		s.offset += n
		return err
	}
	buffered := int64(s.br.Buffered())
	if _, err := s.br.Discard(int(buffered)); err != nil {
		return err
	}
	if _, err := s.rs.Seek(n-buffered, io.SeekCurrent); err != nil {
		return err
	}
	s.br.Reset(s.rs)
	s.offset += n
	return nil
}

// Scan reads the header and operation framing of a diff file, seeking
// past every payload. The whole-file checksum is not verified.
func Scan(rs io.ReadSeeker) (*Index, error) {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("diffile.Scan", time.Since(t0))
	}()

	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	sr := &seekingReader{rs: rs, br: bufio.NewReader(rs)}
	dec := &decoder{rd: sr}

	hdr, count, err := dec.header()
	if err != nil {
		return nil, err
	}

	// every operation takes at least a 9 byte record
	if remaining := size - sr.offset - ChecksumSize; remaining < 0 || count > uint64(remaining)/9 {
		return nil, fmt.Errorf("%w: operation count %d exceeds file size", objects.ErrIntegrity, count)
	}

	idx := &Index{Header: hdr, Size: size, Locations: make([]Location, 0, count)}
	var previous *objects.Coord
	for i := uint64(0); i < count; i++ {
		kind, coord, err := dec.record(previous)
		if err != nil {
			return nil, err
		}
		previous = &coord

		loc := Location{Kind: kind, Coord: coord}
		if kind.HasPayload() {
			length, err := dec.uint64()
			if err != nil {
				return nil, err
			}
			loc.Offset = sr.offset
			loc.Length = length
			if length > uint64(size) || loc.Offset+int64(length)+2*ChecksumSize > size {
				return nil, truncated(io.ErrUnexpectedEOF)
			}
			if err := sr.skip(int64(length)); err != nil {
				return nil, err
			}
			checksum, err := dec.read(ChecksumSize)
			if err != nil {
				return nil, err
			}
			copy(loc.Checksum[:], checksum)
		}
		idx.Locations = append(idx.Locations, loc)
	}

	if sr.offset+ChecksumSize < size {
		return nil, fmt.Errorf("%w: trailing bytes after checksum", objects.ErrIntegrity)
	}
	if sr.offset+ChecksumSize > size {
		return nil, truncated(io.ErrUnexpectedEOF)
	}
	return idx, nil
}

// ScanFile is Scan over a file on disk.
func ScanFile(pathname string) (*Index, error) {
	fp, err := os.Open(pathname)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return Scan(fp)
}

// ReadPayload loads the payload described by loc, optionally checking it
// against its recorded checksum.
func ReadPayload(r io.ReaderAt, loc Location, verify bool) ([]byte, error) {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("diffile.ReadPayload", time.Since(t0))
	}()

	if !loc.Kind.HasPayload() {
		return nil, fmt.Errorf("%s operation on %s has no payload", loc.Kind, loc.Coord)
	}
	data := make([]byte, loc.Length)
	if _, err := r.ReadAt(data, loc.Offset); err != nil {
		if err == io.EOF {
			return nil, objects.NewChunkError(objects.ErrIntegrity, loc.Coord, "payload truncated")
		}
		return nil, err
	}
	if verify && hashing.Checksum(data) != loc.Checksum {
		return nil, objects.NewChunkError(objects.ErrIntegrity, loc.Coord, "payload checksum mismatch")
	}
	return data, nil
}
