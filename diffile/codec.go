package diffile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/PlakarLabs/tilediff/hashing"
	"github.com/PlakarLabs/tilediff/logging"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/profiler"
	"github.com/zeebo/blake3"
)

type DecodeOptions struct {
	// DisableChecksum skips payload and whole-file checksum comparisons.
	// Framing and ordering are still validated.
	DisableChecksum bool
	Logger          *logging.Logger
}

// Encode serializes d. Equal diffs always produce identical bytes.
func Encode(w io.Writer, d *Diff) error {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("diffile.Encode", time.Since(t0))
	}()

	if err := d.Validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	hasher := blake3.New()
	mw := io.MultiWriter(bw, hasher)

	var scratch [8]byte

	if _, err := io.WriteString(mw, MAGIC); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(scratch[:2], VERSION)
	if _, err := mw.Write(scratch[:2]); err != nil {
		return err
	}
	for _, identity := range []string{d.Header.Parent, d.Header.Child} {
		binary.LittleEndian.PutUint16(scratch[:2], uint16(len(identity)))
		if _, err := mw.Write(scratch[:2]); err != nil {
			return err
		}
		if _, err := io.WriteString(mw, identity); err != nil {
			return err
		}
	}
	binary.LittleEndian.PutUint64(scratch[:8], uint64(len(d.Ops)))
	if _, err := mw.Write(scratch[:8]); err != nil {
		return err
	}

	for i := range d.Ops {
		op := &d.Ops[i]

		var record [9]byte
		record[0] = byte(op.Kind)
		binary.LittleEndian.PutUint32(record[1:5], op.Coord.X)
		binary.LittleEndian.PutUint32(record[5:9], op.Coord.Y)
		if _, err := mw.Write(record[:]); err != nil {
			return err
		}
		if !op.Kind.HasPayload() {
			continue
		}

		binary.LittleEndian.PutUint64(scratch[:8], uint64(len(op.Payload)))
		if _, err := mw.Write(scratch[:8]); err != nil {
			return err
		}
		if _, err := mw.Write(op.Payload); err != nil {
			return err
		}
		checksum := hashing.Checksum(op.Payload)
		if _, err := mw.Write(checksum[:]); err != nil {
			return err
		}
	}

	if _, err := bw.Write(hasher.Sum(nil)); err != nil {
		return err
	}
	return bw.Flush()
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated diff file", objects.ErrIntegrity)
	}
	return err
}

type decoder struct {
	rd io.Reader
}

func (dec *decoder) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(dec.rd, buf); err != nil {
		return nil, truncated(err)
	}
	return buf, nil
}

func (dec *decoder) uint16() (uint16, error) {
	buf, err := dec.read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (dec *decoder) uint64() (uint64, error) {
	buf, err := dec.read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func (dec *decoder) identity() (string, error) {
	length, err := dec.uint16()
	if err != nil {
		return "", err
	}
	buf, err := dec.read(int(length))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// payload never trusts the recorded length for allocation
func (dec *decoder) payload(length uint64) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(dec.rd, int64(length)))
	if err != nil {
		return nil, err
	}
	if uint64(len(buf)) != length {
		return nil, truncated(io.ErrUnexpectedEOF)
	}
	return buf, nil
}

func (dec *decoder) header() (Header, uint64, error) {
	magic, err := dec.read(len(MAGIC))
	if err != nil {
		return Header{}, 0, err
	}
	if string(magic) != MAGIC {
		return Header{}, 0, fmt.Errorf("%w: bad magic %q", objects.ErrIntegrity, magic)
	}
	version, err := dec.uint16()
	if err != nil {
		return Header{}, 0, err
	}
	if version != VERSION {
		return Header{}, 0, fmt.Errorf("%w: unsupported format version %d", objects.ErrIntegrity, version)
	}

	var hdr Header
	if hdr.Parent, err = dec.identity(); err != nil {
		return Header{}, 0, err
	}
	if hdr.Child, err = dec.identity(); err != nil {
		return Header{}, 0, err
	}
	count, err := dec.uint64()
	if err != nil {
		return Header{}, 0, err
	}
	return hdr, count, nil
}

func (dec *decoder) record(previous *objects.Coord) (Kind, objects.Coord, error) {
	buf, err := dec.read(9)
	if err != nil {
		return 0, objects.Coord{}, err
	}
	kind := Kind(buf[0])
	coord := objects.Coord{
		X: binary.LittleEndian.Uint32(buf[1:5]),
		Y: binary.LittleEndian.Uint32(buf[5:9]),
	}
	if !kind.Valid() {
		return 0, coord, objects.NewChunkError(objects.ErrIntegrity, coord, "unknown operation kind %d", buf[0])
	}
	if previous != nil && !previous.Less(coord) {
		return 0, coord, objects.NewChunkError(objects.ErrIntegrity, coord, "operations not strictly ordered")
	}
	return kind, coord, nil
}

// Decode parses and validates a complete diff file. Any failure, checksum
// mismatch or truncation included, yields no diff at all.
func Decode(r io.Reader, opts *DecodeOptions) (*Diff, error) {
	t0 := time.Now()
	if opts == nil {
		opts = &DecodeOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	defer func() {
		profiler.RecordEvent("diffile.Decode", time.Since(t0))
		logger.Trace("diffile", "Decode(): %s", time.Since(t0))
	}()

	br := bufio.NewReader(r)
	hasher := blake3.New()
	dec := &decoder{rd: io.TeeReader(br, hasher)}

	hdr, count, err := dec.header()
	if err != nil {
		return nil, err
	}

	capacity := count
	if capacity > 1<<16 {
		capacity = 1 << 16
	}
	d := &Diff{Header: hdr, Ops: make([]Operation, 0, capacity)}

	var previous *objects.Coord
	for i := uint64(0); i < count; i++ {
		kind, coord, err := dec.record(previous)
		if err != nil {
			return nil, err
		}
		previous = &coord

		op := Operation{Kind: kind, Coord: coord}
		if kind.HasPayload() {
			length, err := dec.uint64()
			if err != nil {
				return nil, err
			}
			if op.Payload, err = dec.payload(length); err != nil {
				return nil, err
			}
			checksum, err := dec.read(ChecksumSize)
			if err != nil {
				return nil, err
			}
			copy(op.Checksum[:], checksum)
			if !opts.DisableChecksum {
				if err := op.Verify(); err != nil {
					return nil, err
				}
			}
		}
		d.Ops = append(d.Ops, op)
	}

	computed := hasher.Sum(nil)
	trailer := make([]byte, ChecksumSize)
	if _, err := io.ReadFull(br, trailer); err != nil {
		return nil, truncated(err)
	}
	if !opts.DisableChecksum && !bytes.Equal(trailer, computed) {
		return nil, fmt.Errorf("%w: whole-file checksum mismatch", objects.ErrIntegrity)
	}
	if _, err := br.ReadByte(); err != io.EOF {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: trailing bytes after checksum", objects.ErrIntegrity)
	}

	logger.Trace("diffile", "%s -> %s: decoded %d operations", hdr.Parent, hdr.Child, len(d.Ops))
	return d, nil
}
