package diffile

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/PlakarLabs/tilediff/hashing"
	"github.com/PlakarLabs/tilediff/objects"
)

const (
	MAGIC   = "TDIF"
	VERSION = uint16(1)

	// fixed width of every checksum in a diff file
	ChecksumSize = 32

	// longest identity encodable in a u16 length prefix
	MaxIdentityLength = 0xffff
)

type Kind uint8

const (
	KindAdd    Kind = 1
	KindModify Kind = 2
	KindRemove Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindModify:
		return "modify"
	case KindRemove:
		return "remove"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) Valid() bool {
	return k == KindAdd || k == KindModify || k == KindRemove
}

// HasPayload reports whether records of this kind carry a payload.
func (k Kind) HasPayload() bool {
	return k == KindAdd || k == KindModify
}

type Header struct {
	Parent string `msgpack:"parent" json:"parent"`
	Child  string `msgpack:"child" json:"child"`
}

type Operation struct {
	Kind     Kind
	Coord    objects.Coord
	Payload  []byte
	Checksum objects.Checksum
}

func NewAdd(coord objects.Coord, payload []byte) Operation {
	return Operation{Kind: KindAdd, Coord: coord, Payload: payload, Checksum: hashing.Checksum(payload)}
}

func NewModify(coord objects.Coord, payload []byte) Operation {
	return Operation{Kind: KindModify, Coord: coord, Payload: payload, Checksum: hashing.Checksum(payload)}
}

func NewRemove(coord objects.Coord) Operation {
	return Operation{Kind: KindRemove, Coord: coord}
}

// Verify checks the payload against its recorded checksum.
func (op *Operation) Verify() error {
	if !op.Kind.HasPayload() {
		return nil
	}
	if hashing.Checksum(op.Payload) != op.Checksum {
		return objects.NewChunkError(objects.ErrIntegrity, op.Coord, "payload checksum mismatch")
	}
	return nil
}

type Diff struct {
	Header Header
	Ops    []Operation
}

func New(parent string, child string) *Diff {
	return &Diff{Header: Header{Parent: parent, Child: child}, Ops: make([]Operation, 0)}
}

// Sort puts operations in canonical coordinate order.
func (d *Diff) Sort() {
	slices.SortFunc(d.Ops, func(a, b Operation) int {
		return a.Coord.Compare(b.Coord)
	})
}

func (d *Diff) Empty() bool {
	return len(d.Ops) == 0
}

// Validate checks what Encode relies on: identities fit their length
// prefix, kinds are known and coordinates are strictly increasing.
func (d *Diff) Validate() error {
	if len(d.Header.Parent) > MaxIdentityLength {
		return fmt.Errorf("parent identity too long (%d bytes)", len(d.Header.Parent))
	}
	if len(d.Header.Child) > MaxIdentityLength {
		return fmt.Errorf("child identity too long (%d bytes)", len(d.Header.Child))
	}
	for i := range d.Ops {
		op := &d.Ops[i]
		if !op.Kind.Valid() {
			return objects.NewChunkError(objects.ErrInconsistentOperation, op.Coord, "unknown operation %s", op.Kind)
		}
		if i > 0 && !d.Ops[i-1].Coord.Less(op.Coord) {
			return objects.NewChunkError(objects.ErrInconsistentOperation, op.Coord, "operations not strictly ordered")
		}
	}
	return nil
}

// Equal compares two diffs operation by operation.
func (d *Diff) Equal(o *Diff) bool {
	if d.Header != o.Header || len(d.Ops) != len(o.Ops) {
		return false
	}
	for i := range d.Ops {
		a, b := &d.Ops[i], &o.Ops[i]
		if a.Kind != b.Kind || a.Coord != b.Coord || !bytes.Equal(a.Payload, b.Payload) {
			return false
		}
	}
	return true
}
