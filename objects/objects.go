/*
 * Copyright (c) 2024 Gilles Chehade <gilles@poolp.org>
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

package objects

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Checksum [32]byte

func (m Checksum) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%0x", m[:]))
}

func (m Checksum) String() string {
	return fmt.Sprintf("%0x", m[:])
}

// Coord addresses a chunk in the grid. Coordinates are ordered by X, then Y.
type Coord struct {
	X uint32 `msgpack:"x" json:"x"`
	Y uint32 `msgpack:"y" json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("%d-%d", c.X, c.Y)
}

func (c Coord) Less(o Coord) bool {
	return c.Compare(o) < 0
}

func (c Coord) Compare(o Coord) int {
	switch {
	case c.X < o.X:
		return -1
	case c.X > o.X:
		return 1
	case c.Y < o.Y:
		return -1
	case c.Y > o.Y:
		return 1
	}
	return 0
}

// ParseCoord parses the "x-y" form produced by Coord.String.
func ParseCoord(s string) (Coord, error) {
	atoms := strings.Split(s, "-")
	if len(atoms) != 2 {
		return Coord{}, fmt.Errorf("malformed coordinate %q", s)
	}
	x, err := strconv.ParseUint(atoms[0], 10, 32)
	if err != nil {
		return Coord{}, fmt.Errorf("malformed coordinate %q: %w", s, err)
	}
	y, err := strconv.ParseUint(atoms[1], 10, 32)
	if err != nil {
		return Coord{}, fmt.Errorf("malformed coordinate %q: %w", s, err)
	}
	return Coord{X: uint32(x), Y: uint32(y)}, nil
}

// Entry is a chunk as stored in a snapshot: its coordinate and the
// encoded image, treated as an opaque blob.
type Entry struct {
	Coord Coord
	Data  []byte
}

func NewEntry(coord Coord, data []byte) Entry {
	return Entry{Coord: coord, Data: data}
}
