package importer

import (
	"iter"

	"github.com/PlakarLabs/tilediff/objects"
)

// MemorySource serves entries held in memory, in insertion order.
type MemorySource struct {
	identity string
	entries  []objects.Entry
	byCoord  map[objects.Coord]int
}

func NewMemorySource(identity string, entries []objects.Entry) *MemorySource {
	byCoord := make(map[objects.Coord]int, len(entries))
	for i, entry := range entries {
		if _, exists := byCoord[entry.Coord]; !exists {
			byCoord[entry.Coord] = i
		}
	}
	return &MemorySource{identity: identity, entries: entries, byCoord: byCoord}
}

func (m *MemorySource) Identity() string {
	return m.identity
}

func (m *MemorySource) Entries() iter.Seq2[objects.Entry, error] {
	return func(yield func(objects.Entry, error) bool) {
		for _, entry := range m.entries {
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func (m *MemorySource) Lookup(coord objects.Coord) ([]byte, bool, error) {
	i, exists := m.byCoord[coord]
	if !exists {
		return nil, false, nil
	}
	return m.entries[i].Data, true, nil
}

func (m *MemorySource) Close() error {
	return nil
}
