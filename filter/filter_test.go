package filter

import (
	"errors"
	"testing"

	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
)

func entry(x, y uint32, data string) objects.Entry {
	return objects.NewEntry(objects.Coord{X: x, Y: y}, []byte(data))
}

func TestFilter(t *testing.T) {
	src := importer.NewMemorySource("base", []objects.Entry{
		entry(0, 0, "a"), entry(1, 0, "b"), entry(1, 1, "c"), entry(4, 4, "d"),
	})

	tests := []struct {
		name string
		keep func(objects.Coord) bool
		want []objects.Coord
	}{
		{"all", nil, []objects.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 4, Y: 4}}},
		{"column", func(c objects.Coord) bool { return c.X == 1 }, []objects.Coord{{X: 1, Y: 0}, {X: 1, Y: 1}}},
		{"none", func(objects.Coord) bool { return false }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []objects.Coord
			stats, err := Filter(context.NewContext(), src, tt.keep, func(e objects.Entry) error {
				got = append(got, e.Coord)
				return nil
			})
			if err != nil {
				t.Fatalf("Filter: %v", err)
			}
			if stats.Scanned != 4 || stats.Kept != uint64(len(tt.want)) {
				t.Errorf("unexpected stats %s", stats)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestFilterDuplicate(t *testing.T) {
	src := importer.NewMemorySource("base", []objects.Entry{entry(0, 0, "a"), entry(0, 0, "b")})
	_, err := Filter(context.NewContext(), src, nil, func(objects.Entry) error { return nil })
	if !errors.Is(err, objects.ErrDuplicateChunk) {
		t.Fatalf("expected ErrDuplicateChunk, got %v", err)
	}
}

func TestFilterEmitError(t *testing.T) {
	src := importer.NewMemorySource("base", []objects.Entry{entry(0, 0, "a")})
	boom := errors.New("sink full")
	if _, err := Filter(context.NewContext(), src, nil, func(objects.Entry) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected the emit error, got %v", err)
	}
}
