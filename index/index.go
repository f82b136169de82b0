package index

import (
	"slices"
	"sync"
	"time"

	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/events"
	"github.com/PlakarLabs/tilediff/hashing"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/profiler"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
	"golang.org/x/sync/errgroup"
)

type Record struct {
	Checksum objects.Checksum
	Length   int
}

// Index maps every coordinate of one snapshot to the fingerprint of its
// payload. Payloads are not retained.
type Index struct {
	identity      string
	fingerprinter *hashing.Fingerprinter

	muRecords sync.Mutex
	records   map[objects.Coord]Record
}

func New(identity string, fingerprinter *hashing.Fingerprinter) *Index {
	return &Index{
		identity:      identity,
		fingerprinter: fingerprinter,
		records:       make(map[objects.Coord]Record),
	}
}

// Build consumes src once and fingerprints its entries on a bounded pool
// of workers.
func Build(ctx *context.Context, src importer.Source, fingerprinter *hashing.Fingerprinter) (*Index, error) {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("index.Build", time.Since(t0))
	}()

	idx := New(src.Identity(), fingerprinter)
	seen := make(map[objects.Coord]struct{})

	wg := errgroup.Group{}
	wg.SetLimit(ctx.GetMaxConcurrency())

	for entry, err := range src.Entries() {
		if err != nil {
			wg.Wait()
			return nil, err
		}
		if _, exists := seen[entry.Coord]; exists {
			wg.Wait()
			return nil, objects.NewChunkError(objects.ErrDuplicateChunk, entry.Coord, "in %s", src.Identity())
		}
		seen[entry.Coord] = struct{}{}

		wg.Go(func() error {
			idx.Insert(entry.Coord, fingerprinter.Sum(entry.Data), len(entry.Data))
			ctx.Events().Send(events.ChunkIndexedEvent(entry.Coord, len(entry.Data)))
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	ctx.Logger.Trace("index", "%s: indexed %d chunks in %s", idx.identity, idx.Len(), time.Since(t0))
	return idx, nil
}

func (idx *Index) Identity() string {
	return idx.identity
}

func (idx *Index) Fingerprinter() *hashing.Fingerprinter {
	return idx.fingerprinter
}

func (idx *Index) Insert(coord objects.Coord, checksum objects.Checksum, length int) {
	idx.muRecords.Lock()
	defer idx.muRecords.Unlock()
	idx.records[coord] = Record{Checksum: checksum, Length: length}
}

func (idx *Index) Get(coord objects.Coord) (Record, bool) {
	idx.muRecords.Lock()
	defer idx.muRecords.Unlock()
	record, exists := idx.records[coord]
	return record, exists
}

func (idx *Index) Len() int {
	idx.muRecords.Lock()
	defer idx.muRecords.Unlock()
	return len(idx.records)
}

// Coords returns the indexed coordinates in canonical order.
func (idx *Index) Coords() []objects.Coord {
	idx.muRecords.Lock()
	ret := make([]objects.Coord, 0, len(idx.records))
	for coord := range idx.records {
		ret = append(ret, coord)
	}
	idx.muRecords.Unlock()

	slices.SortFunc(ret, objects.Coord.Compare)
	return ret
}
