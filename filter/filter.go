package filter

import (
	"fmt"
	"time"

	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/events"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/profiler"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
)

type Stats struct {
	Scanned uint64
	Kept    uint64
}

func (s *Stats) String() string {
	return fmt.Sprintf("%d of %d chunks kept", s.Kept, s.Scanned)
}

// Filter reads src once and hands the entries keep accepts to emit, in
// source order. A nil keep accepts every entry, which copies a snapshot
// from one container format to another.
func Filter(ctx *context.Context, src importer.Source, keep func(objects.Coord) bool, emit func(objects.Entry) error) (*Stats, error) {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("filter.Filter", time.Since(t0))
	}()

	ctx.Events().Send(events.StartEvent("filter"))
	defer ctx.Events().Send(events.DoneEvent("filter"))

	stats := &Stats{}
	seen := make(map[objects.Coord]struct{})
	for entry, err := range src.Entries() {
		if err != nil {
			return nil, err
		}
		if _, exists := seen[entry.Coord]; exists {
			return nil, objects.NewChunkError(objects.ErrDuplicateChunk, entry.Coord, "in %s", src.Identity())
		}
		seen[entry.Coord] = struct{}{}
		stats.Scanned++

		if keep != nil && !keep(entry.Coord) {
			continue
		}
		if err := emit(entry); err != nil {
			return nil, err
		}
		stats.Kept++
	}

	ctx.Logger.Trace("filter", "%s: %s in %s", src.Identity(), stats, time.Since(t0))
	return stats, nil
}
