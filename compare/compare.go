package compare

import (
	"slices"
	"sync"
	"time"

	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/events"
	"github.com/PlakarLabs/tilediff/hashing"
	"github.com/PlakarLabs/tilediff/index"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/profiler"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
	"golang.org/x/sync/errgroup"
)

type Status uint8

const (
	Identical Status = iota
	ContentDiffers
	MissingInLeft
	MissingInRight
)

func (s Status) String() string {
	switch s {
	case Identical:
		return "identical"
	case ContentDiffers:
		return "content differs"
	case MissingInLeft:
		return "missing in left"
	case MissingInRight:
		return "missing in right"
	}
	return "unknown"
}

type Discrepancy struct {
	Coord  objects.Coord
	Status Status
}

type Report struct {
	Left          string
	Right         string
	Identical     uint64
	Discrepancies []Discrepancy
}

// Equal is true iff both sides hold the same set of entries.
func (r *Report) Equal() bool {
	return len(r.Discrepancies) == 0
}

// Count returns the number of discrepancies with the given status.
func (r *Report) Count(status Status) int {
	if status == Identical {
		return int(r.Identical)
	}
	n := 0
	for _, d := range r.Discrepancies {
		if d.Status == status {
			n++
		}
	}
	return n
}

// Compare reports every coordinate on which left and right disagree. It
// only fails on source errors, content mismatches are collected.
func Compare(ctx *context.Context, left importer.Source, right importer.Source) (*Report, error) {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("compare.Compare", time.Since(t0))
	}()

	ctx.Events().Send(events.StartEvent("compare"))
	defer ctx.Events().Send(events.DoneEvent("compare"))

	fingerprinter, err := hashing.NewFingerprinter(ctx.GetFingerprint())
	if err != nil {
		return nil, err
	}
	leftIndex, err := index.Build(ctx, left, fingerprinter)
	if err != nil {
		return nil, err
	}

	report := &Report{Left: left.Identity(), Right: right.Identity()}
	var muReport sync.Mutex
	seen := make(map[objects.Coord]struct{}, leftIndex.Len())

	record := func(coord objects.Coord, status Status) {
		muReport.Lock()
		if status == Identical {
			report.Identical++
		} else {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{Coord: coord, Status: status})
		}
		muReport.Unlock()

		switch status {
		case Identical:
			ctx.Events().Send(events.ChunkIdenticalEvent(coord))
		case ContentDiffers:
			ctx.Events().Send(events.ChunkDiffersEvent(coord))
		case MissingInLeft:
			ctx.Events().Send(events.ChunkMissingEvent(coord, "left"))
		case MissingInRight:
			ctx.Events().Send(events.ChunkMissingEvent(coord, "right"))
		}
	}

	wg := errgroup.Group{}
	wg.SetLimit(ctx.GetMaxConcurrency())

	for entry, err := range right.Entries() {
		if err != nil {
			wg.Wait()
			return nil, err
		}
		if _, exists := seen[entry.Coord]; exists {
			wg.Wait()
			return nil, objects.NewChunkError(objects.ErrDuplicateChunk, entry.Coord, "in %s", right.Identity())
		}
		seen[entry.Coord] = struct{}{}

		leftRecord, exists := leftIndex.Get(entry.Coord)
		if !exists {
			record(entry.Coord, MissingInLeft)
			continue
		}
		wg.Go(func() error {
			if leftRecord.Length == len(entry.Data) && fingerprinter.Sum(entry.Data) == leftRecord.Checksum {
				record(entry.Coord, Identical)
			} else {
				record(entry.Coord, ContentDiffers)
			}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	for _, coord := range leftIndex.Coords() {
		if _, exists := seen[coord]; !exists {
			record(coord, MissingInRight)
		}
	}

	slices.SortFunc(report.Discrepancies, func(a, b Discrepancy) int {
		return a.Coord.Compare(b.Coord)
	})

	ctx.Logger.Trace("compare", "%s <> %s: %d identical, %d discrepancies in %s",
		report.Left, report.Right, report.Identical, len(report.Discrepancies), time.Since(t0))
	return report, nil
}
