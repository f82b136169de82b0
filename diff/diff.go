package diff

import (
	"fmt"
	"sync"
	"time"

	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diffile"
	"github.com/PlakarLabs/tilediff/events"
	"github.com/PlakarLabs/tilediff/hashing"
	"github.com/PlakarLabs/tilediff/index"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/profiler"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Compute produces the operations turning parent into child. The parent
// is indexed first, then the child is streamed once.
func Compute(ctx *context.Context, parent importer.Source, child importer.Source) (*diffile.Diff, error) {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("diff.Compute", time.Since(t0))
	}()

	ctx.Events().Send(events.StartEvent("diff"))
	defer ctx.Events().Send(events.DoneEvent("diff"))

	fingerprinter, err := hashing.NewFingerprinter(ctx.GetFingerprint())
	if err != nil {
		return nil, err
	}

	parentIndex, err := index.Build(ctx, parent, fingerprinter)
	if err != nil {
		return nil, err
	}
	ctx.Logger.Trace("diff", "%s: %d parent chunks indexed in %s", parent.Identity(), parentIndex.Len(), time.Since(t0))

	d := diffile.New(parent.Identity(), child.Identity())
	var muOps sync.Mutex
	seen := make(map[objects.Coord]struct{}, parentIndex.Len())

	wg := errgroup.Group{}
	wg.SetLimit(ctx.GetMaxConcurrency())

	for entry, err := range child.Entries() {
		if err != nil {
			wg.Wait()
			return nil, err
		}
		if _, exists := seen[entry.Coord]; exists {
			wg.Wait()
			return nil, objects.NewChunkError(objects.ErrDuplicateChunk, entry.Coord, "in %s", child.Identity())
		}
		seen[entry.Coord] = struct{}{}

		record, exists := parentIndex.Get(entry.Coord)
		wg.Go(func() error {
			var op diffile.Operation
			if !exists {
				op = diffile.NewAdd(entry.Coord, entry.Data)
			} else if record.Length != len(entry.Data) || fingerprinter.Sum(entry.Data) != record.Checksum {
				op = diffile.NewModify(entry.Coord, entry.Data)
			} else {
				return nil
			}
			muOps.Lock()
			d.Ops = append(d.Ops, op)
			muOps.Unlock()
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	for _, coord := range parentIndex.Coords() {
		if _, exists := seen[coord]; !exists {
			d.Ops = append(d.Ops, diffile.NewRemove(coord))
		}
	}
	d.Sort()

	ctx.Logger.Trace("diff", "%s -> %s: %d operations in %s", d.Header.Parent, d.Header.Child, len(d.Ops), time.Since(t0))
	return d, nil
}

type Summary struct {
	Parent       string
	Child        string
	Adds         uint64
	Modifies     uint64
	Removes      uint64
	PayloadBytes uint64
}

func Summarize(d *diffile.Diff) Summary {
	summary := Summary{Parent: d.Header.Parent, Child: d.Header.Child}
	for i := range d.Ops {
		summary.count(d.Ops[i].Kind, uint64(len(d.Ops[i].Payload)))
	}
	return summary
}

// SummarizeIndex is Summarize for a scanned diff file.
func SummarizeIndex(idx *diffile.Index) Summary {
	summary := Summary{Parent: idx.Header.Parent, Child: idx.Header.Child}
	for _, loc := range idx.Locations {
		summary.count(loc.Kind, loc.Length)
	}
	return summary
}

func (s *Summary) count(kind diffile.Kind, length uint64) {
	switch kind {
	case diffile.KindAdd:
		s.Adds++
	case diffile.KindModify:
		s.Modifies++
	case diffile.KindRemove:
		s.Removes++
	}
	s.PayloadBytes += length
}

func (s Summary) Operations() uint64 {
	return s.Adds + s.Modifies + s.Removes
}

func (s Summary) String() string {
	return fmt.Sprintf("%s -> %s: %s operations (%s added, %s modified, %s removed), %s of payload",
		s.Parent, s.Child,
		humanize.Comma(int64(s.Operations())),
		humanize.Comma(int64(s.Adds)),
		humanize.Comma(int64(s.Modifies)),
		humanize.Comma(int64(s.Removes)),
		humanize.Bytes(s.PayloadBytes))
}
