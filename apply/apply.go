package apply

import (
	"fmt"
	"time"

	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diffile"
	"github.com/PlakarLabs/tilediff/events"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/profiler"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
)

type Stats struct {
	Unchanged uint64
	Modified  uint64
	Removed   uint64
	Added     uint64
}

func (s *Stats) Emitted() uint64 {
	return s.Unchanged + s.Modified + s.Added
}

func (s *Stats) String() string {
	return fmt.Sprintf("%d chunks (%d unchanged, %d modified, %d added, %d removed)",
		s.Emitted(), s.Unchanged, s.Modified, s.Added, s.Removed)
}

type Options struct {
	// DisableChecksum skips the payload checksum comparison. Corruption
	// then propagates to the output.
	DisableChecksum bool
}

// Apply replays base through d and hands every entry of the resulting
// snapshot to emit: base entries first, in base order, then additions in
// coordinate order. Payloads taken from d are verified against their
// recorded checksum unless opts disables it, whether or not d was
// verified when decoded. On error, whatever was emitted must be
// discarded by the caller.
func Apply(ctx *context.Context, base importer.Source, d *diffile.Diff, opts *Options, emit func(objects.Entry) error) (*Stats, error) {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("apply.Apply", time.Since(t0))
	}()
	if opts == nil {
		opts = &Options{}
	}

	if objects.CompareIdentities(base.Identity(), d.Header.Parent) != 0 {
		return nil, objects.NewSnapshotError(objects.ErrParentMismatch, base.Identity(),
			"diff %s expects parent %s", d.Header.Child, d.Header.Parent)
	}

	ctx.Events().Send(events.StartEvent("apply"))
	defer ctx.Events().Send(events.DoneEvent("apply"))

	ops := make(map[objects.Coord]*diffile.Operation, len(d.Ops))
	for i := range d.Ops {
		op := &d.Ops[i]
		if _, exists := ops[op.Coord]; exists {
			return nil, objects.NewChunkError(objects.ErrInconsistentOperation, op.Coord, "several operations in %s", d.Header.Child)
		}
		ops[op.Coord] = op
	}

	stats := &Stats{}
	matched := make(map[objects.Coord]struct{}, len(d.Ops))
	seen := make(map[objects.Coord]struct{})

	for entry, err := range base.Entries() {
		if err != nil {
			return nil, err
		}
		if _, exists := seen[entry.Coord]; exists {
			return nil, objects.NewChunkError(objects.ErrDuplicateChunk, entry.Coord, "in %s", base.Identity())
		}
		seen[entry.Coord] = struct{}{}

		op, exists := ops[entry.Coord]
		if !exists {
			if err := emit(entry); err != nil {
				return nil, err
			}
			stats.Unchanged++
			continue
		}
		matched[entry.Coord] = struct{}{}

		switch op.Kind {
		case diffile.KindRemove:
			stats.Removed++
		case diffile.KindModify:
			if !opts.DisableChecksum {
				if err := op.Verify(); err != nil {
					return nil, err
				}
			}
			if err := emit(objects.NewEntry(op.Coord, op.Payload)); err != nil {
				return nil, err
			}
			stats.Modified++
		case diffile.KindAdd:
			return nil, objects.NewChunkError(objects.ErrInconsistentOperation, op.Coord, "add of a chunk present in %s", base.Identity())
		}
	}

	for i := range d.Ops {
		op := &d.Ops[i]
		if _, exists := matched[op.Coord]; exists {
			continue
		}
		switch op.Kind {
		case diffile.KindRemove:
			return nil, objects.NewChunkError(objects.ErrDanglingRemove, op.Coord, "absent from %s", base.Identity())
		case diffile.KindModify:
			return nil, objects.NewChunkError(objects.ErrInconsistentOperation, op.Coord, "modify of a chunk absent from %s", base.Identity())
		}
	}

	for i := range d.Ops {
		op := &d.Ops[i]
		if op.Kind != diffile.KindAdd {
			continue
		}
		if !opts.DisableChecksum {
			if err := op.Verify(); err != nil {
				return nil, err
			}
		}
		if err := emit(objects.NewEntry(op.Coord, op.Payload)); err != nil {
			return nil, err
		}
		stats.Added++
	}

	ctx.Logger.Trace("apply", "%s -> %s: %s in %s", d.Header.Parent, d.Header.Child, stats, time.Since(t0))
	return stats, nil
}
