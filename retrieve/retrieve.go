package retrieve

import (
	"maps"
	"slices"
	"time"

	"github.com/PlakarLabs/tilediff/chain"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diffile"
	"github.com/PlakarLabs/tilediff/events"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/profiler"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
)

type Options struct {
	// Target is the identity to retrieve, empty for the latest.
	Target string

	// History emits every version of the selection along the chain.
	History bool

	DisableChecksum bool
}

// Version is the state of the selection at one snapshot. Only present
// chunks appear in Chunks; Changed lists those that differ from the
// previous version, or all of them for the first one.
type Version struct {
	Identity string
	Chunks   map[objects.Coord][]byte
	Changed  []objects.Coord
	Removed  []objects.Coord
}

type Result struct {
	Target   string
	Versions int

	// selected coordinates never present, as ErrChunkNotFound errors
	NotFound []error
}

type Retriever struct {
	Chain   *chain.Chain
	Base    importer.Source
	Options Options
}

func New(c *chain.Chain, base importer.Source, opts Options) *Retriever {
	return &Retriever{Chain: c, Base: base, Options: opts}
}

func (r *Retriever) basePayloads(ctx *context.Context, selection Selection) (map[objects.Coord][]byte, error) {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("retrieve.basePayloads", time.Since(t0))
	}()

	ret := make(map[objects.Coord][]byte)
	if lookuper, ok := importer.AsLookuper(r.Base); ok {
		for _, coord := range selection {
			data, found, err := lookuper.Lookup(coord)
			if err != nil {
				return nil, err
			}
			if found {
				ret[coord] = data
			}
		}
		ctx.Logger.Trace("retrieve", "%s: %d chunks looked up in %s", r.Base.Identity(), len(ret), time.Since(t0))
		return ret, nil
	}

	for entry, err := range r.Base.Entries() {
		if err != nil {
			return nil, err
		}
		if selection.Contains(entry.Coord) {
			if _, exists := ret[entry.Coord]; exists {
				return nil, objects.NewChunkError(objects.ErrDuplicateChunk, entry.Coord, "in %s", r.Base.Identity())
			}
			ret[entry.Coord] = entry.Data
		}
	}
	ctx.Logger.Trace("retrieve", "%s: %d chunks scanned in %s", r.Base.Identity(), len(ret), time.Since(t0))
	return ret, nil
}

// Run reconstructs the selection at the target, or in history mode at
// every diff changing it, and hands each version to emit in chain order.
// The base itself is not a version of the history, retrieve it with the
// base as target. A coordinate found neither in the base nor in the resolved
// range is reported in the result and does not stop the others.
func (r *Retriever) Run(ctx *context.Context, selection Selection, emit func(*Version) error) (*Result, error) {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("retrieve.Run", time.Since(t0))
	}()

	if len(selection) == 0 {
		return nil, objects.ErrInvalidSelection
	}
	if objects.CompareIdentities(r.Base.Identity(), r.Chain.Base()) != 0 {
		return nil, objects.NewSnapshotError(objects.ErrParentMismatch, r.Base.Identity(), "chain starts from %s", r.Chain.Base())
	}

	links, err := r.Chain.Resolve(r.Options.Target)
	if err != nil {
		return nil, err
	}
	result := &Result{Target: r.Chain.Base()}
	if len(links) != 0 {
		result.Target = links[len(links)-1].Identity()
	}

	steps := r.Chain.Operations(links, selection)
	state, err := r.basePayloads(ctx, selection)
	if err != nil {
		return nil, err
	}

	for _, coord := range selection {
		_, inBase := state[coord]
		if _, touched := steps[coord]; !inBase && !touched {
			result.NotFound = append(result.NotFound, objects.NewChunkError(objects.ErrChunkNotFound, coord, "between %s and %s", r.Chain.Base(), result.Target))
		}
	}

	send := func(version *Version) error {
		result.Versions++
		ctx.Events().Send(events.VersionRetrievedEvent(version.Identity, len(version.Chunks)))
		return emit(version)
	}

	if !r.Options.History {
		version, err := r.resolve(selection, state, steps)
		if err != nil {
			return nil, err
		}
		version.Identity = result.Target
		if err := send(version); err != nil {
			return nil, err
		}
		return result, nil
	}

	perLink := make(map[*chain.Link][]chain.Step)
	for _, coord := range selection {
		for _, step := range steps[coord] {
			perLink[step.Link] = append(perLink[step.Link], step)
		}
	}

	for _, link := range links {
		linkSteps := perLink[link]
		if len(linkSteps) == 0 {
			continue
		}
		version := &Version{Identity: link.Identity()}
		for _, step := range linkSteps {
			coord := step.Location.Coord
			if step.Kind() == diffile.KindRemove {
				delete(state, coord)
				version.Removed = append(version.Removed, coord)
				continue
			}
			payload, err := step.Payload(!r.Options.DisableChecksum)
			if err != nil {
				return nil, err
			}
			state[coord] = payload
			version.Changed = append(version.Changed, coord)
		}
		version.Chunks = maps.Clone(state)
		if err := send(version); err != nil {
			return nil, err
		}
	}

	ctx.Logger.Trace("retrieve", "%d chunks, %d versions up to %s in %s", len(selection), result.Versions, result.Target, time.Since(t0))
	return result, nil
}

// only the last step on a coordinate decides its final state
func (r *Retriever) resolve(selection Selection, state map[objects.Coord][]byte, steps map[objects.Coord][]chain.Step) (*Version, error) {
	chunks := maps.Clone(state)
	for _, coord := range selection {
		coordSteps, touched := steps[coord]
		if !touched {
			continue
		}
		last := coordSteps[len(coordSteps)-1]
		if last.Kind() == diffile.KindRemove {
			delete(chunks, coord)
			continue
		}
		payload, err := last.Payload(!r.Options.DisableChecksum)
		if err != nil {
			return nil, err
		}
		chunks[coord] = payload
	}
	return &Version{Chunks: chunks, Changed: sortedKeys(chunks)}, nil
}

func sortedKeys(m map[objects.Coord][]byte) []objects.Coord {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, objects.Coord.Compare)
	return keys
}
