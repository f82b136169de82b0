package chain

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diffile"
	"github.com/PlakarLabs/tilediff/events"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/profiler"
	"golang.org/x/sync/errgroup"
)

// LocationCache stores scanned diff file indexes across invocations.
type LocationCache interface {
	GetIndex(pathname string) (*diffile.Index, bool, error)
	PutIndex(pathname string, idx *diffile.Index) error
}

type Options struct {
	Cache LocationCache
}

// Link is one diff file of the chain.
type Link struct {
	Pathname string
	Index    *diffile.Index

	muFile sync.Mutex
	fp     *os.File
}

func (l *Link) Parent() string {
	return l.Index.Header.Parent
}

func (l *Link) Identity() string {
	return l.Index.Header.Child
}

func (l *Link) readerAt() (*os.File, error) {
	l.muFile.Lock()
	defer l.muFile.Unlock()

	if l.fp == nil {
		fp, err := os.Open(l.Pathname)
		if err != nil {
			return nil, err
		}
		l.fp = fp
	}
	return l.fp, nil
}

func (l *Link) close() error {
	l.muFile.Lock()
	defer l.muFile.Unlock()

	if l.fp == nil {
		return nil
	}
	err := l.fp.Close()
	l.fp = nil
	return err
}

// Step is one operation of the chain on a single coordinate.
type Step struct {
	Link     *Link
	Location diffile.Location
}

func (s Step) Kind() diffile.Kind {
	return s.Location.Kind
}

func (s Step) Identity() string {
	return s.Link.Identity()
}

// Payload decodes the payload of an add or modify step.
func (s Step) Payload(verify bool) ([]byte, error) {
	fp, err := s.Link.readerAt()
	if err != nil {
		return nil, err
	}
	return diffile.ReadPayload(fp, s.Location, verify)
}

type Chain struct {
	dirs  []string
	base  string
	links []*Link
}

func sameIdentity(a, b string) bool {
	return objects.CompareIdentities(a, b) == 0
}

// Open builds the chain of diff files found in dir that descends from
// base. Only headers and operation framing are read.
func Open(ctx *context.Context, dir string, base string, opts *Options) (*Chain, error) {
	return OpenDirs(ctx, []string{dir}, base, opts)
}

// OpenDirs builds one chain out of the diff files of several
// directories. A snapshot reached from two of them is a broken chain.
func OpenDirs(ctx *context.Context, dirs []string, base string, opts *Options) (*Chain, error) {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("chain.Open", time.Since(t0))
	}()
	if opts == nil {
		opts = &Options{}
	}

	pathnames := make([]string, 0)
	for _, dir := range dirs {
		dirEntries, err := os.ReadDir(dir)
		if err != nil {
			return nil, objects.SourceError(dir, err)
		}
		for _, dirEntry := range dirEntries {
			if dirEntry.Type().IsRegular() && diffile.IsDiffFile(dirEntry.Name()) {
				pathnames = append(pathnames, filepath.Join(dir, dirEntry.Name()))
			}
		}
	}
	sort.Strings(pathnames)

	// scanned in parallel, reassembled in name order
	scanned := make([]*Link, len(pathnames))
	wg := errgroup.Group{}
	wg.SetLimit(ctx.GetMaxConcurrency())
	for i, pathname := range pathnames {
		wg.Go(func() error {
			idx, err := scan(ctx, pathname, opts.Cache)
			if err != nil {
				return err
			}
			scanned[i] = &Link{Pathname: pathname, Index: idx}
			ctx.Events().Send(events.DiffScannedEvent(idx.Header.Child, uint64(len(idx.Locations))))
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	c := &Chain{dirs: dirs, base: base, links: make([]*Link, 0, len(scanned))}
	for _, link := range scanned {
		nameIdentity := objects.ExtractIdentity(link.Pathname)
		if !sameIdentity(nameIdentity, link.Identity()) {
			return nil, objects.NewSnapshotError(objects.ErrBrokenChain, nameIdentity,
				"%s holds diff for %s", filepath.Base(link.Pathname), link.Identity())
		}
		if objects.CompareIdentities(link.Identity(), base) <= 0 {
			ctx.Logger.Trace("chain", "%s: predates base %s, ignored", link.Identity(), base)
			continue
		}
		c.links = append(c.links, link)
	}

	slices.SortStableFunc(c.links, func(a, b *Link) int {
		return objects.CompareIdentities(a.Identity(), b.Identity())
	})

	previous := base
	for i, link := range c.links {
		if i > 0 && objects.CompareIdentities(c.links[i-1].Identity(), link.Identity()) >= 0 {
			return nil, objects.NewSnapshotError(objects.ErrBrokenChain, link.Identity(),
				"duplicate diff in chain: %s and %s", c.links[i-1].Pathname, link.Pathname)
		}
		if !sameIdentity(link.Parent(), previous) {
			return nil, objects.NewSnapshotError(objects.ErrBrokenChain, link.Identity(),
				"parent is %s, expected %s", link.Parent(), previous)
		}
		previous = link.Identity()
	}

	ctx.Logger.Trace("chain", "%s: %d diffs from %s in %s", strings.Join(dirs, ","), len(c.links), base, time.Since(t0))
	return c, nil
}

func scan(ctx *context.Context, pathname string, cache LocationCache) (*diffile.Index, error) {
	t0 := time.Now()
	if cache != nil {
		if idx, found, err := cache.GetIndex(pathname); err != nil {
			ctx.Logger.Warn("%s: location cache: %s", pathname, err)
		} else if found {
			ctx.Logger.Trace("chain", "%s: served from cache", pathname)
			return idx, nil
		}
	}

	fp, err := os.Open(pathname)
	if err != nil {
		return nil, objects.SourceError(pathname, err)
	}
	defer fp.Close()

	idx, err := diffile.Scan(fp)
	if err != nil {
		return nil, objects.NewSnapshotError(err, objects.ExtractIdentity(pathname), "%s", filepath.Base(pathname))
	}
	ctx.Logger.Trace("chain", "%s: scanned %d operations in %s", pathname, len(idx.Locations), time.Since(t0))

	if cache != nil {
		if err := cache.PutIndex(pathname, idx); err != nil {
			ctx.Logger.Warn("%s: location cache: %s", pathname, err)
		}
	}
	return idx, nil
}

func (c *Chain) Close() error {
	var firstErr error
	for _, link := range c.links {
		if err := link.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Chain) Dirs() []string {
	return c.dirs
}

func (c *Chain) Base() string {
	return c.base
}

func (c *Chain) Links() []*Link {
	return c.links
}

// Identities lists the base followed by every snapshot the chain reaches.
func (c *Chain) Identities() []string {
	ret := make([]string, 0, len(c.links)+1)
	ret = append(ret, c.base)
	for _, link := range c.links {
		ret = append(ret, link.Identity())
	}
	return ret
}

func (c *Chain) Latest() string {
	if len(c.links) == 0 {
		return c.base
	}
	return c.links[len(c.links)-1].Identity()
}

// Resolve returns the links leading from the base to target. An empty
// target means the latest snapshot, the base itself resolves to no link.
func (c *Chain) Resolve(target string) ([]*Link, error) {
	if target == "" {
		return c.links, nil
	}
	if sameIdentity(target, c.base) {
		return c.links[:0], nil
	}
	for i, link := range c.links {
		if sameIdentity(target, link.Identity()) {
			return c.links[:i+1], nil
		}
	}
	return nil, objects.NewSnapshotError(objects.ErrUnknownTarget, target, "not in chain from %s", c.base)
}

// Operations gathers, per selected coordinate, the steps of links that
// touch it, in chain order. No payload is read.
func (c *Chain) Operations(links []*Link, selection []objects.Coord) map[objects.Coord][]Step {
	t0 := time.Now()
	defer func() {
		profiler.RecordEvent("chain.Operations", time.Since(t0))
	}()

	ret := make(map[objects.Coord][]Step)
	for _, link := range links {
		for _, coord := range selection {
			if loc, found := link.Index.Find(coord); found {
				ret[coord] = append(ret[coord], Step{Link: link, Location: loc})
			}
		}
	}
	return ret
}
