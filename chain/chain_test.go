package chain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/PlakarLabs/tilediff/caching"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diff"
	"github.com/PlakarLabs/tilediff/diffile"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
)

const (
	t0 = "2025-08-09T20-00-00.000Z"
	t1 = "2025-08-09T21-00-00.000Z"
	t2 = "2025-08-09T22-00-00.000Z"
	t3 = "2025-08-09T23-00-00.000Z"
)

func entry(x, y uint32, data string) objects.Entry {
	return objects.NewEntry(objects.Coord{X: x, Y: y}, []byte(data))
}

var snapshots = map[string][]objects.Entry{
	t0: {entry(0, 0, "a0"), entry(1, 0, "b0"), entry(2, 0, "c0")},
	t1: {entry(0, 0, "a1"), entry(1, 0, "b0"), entry(2, 0, "c0")},
	t2: {entry(0, 0, "a1"), entry(2, 0, "c2"), entry(3, 0, "d2")},
	t3: {entry(0, 0, "a3"), entry(2, 0, "c2"), entry(3, 0, "d2"), entry(1, 0, "b3")},
}

func writeDiff(t *testing.T, dir string, parent string, child string) {
	t.Helper()
	d, err := diff.Compute(context.NewContext(),
		importer.NewMemorySource(parent, snapshots[parent]),
		importer.NewMemorySource(child, snapshots[child]))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if err := diffile.WriteFile(filepath.Join(dir, diffile.FileName(child)), d); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func buildChain(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeDiff(t, dir, t0, t1)
	writeDiff(t, dir, t1, t2)
	writeDiff(t, dir, t2, t3)
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("not a diff"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir
}

func newContext() *context.Context {
	ctx := context.NewContext()
	ctx.SetMaxConcurrency(3)
	return ctx
}

func TestOpen(t *testing.T) {
	c, err := Open(newContext(), buildChain(t), t0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	identities := c.Identities()
	expected := []string{t0, t1, t2, t3}
	if len(identities) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, identities)
	}
	for i := range expected {
		if identities[i] != expected[i] {
			t.Errorf("identity %d: expected %s, got %s", i, expected[i], identities[i])
		}
	}
	if c.Latest() != t3 || c.Base() != t0 {
		t.Errorf("unexpected latest %s or base %s", c.Latest(), c.Base())
	}
}

func TestOpenLaterBase(t *testing.T) {
	c, err := Open(newContext(), buildChain(t), t1, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()
	if len(c.Links()) != 2 || c.Links()[0].Identity() != t2 {
		t.Fatalf("expected diffs predating the base to be ignored, got %v", c.Identities())
	}
}

func TestResolve(t *testing.T) {
	c, err := Open(newContext(), buildChain(t), t0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	tests := []struct {
		target string
		length int
	}{
		{"", 3},
		{t0, 0},
		{t1, 1},
		{t2, 2},
		{"2025-08-09T22:00:00.000Z", 2},
		{t3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			links, err := c.Resolve(tt.target)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if len(links) != tt.length {
				t.Errorf("expected %d links, got %d", tt.length, len(links))
			}
		})
	}

	if _, err := c.Resolve("2031-01-01T00-00-00.000Z"); !errors.Is(err, objects.ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
}

func TestOperations(t *testing.T) {
	c, err := Open(newContext(), buildChain(t), t0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	links, _ := c.Resolve("")
	selection := []objects.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 9, Y: 9}}
	ops := c.Operations(links, selection)

	steps := ops[objects.Coord{X: 0, Y: 0}]
	if len(steps) != 2 || steps[0].Identity() != t1 || steps[1].Identity() != t3 {
		t.Fatalf("unexpected steps for 0-0: %+v", steps)
	}
	payload, err := steps[1].Payload(true)
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if string(payload) != "a3" {
		t.Errorf("expected a3, got %q", payload)
	}

	steps = ops[objects.Coord{X: 1, Y: 0}]
	if len(steps) != 2 || steps[0].Kind() != diffile.KindRemove || steps[1].Kind() != diffile.KindAdd {
		t.Fatalf("unexpected steps for 1-0: %+v", steps)
	}
	if _, exists := ops[objects.Coord{X: 9, Y: 9}]; exists {
		t.Errorf("no step expected for 9-9")
	}
}

func TestBrokenChain(t *testing.T) {
	t.Run("gap", func(t *testing.T) {
		dir := t.TempDir()
		writeDiff(t, dir, t0, t1)
		writeDiff(t, dir, t2, t3)
		if _, err := Open(newContext(), dir, t0, nil); !errors.Is(err, objects.ErrBrokenChain) {
			t.Fatalf("expected ErrBrokenChain, got %v", err)
		}
	})

	t.Run("wrong base", func(t *testing.T) {
		dir := t.TempDir()
		writeDiff(t, dir, t1, t2)
		if _, err := Open(newContext(), dir, t0, nil); !errors.Is(err, objects.ErrBrokenChain) {
			t.Fatalf("expected ErrBrokenChain, got %v", err)
		}
	})

	t.Run("misnamed", func(t *testing.T) {
		dir := t.TempDir()
		writeDiff(t, dir, t0, t1)
		if err := os.Rename(filepath.Join(dir, diffile.FileName(t1)), filepath.Join(dir, diffile.FileName(t2))); err != nil {
			t.Fatalf("rename: %v", err)
		}
		if _, err := Open(newContext(), dir, t0, nil); !errors.Is(err, objects.ErrBrokenChain) {
			t.Fatalf("expected ErrBrokenChain, got %v", err)
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		dir := t.TempDir()
		writeDiff(t, dir, t0, t1)
		if err := os.WriteFile(filepath.Join(dir, diffile.FileName(t2)), []byte("TDIF"), 0600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Open(newContext(), dir, t0, nil); !errors.Is(err, objects.ErrIntegrity) {
			t.Fatalf("expected ErrIntegrity, got %v", err)
		}
	})
}

func TestOpenWithCache(t *testing.T) {
	dir := buildChain(t)
	manager := caching.NewManager(t.TempDir())
	defer manager.Close()
	cache, err := manager.Locations()
	if err != nil {
		t.Fatalf("Locations: %v", err)
	}

	first, err := Open(newContext(), dir, t0, &Options{Cache: cache})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	first.Close()

	for _, link := range first.Links() {
		if _, found, err := cache.GetIndex(link.Pathname); err != nil || !found {
			t.Fatalf("expected %s to be cached, got %v, %v", link.Pathname, found, err)
		}
	}

	second, err := Open(newContext(), dir, t0, &Options{Cache: cache})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer second.Close()
	if second.Latest() != t3 {
		t.Errorf("unexpected latest %s", second.Latest())
	}
}

func TestOpenDirs(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeDiff(t, first, t0, t1)
	writeDiff(t, second, t1, t2)
	writeDiff(t, first, t2, t3)

	c, err := OpenDirs(newContext(), []string{first, second}, t0, nil)
	if err != nil {
		t.Fatalf("OpenDirs: %v", err)
	}
	defer c.Close()
	if c.Latest() != t3 || len(c.Links()) != 3 || len(c.Dirs()) != 2 {
		t.Fatalf("expected one chain across both directories, got %v", c.Identities())
	}
	if filepath.Dir(c.Links()[1].Pathname) != second {
		t.Errorf("expected %s to be read from %s", t2, second)
	}

	// the same snapshot reached from two directories
	writeDiff(t, second, t0, t1)
	if _, err := OpenDirs(newContext(), []string{first, second}, t0, nil); !errors.Is(err, objects.ErrBrokenChain) {
		t.Fatalf("expected ErrBrokenChain, got %v", err)
	}
}
