package retrieve

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/PlakarLabs/tilediff/apply"
	"github.com/PlakarLabs/tilediff/chain"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/diff"
	"github.com/PlakarLabs/tilediff/diffile"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
	"github.com/PlakarLabs/tilediff/stitch"

	_ "github.com/PlakarLabs/tilediff/snapshot/importer/fs"
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
	t0: {entry(0, 0, "a0"), entry(1, 0, "b0"), entry(2, 0, "c0"), entry(5, 5, "z")},
	t1: {entry(0, 0, "a1"), entry(1, 0, "b0"), entry(2, 0, "c0"), entry(5, 5, "z")},
	t2: {entry(0, 0, "a1"), entry(2, 0, "c2"), entry(3, 0, "d2"), entry(5, 5, "z")},
	t3: {entry(0, 0, "a3"), entry(2, 0, "c2"), entry(3, 0, "d2"), entry(1, 0, "b3"), entry(5, 5, "z")},
}

var order = []string{t0, t1, t2, t3}

func buildChain(t *testing.T, ctx *context.Context) *chain.Chain {
	t.Helper()
	dir := t.TempDir()
	for i := 1; i < len(order); i++ {
		d, err := diff.Compute(ctx,
			importer.NewMemorySource(order[i-1], snapshots[order[i-1]]),
			importer.NewMemorySource(order[i], snapshots[order[i]]))
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if err := diffile.WriteFile(filepath.Join(dir, diffile.FileName(order[i])), d); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	c, err := chain.Open(ctx, dir, t0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func run(t *testing.T, ctx *context.Context, r *Retriever, selection string) ([]*Version, *Result) {
	t.Helper()
	s, err := ParseSelection(selection)
	if err != nil {
		t.Fatalf("ParseSelection: %v", err)
	}
	var versions []*Version
	result, err := r.Run(ctx, s, func(v *Version) error {
		versions = append(versions, v)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return versions, result
}

func TestRetrieveLatest(t *testing.T) {
	ctx := context.NewContext()
	r := New(buildChain(t, ctx), importer.NewMemorySource(t0, snapshots[t0]), Options{})

	versions, result := run(t, ctx, r, "0-0..3-0")
	if len(versions) != 1 || result.Versions != 1 || result.Target != t3 {
		t.Fatalf("expected one version at %s, got %d at %s", t3, len(versions), result.Target)
	}
	v := versions[0]
	expected := map[objects.Coord]string{{X: 0, Y: 0}: "a3", {X: 1, Y: 0}: "b3", {X: 2, Y: 0}: "c2", {X: 3, Y: 0}: "d2"}
	if len(v.Chunks) != len(expected) {
		t.Fatalf("expected %d chunks, got %d", len(expected), len(v.Chunks))
	}
	for coord, data := range expected {
		if string(v.Chunks[coord]) != data {
			t.Errorf("chunk %s: expected %q, got %q", coord, data, v.Chunks[coord])
		}
	}
	if len(result.NotFound) != 0 {
		t.Errorf("unexpected missing chunks %v", result.NotFound)
	}
}

func TestRetrieveTarget(t *testing.T) {
	ctx := context.NewContext()
	c := buildChain(t, ctx)

	for _, target := range order {
		r := New(c, importer.NewMemorySource(t0, snapshots[t0]), Options{Target: target})
		versions, _ := run(t, ctx, r, "0-0..3-0")
		if len(versions) != 1 || versions[0].Identity != target {
			t.Fatalf("%s: unexpected versions %v", target, versions)
		}
		want := make(map[objects.Coord]string)
		for _, e := range snapshots[target] {
			if e.Coord.Y == 0 && e.Coord.X <= 3 {
				want[e.Coord] = string(e.Data)
			}
		}
		got := versions[0].Chunks
		if len(got) != len(want) {
			t.Fatalf("%s: expected %d chunks, got %d", target, len(want), len(got))
		}
		for coord, data := range want {
			if string(got[coord]) != data {
				t.Errorf("%s: chunk %s: expected %q, got %q", target, coord, data, got[coord])
			}
		}
	}
}

func TestRetrieveHistory(t *testing.T) {
	ctx := context.NewContext()
	r := New(buildChain(t, ctx), importer.NewMemorySource(t0, snapshots[t0]), Options{History: true})

	versions, _ := run(t, ctx, r, "1-0")
	if len(versions) != 2 {
		t.Fatalf("expected one version per diff touching 1-0, got %d", len(versions))
	}
	if versions[0].Identity != t2 || len(versions[0].Chunks) != 0 || len(versions[0].Removed) != 1 {
		t.Errorf("expected 1-0 removed at %s, got %+v", t2, versions[0])
	}
	if versions[1].Identity != t3 || string(versions[1].Chunks[objects.Coord{X: 1, Y: 0}]) != "b3" {
		t.Errorf("expected 1-0 re-added at %s, got %+v", t3, versions[1])
	}

	// unchanged chunks are carried along in every version
	versions, _ = run(t, ctx, r, "1-0,5-5")
	for _, v := range versions {
		if string(v.Chunks[objects.Coord{X: 5, Y: 5}]) != "z" {
			t.Errorf("%s: expected 5-5 from the base, got %q", v.Identity, v.Chunks[objects.Coord{X: 5, Y: 5}])
		}
	}

	// a chunk never touched by the chain has no history
	versions, result := run(t, ctx, r, "5-5")
	if len(versions) != 0 || result.Versions != 0 || len(result.NotFound) != 0 {
		t.Errorf("expected no version and no missing chunk, got %d versions, %v", len(versions), result.NotFound)
	}
}

func TestRetrieveDirectoryBase(t *testing.T) {
	ctx := context.NewContext()
	c := buildChain(t, ctx)

	// snapshots extracted with their root folder keep it in every path
	root := filepath.Join(t.TempDir(), t0)
	for _, e := range snapshots[t0] {
		pathname := filepath.Join(root, "snap", fmt.Sprint(e.Coord.X), fmt.Sprintf("%d.png", e.Coord.Y))
		if err := os.MkdirAll(filepath.Dir(pathname), 0700); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(pathname, e.Data, 0600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	base, err := importer.NewImporter(root, &importer.Options{Extension: "png"})
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	defer base.Close()
	if _, ok := importer.AsLookuper(base); !ok {
		t.Fatalf("expected directory bases to support lookups")
	}

	fromDir, result := run(t, ctx, New(c, base, Options{}), "0-0..3-0,5-5")
	if len(result.NotFound) != 0 {
		t.Fatalf("unexpected missing chunks %v", result.NotFound)
	}
	fromMemory, _ := run(t, ctx, New(c, importer.NewMemorySource(t0, snapshots[t0]), Options{}), "0-0..3-0,5-5")
	if len(fromDir[0].Chunks) != len(fromMemory[0].Chunks) {
		t.Fatalf("expected %d chunks, got %d", len(fromMemory[0].Chunks), len(fromDir[0].Chunks))
	}
	for coord, data := range fromMemory[0].Chunks {
		if !bytes.Equal(fromDir[0].Chunks[coord], data) {
			t.Errorf("chunk %s: expected %q, got %q", coord, data, fromDir[0].Chunks[coord])
		}
	}
}

func TestRetrieveNotFound(t *testing.T) {
	ctx := context.NewContext()
	r := New(buildChain(t, ctx), importer.NewMemorySource(t0, snapshots[t0]), Options{})

	versions, result := run(t, ctx, r, "0-0,9-9,3-0")
	if len(result.NotFound) != 1 || !errors.Is(result.NotFound[0], objects.ErrChunkNotFound) {
		t.Fatalf("expected 9-9 to be reported missing, got %v", result.NotFound)
	}
	var chunkErr *objects.ChunkError
	if !errors.As(result.NotFound[0], &chunkErr) || chunkErr.Coord != (objects.Coord{X: 9, Y: 9}) {
		t.Errorf("unexpected error %v", result.NotFound[0])
	}
	if len(versions[0].Chunks) != 2 {
		t.Errorf("expected the other chunks to be retrieved, got %d", len(versions[0].Chunks))
	}

	// 3-0 only exists after t2
	r.Options.Target = t1
	_, result = run(t, ctx, r, "3-0")
	if len(result.NotFound) != 1 {
		t.Errorf("expected 3-0 missing at %s", t1)
	}
}

func TestRetrieveUnknownTarget(t *testing.T) {
	ctx := context.NewContext()
	r := New(buildChain(t, ctx), importer.NewMemorySource(t0, snapshots[t0]), Options{Target: "2030-01-01T00-00-00.000Z"})
	s, _ := ParseSelection("0-0")
	if _, err := r.Run(ctx, s, func(*Version) error { return nil }); !errors.Is(err, objects.ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
}

// retrieving a selection must agree with applying the whole chain
func TestRetrieveMatchesApply(t *testing.T) {
	ctx := context.NewContext()
	c := buildChain(t, ctx)

	current := snapshots[t0]
	identity := t0
	for _, link := range c.Links() {
		d, err := diffile.ReadFile(link.Pathname, nil)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		var next []objects.Entry
		if _, err := apply.Apply(ctx, importer.NewMemorySource(identity, current), d, nil, func(e objects.Entry) error {
			next = append(next, e)
			return nil
		}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		current, identity = next, link.Identity()
	}

	r := New(c, importer.NewMemorySource(t0, snapshots[t0]), Options{})
	versions, _ := run(t, ctx, r, "0-0..5-5")
	if len(versions[0].Chunks) != len(current) {
		t.Fatalf("expected %d chunks, got %d", len(current), len(versions[0].Chunks))
	}
	for _, e := range current {
		if !bytes.Equal(versions[0].Chunks[e.Coord], e.Data) {
			t.Errorf("chunk %s differs from the applied chain", e.Coord)
		}
	}
}

func TestRetrieveCorruptPayload(t *testing.T) {
	ctx := context.NewContext()
	c := buildChain(t, ctx)

	link := c.Links()[len(c.Links())-1]
	loc, _ := link.Index.Find(objects.Coord{X: 1, Y: 0})
	data, err := os.ReadFile(link.Pathname)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data[loc.Offset] ^= 0x01
	if err := os.WriteFile(link.Pathname, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, _ := ParseSelection("1-0")
	r := New(c, importer.NewMemorySource(t0, snapshots[t0]), Options{})
	if _, err := r.Run(ctx, s, func(*Version) error { return nil }); !errors.Is(err, objects.ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}

	r.Options.DisableChecksum = true
	if _, err := r.Run(ctx, s, func(*Version) error { return nil }); err != nil {
		t.Fatalf("expected the check to be skipped, got %v", err)
	}
}

func pngTile(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := stitch.Encode(&buf, img); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes()
}

func TestOutput(t *testing.T) {
	ctx := context.NewContext()
	ctx.SetMaxConcurrency(2)
	dir := t.TempDir()

	selection, _ := ParseSelection("0-0..1-0")
	out, err := NewOutput(ctx, dir, selection, OutputOptions{Stitch: true})
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}

	red := pngTile(t, color.NRGBA{R: 0xff, A: 0xff})
	version := &Version{
		Identity: "2025-08-09T20:00:00.000Z",
		Chunks:   map[objects.Coord][]byte{{X: 0, Y: 0}: red},
		Changed:  []objects.Coord{{X: 0, Y: 0}},
	}
	if err := out.Write(version); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := out.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "0-0", "2025-08-09T20-00-00.000Z.png"))
	if err != nil {
		t.Fatalf("expected the raw chunk to be written: %v", err)
	}
	if !bytes.Equal(raw, red) {
		t.Errorf("raw chunk content differs")
	}

	stitched, err := os.ReadFile(filepath.Join(dir, "stitched", "2025-08-09T20-00-00.000Z.png"))
	if err != nil {
		t.Fatalf("expected the composite to be written: %v", err)
	}
	img, err := stitch.Decode(stitched)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Errorf("unexpected composite size %v", img.Bounds())
	}
	if _, _, _, a := img.At(3, 0).RGBA(); a != 0 {
		t.Errorf("expected the missing tile to be transparent")
	}
}

func TestOutputStitchNeedsRectangle(t *testing.T) {
	ctx := context.NewContext()
	selection, _ := ParseSelection("0-0,2-2")
	if _, err := NewOutput(ctx, t.TempDir(), selection, OutputOptions{Stitch: true}); !errors.Is(err, objects.ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection stitching a sparse selection, got %v", err)
	}
	if _, err := NewOutput(ctx, t.TempDir(), selection, OutputOptions{}); err != nil {
		t.Fatalf("NewOutput: %v", err)
	}
}
