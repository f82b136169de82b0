package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
)

func writeChunk(t *testing.T, root string, rel string, data string) {
	t.Helper()
	pathname := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(pathname), 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(pathname, []byte(data), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestFSImporter(t *testing.T) {
	root := filepath.Join(t.TempDir(), "2025-08-09T20-01-14.231Z")
	writeChunk(t, root, "0/0.png", "A")
	writeChunk(t, root, "0/1.png", "B")
	writeChunk(t, root, "3/2.png", "C")
	writeChunk(t, root, "3/notes.txt", "ignored")
	writeChunk(t, root, "3/2.webp", "ignored")

	src, err := importer.NewImporter(root, &importer.Options{Extension: "png", MaxConcurrency: 2})
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	defer src.Close()

	if src.Identity() != "2025-08-09T20-01-14.231Z" {
		t.Errorf("unexpected identity %q", src.Identity())
	}

	got := make(map[objects.Coord]string)
	for entry, err := range src.Entries() {
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		got[entry.Coord] = string(entry.Data)
	}
	expected := map[objects.Coord]string{
		{X: 0, Y: 0}: "A",
		{X: 0, Y: 1}: "B",
		{X: 3, Y: 2}: "C",
	}
	if len(got) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(got))
	}
	for coord, data := range expected {
		if got[coord] != data {
			t.Errorf("chunk %s: expected %q, got %q", coord, data, got[coord])
		}
	}

	lookuper, ok := importer.AsLookuper(src)
	if !ok {
		t.Fatalf("expected the fs backend to support lookups")
	}
	data, found, err := lookuper.Lookup(objects.Coord{X: 3, Y: 2})
	if err != nil || !found || string(data) != "C" {
		t.Errorf("Lookup(3-2) = %q, %v, %v", data, found, err)
	}
	if _, found, err := lookuper.Lookup(objects.Coord{X: 9, Y: 9}); err != nil || found {
		t.Errorf("expected 9-9 to be absent, got %v, %v", found, err)
	}
}

func TestFSImporterEarlyBreak(t *testing.T) {
	root := t.TempDir()
	for y := 0; y < 100; y++ {
		writeChunk(t, root, fmt.Sprintf("7/%d.png", y), "tile")
	}

	src, err := importer.NewImporter(root, &importer.Options{Identity: "base"})
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	count := 0
	for _, err := range src.Entries() {
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		count++
		if count == 3 {
			break
		}
	}
	if count != 3 {
		t.Fatalf("expected to stop after 3 entries, got %d", count)
	}
	if src.Identity() != "base" {
		t.Errorf("expected identity override, got %q", src.Identity())
	}
}

func TestFSImporterMissingRoot(t *testing.T) {
	_, err := importer.NewImporter(filepath.Join(t.TempDir(), "missing"), nil)
	if !errors.Is(err, objects.ErrSourceRead) {
		t.Fatalf("expected ErrSourceRead, got %v", err)
	}
}

func TestFSImporterNestedRoot(t *testing.T) {
	root := t.TempDir()
	writeChunk(t, root, "snap/1/0.png", "B")
	writeChunk(t, root, "snap/2/0.png", "C")

	src, err := importer.NewImporter(root, &importer.Options{Identity: "base"})
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	defer src.Close()

	lookuper, ok := importer.AsLookuper(src)
	if !ok {
		t.Fatalf("expected the fs backend to support lookups")
	}
	for entry, err := range src.Entries() {
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		data, found, err := lookuper.Lookup(entry.Coord)
		if err != nil || !found || string(data) != string(entry.Data) {
			t.Errorf("Lookup(%s) = %q, %v, %v, want %q", entry.Coord, data, found, err, entry.Data)
		}
	}
}

func TestFSImporterLookupDuplicate(t *testing.T) {
	root := t.TempDir()
	writeChunk(t, root, "a/1/0.png", "B")
	writeChunk(t, root, "b/1/0.png", "B")

	src, err := importer.NewImporter(root, &importer.Options{Identity: "base"})
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	defer src.Close()

	lookuper, _ := importer.AsLookuper(src)
	if _, _, err := lookuper.Lookup(objects.Coord{X: 1, Y: 0}); !errors.Is(err, objects.ErrDuplicateChunk) {
		t.Fatalf("expected ErrDuplicateChunk, got %v", err)
	}
}

func TestFSImporterExcludes(t *testing.T) {
	root := t.TempDir()
	writeChunk(t, root, "0/0.png", "A")
	writeChunk(t, root, "0/1.png", "B")

	excludes, err := importer.CompileExcludes([]string{"0/1.png"})
	if err != nil {
		t.Fatalf("CompileExcludes: %v", err)
	}
	src, err := importer.NewImporter(root, &importer.Options{Identity: "base", Excludes: excludes})
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	defer src.Close()

	count := 0
	for entry, err := range src.Entries() {
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		if entry.Coord != (objects.Coord{X: 0, Y: 0}) {
			t.Errorf("unexpected entry %s", entry.Coord)
		}
		count++
	}
	if count != 1 {
		t.Errorf("expected one entry, got %d", count)
	}
	lookuper, _ := importer.AsLookuper(src)
	if _, found, err := lookuper.Lookup(objects.Coord{X: 0, Y: 1}); err != nil || found {
		t.Errorf("expected excluded chunk to be absent, got %v, %v", found, err)
	}
}
