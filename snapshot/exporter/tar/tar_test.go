package tar

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/exporter"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
	_ "github.com/PlakarLabs/tilediff/snapshot/importer/tar"
)

func export(t *testing.T, dest string, entries []objects.Entry) {
	t.Helper()
	exp, err := exporter.NewExporter(dest, nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	for _, entry := range entries {
		if err := exp.StoreChunk(entry); err != nil {
			t.Fatalf("StoreChunk: %v", err)
		}
	}
	if err := exp.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestTarExporter(t *testing.T) {
	entries := []objects.Entry{
		objects.NewEntry(objects.Coord{X: 0, Y: 0}, []byte("A")),
		objects.NewEntry(objects.Coord{X: 4, Y: 1}, bytes.Repeat([]byte("B"), 700)),
	}

	for _, name := range []string{"snap.tar", "snap.tar.gz", "snap.tar.lz4"} {
		t.Run(name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), name)
			export(t, dest, entries)

			src, err := importer.NewImporter(dest, &importer.Options{Identity: "snap"})
			if err != nil {
				t.Fatalf("NewImporter: %v", err)
			}
			defer src.Close()

			got := make(map[objects.Coord][]byte)
			for entry, err := range src.Entries() {
				if err != nil {
					t.Fatalf("Entries: %v", err)
				}
				got[entry.Coord] = entry.Data
			}
			for _, entry := range entries {
				if !bytes.Equal(got[entry.Coord], entry.Data) {
					t.Errorf("chunk %s: content mismatch", entry.Coord)
				}
			}
		})
	}
}

func TestTarExporterDeterministic(t *testing.T) {
	entries := []objects.Entry{
		objects.NewEntry(objects.Coord{X: 1, Y: 2}, []byte("tile")),
	}
	dir := t.TempDir()
	first := filepath.Join(dir, "a.tar")
	second := filepath.Join(dir, "b.tar")
	export(t, first, entries)
	export(t, second, entries)

	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("expected identical tarballs for identical entries")
	}
}

func TestTarExporterAbort(t *testing.T) {
	dir := t.TempDir()
	exp, err := exporter.NewExporter(filepath.Join(dir, "snap.tar"), nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	if err := exp.StoreChunk(objects.NewEntry(objects.Coord{}, []byte("x"))); err != nil {
		t.Fatalf("StoreChunk: %v", err)
	}
	if err := exp.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	leftovers, _ := os.ReadDir(dir)
	if len(leftovers) != 0 {
		t.Fatalf("expected no leftovers after abort, found %d", len(leftovers))
	}
}
