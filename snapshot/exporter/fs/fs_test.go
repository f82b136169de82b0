package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/snapshot/exporter"
	"github.com/PlakarLabs/tilediff/snapshot/importer"
	_ "github.com/PlakarLabs/tilediff/snapshot/importer/fs"
)

func TestFSExporterCommit(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out", "2025-08-09T21-00-00.000Z")

	exp, err := exporter.NewExporter(dest, &exporter.Options{Extension: "png"})
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	entries := []objects.Entry{
		objects.NewEntry(objects.Coord{X: 0, Y: 0}, []byte("A")),
		objects.NewEntry(objects.Coord{X: 2, Y: 9}, []byte("B")),
	}
	for _, entry := range entries {
		if err := exp.StoreChunk(entry); err != nil {
			t.Fatalf("StoreChunk: %v", err)
		}
	}

	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("destination must not exist before commit")
	}
	if err := exp.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	src, err := importer.NewImporter(dest, nil)
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	got := make(map[objects.Coord]string)
	for entry, err := range src.Entries() {
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		got[entry.Coord] = string(entry.Data)
	}
	if len(got) != 2 || got[objects.Coord{X: 0, Y: 0}] != "A" || got[objects.Coord{X: 2, Y: 9}] != "B" {
		t.Errorf("unexpected content %v", got)
	}

	if err := exp.StoreChunk(entries[0]); err == nil {
		t.Errorf("expected StoreChunk to fail after commit")
	}
}

func TestFSExporterAbort(t *testing.T) {
	parent := t.TempDir()
	dest := filepath.Join(parent, "snapshot")

	exp, err := exporter.NewExporter(dest, nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	if err := exp.StoreChunk(objects.NewEntry(objects.Coord{X: 1, Y: 1}, []byte("partial"))); err != nil {
		t.Fatalf("StoreChunk: %v", err)
	}
	if err := exp.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftovers after abort, found %d entries", len(entries))
	}
}

func TestFSExporterRefusesNonEmptyDestination(t *testing.T) {
	dest := t.TempDir()
	if err := os.WriteFile(filepath.Join(dest, "existing"), []byte("x"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := exporter.NewExporter(dest, nil); err == nil {
		t.Fatalf("expected an error for a non-empty destination")
	}
}
