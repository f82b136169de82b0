package objects

import (
	"errors"
	"sort"
	"testing"
)

func TestCoordOrder(t *testing.T) {
	coords := []Coord{{2, 0}, {0, 5}, {1, 1}, {0, 1}, {1, 0}}
	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })

	expected := []Coord{{0, 1}, {0, 5}, {1, 0}, {1, 1}, {2, 0}}
	for i := range expected {
		if coords[i] != expected[i] {
			t.Fatalf("position %d: expected %s but got %s", i, expected[i], coords[i])
		}
	}
}

func TestParseCoord(t *testing.T) {
	tests := []struct {
		input string
		want  Coord
		ok    bool
	}{
		{"0-0", Coord{0, 0}, true},
		{"1717-837", Coord{1717, 837}, true},
		{"12", Coord{}, false},
		{"a-1", Coord{}, false},
		{"1-2-3", Coord{}, false},
		{"-1-2", Coord{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCoord(tt.input)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatalf("expected error for %q", tt.input)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if tt.ok && got.String() != tt.input {
				t.Errorf("String() = %q, want %q", got.String(), tt.input)
			}
		})
	}
}

func TestExtractIdentity(t *testing.T) {
	tests := map[string]string{
		"/archives/2025-08-09T20-01-14.231Z":         "2025-08-09T20-01-14.231Z",
		"tiles-2025-08-09T20-01-14.231Z.tar.gz":      "2025-08-09T20-01-14.231Z",
		"diffs/2025-08-09T21:01:14.000Z.diff":        "2025-08-09T21:01:14.000Z",
		"/tmp/base.tar":                              "base",
		"child/":                                     "child",
		"snapshot.tar.lz4":                           "snapshot",
		"2025-08-10T00-00-00Z":                       "2025-08-10T00-00-00Z",
		"noise-2025-08-09T20-01-14.231Z-suffix.diff": "2025-08-09T20-01-14.231Z",
	}
	for input, want := range tests {
		if got := ExtractIdentity(input); got != want {
			t.Errorf("ExtractIdentity(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCompareIdentities(t *testing.T) {
	a := "2025-08-09T20-01-14.231Z"
	b := "2025-08-09T20:01:15.000Z"
	if CompareIdentities(a, b) >= 0 {
		t.Errorf("expected %s before %s", a, b)
	}
	if CompareIdentities(b, a) <= 0 {
		t.Errorf("expected %s after %s", b, a)
	}
	if CompareIdentities(a, a) != 0 {
		t.Errorf("expected %s equal to itself", a)
	}
	if CompareIdentities("alpha", "beta") >= 0 {
		t.Errorf("expected lexical fallback")
	}

	if _, ok := IdentityTime("base"); ok {
		t.Errorf("expected no timestamp in %q", "base")
	}
}

func TestErrorWrapping(t *testing.T) {
	err := NewChunkError(ErrIntegrity, Coord{3, 4}, "payload checksum mismatch")
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ChunkError to unwrap to ErrIntegrity")
	}
	var chunkErr *ChunkError
	if !errors.As(error(err), &chunkErr) || chunkErr.Coord != (Coord{3, 4}) {
		t.Fatalf("expected errors.As to recover the coordinate")
	}
	if err.Error() != "integrity error: chunk 3-4: payload checksum mismatch" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	serr := NewSnapshotError(ErrUnknownTarget, "2025-08-09T20-01-14.231Z", "")
	if !errors.Is(serr, ErrUnknownTarget) {
		t.Fatalf("expected SnapshotError to unwrap to ErrUnknownTarget")
	}

	if !errors.Is(SourceError("/nowhere", errors.New("boom")), ErrSourceRead) {
		t.Fatalf("expected SourceError to wrap ErrSourceRead")
	}
}
