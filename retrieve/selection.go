package retrieve

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/PlakarLabs/tilediff/objects"
)

// MaxSelection bounds the number of coordinates a selection may expand to.
const MaxSelection = 1 << 20

// Selection is a sorted set of coordinates without duplicates.
type Selection []objects.Coord

type Bounds struct {
	Min objects.Coord
	Max objects.Coord
}

func (b Bounds) Width() int {
	return int(b.Max.X-b.Min.X) + 1
}

func (b Bounds) Height() int {
	return int(b.Max.Y-b.Min.Y) + 1
}

func invalid(s string, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %q: %s", objects.ErrInvalidSelection, s, fmt.Sprintf(format, args...))
}

// ParseSelection accepts comma separated coordinates "x-y" and
// rectangles "x1-y1..x2-y2" given by any two opposite corners.
// Whitespace is ignored.
func ParseSelection(s string) (Selection, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if compact == "" {
		return nil, invalid(s, "empty selection")
	}

	set := make(map[objects.Coord]struct{})
	for _, atom := range strings.Split(compact, ",") {
		if atom == "" {
			return nil, invalid(s, "empty element")
		}

		from, to, isRange := strings.Cut(atom, "..")
		if !isRange {
			coord, err := objects.ParseCoord(atom)
			if err != nil {
				return nil, invalid(s, "%s", err)
			}
			set[coord] = struct{}{}
			continue
		}

		a, err := objects.ParseCoord(from)
		if err != nil {
			return nil, invalid(s, "%s", err)
		}
		b, err := objects.ParseCoord(to)
		if err != nil {
			return nil, invalid(s, "%s", err)
		}
		bounds := Bounds{
			Min: objects.Coord{X: min(a.X, b.X), Y: min(a.Y, b.Y)},
			Max: objects.Coord{X: max(a.X, b.X), Y: max(a.Y, b.Y)},
		}
		if uint64(bounds.Width())*uint64(bounds.Height())+uint64(len(set)) > MaxSelection {
			return nil, invalid(s, "more than %d chunks", MaxSelection)
		}
		for x := bounds.Min.X; ; x++ {
			for y := bounds.Min.Y; ; y++ {
				set[objects.Coord{X: x, Y: y}] = struct{}{}
				if y == bounds.Max.Y {
					break
				}
			}
			if x == bounds.Max.X {
				break
			}
		}
	}

	if len(set) > MaxSelection {
		return nil, invalid(s, "more than %d chunks", MaxSelection)
	}
	ret := make(Selection, 0, len(set))
	for coord := range set {
		ret = append(ret, coord)
	}
	slices.SortFunc(ret, objects.Coord.Compare)
	return ret, nil
}

func (s Selection) Contains(coord objects.Coord) bool {
	_, found := slices.BinarySearchFunc(s, coord, objects.Coord.Compare)
	return found
}

// Bounds is the smallest rectangle holding every selected coordinate.
func (s Selection) Bounds() Bounds {
	if len(s) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: s[0], Max: s[0]}
	for _, coord := range s[1:] {
		b.Min.X = min(b.Min.X, coord.X)
		b.Min.Y = min(b.Min.Y, coord.Y)
		b.Max.X = max(b.Max.X, coord.X)
		b.Max.Y = max(b.Max.Y, coord.Y)
	}
	return b
}

// Rectangular reports whether the selection fills its bounds.
func (s Selection) Rectangular() bool {
	if len(s) == 0 {
		return false
	}
	b := s.Bounds()
	return uint64(b.Width())*uint64(b.Height()) == uint64(len(s))
}
