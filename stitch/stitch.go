package stitch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"slices"

	"github.com/PlakarLabs/tilediff/objects"
	"github.com/gabriel-vasile/mimetype"
)

// MaxPixels bounds the size of a composite, 1 GiB of NRGBA pixels.
const MaxPixels = 1 << 28

var ErrTooLarge = errors.New("composite too large")

// Grid is the rectangle of chunks a composite covers, inclusive.
type Grid struct {
	Min objects.Coord
	Max objects.Coord

	// used when no tile is available to size the composite
	TileSize int
}

func (g Grid) Columns() int {
	return int(g.Max.X-g.Min.X) + 1
}

func (g Grid) Rows() int {
	return int(g.Max.Y-g.Min.Y) + 1
}

func (g Grid) Contains(coord objects.Coord) bool {
	return coord.X >= g.Min.X && coord.X <= g.Max.X && coord.Y >= g.Min.Y && coord.Y <= g.Max.Y
}

// Blank is the fill of grid cells without a tile. A nil color leaves
// them transparent.
type Blank struct {
	Color color.Color
}

// Compose lays tiles out on grid, X growing rightward and Y downward.
// Every tile must have the same dimensions.
func Compose(grid Grid, tiles map[objects.Coord]image.Image, blank Blank) (*image.NRGBA, error) {
	if grid.Max.X < grid.Min.X || grid.Max.Y < grid.Min.Y {
		return nil, fmt.Errorf("empty grid")
	}

	coords := make([]objects.Coord, 0, len(tiles))
	for coord := range tiles {
		if !grid.Contains(coord) {
			return nil, fmt.Errorf("tile %s outside of grid", coord)
		}
		coords = append(coords, coord)
	}
	slices.SortFunc(coords, objects.Coord.Compare)

	width, height := grid.TileSize, grid.TileSize
	if len(coords) != 0 {
		bounds := tiles[coords[0]].Bounds()
		width, height = bounds.Dx(), bounds.Dy()
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("unknown tile size")
	}

	pixels := uint64(grid.Columns()) * uint64(width) * uint64(grid.Rows()) * uint64(height)
	if pixels > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d tiles of %dx%d", ErrTooLarge, grid.Columns(), grid.Rows(), width, height)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, grid.Columns()*width, grid.Rows()*height))
	if blank.Color != nil {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(blank.Color), image.Point{}, draw.Src)
	}

	for _, coord := range coords {
		tile := tiles[coord]
		bounds := tile.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			return nil, fmt.Errorf("tile %s is %dx%d, expected %dx%d", coord, bounds.Dx(), bounds.Dy(), width, height)
		}
		origin := image.Pt(int(coord.X-grid.Min.X)*width, int(coord.Y-grid.Min.Y)*height)
		draw.Draw(canvas, image.Rectangle{Min: origin, Max: origin.Add(bounds.Size())}, tile, bounds.Min, draw.Src)
	}
	return canvas, nil
}

// Decode decodes a chunk payload after sniffing its format.
func Decode(data []byte) (image.Image, error) {
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("image/png"):
		return png.Decode(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("unsupported chunk format %s", mtype.String())
}

func Encode(w io.Writer, img image.Image) error {
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	return encoder.Encode(w, img)
}
