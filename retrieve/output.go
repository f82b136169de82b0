package retrieve

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/objects"
	"github.com/PlakarLabs/tilediff/stitch"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type OutputOptions struct {
	Extension    string
	Stitch       bool
	OnlyStitched bool
	Blank        stitch.Blank
	TileSize     int
}

// Output writes retrieved versions under a directory: raw chunks at
// <dir>/<x>-<y>/<identity>.<ext> and composites at
// <dir>/stitched/<identity>.png.
type Output struct {
	dir  string
	opts OutputOptions
	grid stitch.Grid
	wg   *errgroup.Group
}

func NewOutput(ctx *context.Context, dir string, selection Selection, opts OutputOptions) (*Output, error) {
	if opts.Extension == "" {
		opts.Extension = "png"
	}
	opts.Extension = strings.TrimPrefix(opts.Extension, ".")
	if (opts.Stitch || opts.OnlyStitched) && !selection.Rectangular() {
		return nil, fmt.Errorf("%w: stitching needs a rectangular selection", objects.ErrInvalidSelection)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	bounds := selection.Bounds()
	wg := &errgroup.Group{}
	wg.SetLimit(ctx.GetMaxConcurrency())
	return &Output{
		dir:  dir,
		opts: opts,
		grid: stitch.Grid{Min: bounds.Min, Max: bounds.Max, TileSize: opts.TileSize},
		wg:   wg,
	}, nil
}

// identities may carry colons, file names never do
func fileIdentity(identity string) string {
	return strings.ReplaceAll(identity, ":", "-")
}

func writeFile(pathname string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(pathname), 0755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp-%s", pathname, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, pathname); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (o *Output) ChunkPath(coord objects.Coord, identity string) string {
	return filepath.Join(o.dir, coord.String(), fileIdentity(identity)+"."+o.opts.Extension)
}

func (o *Output) StitchedPath(identity string) string {
	return filepath.Join(o.dir, "stitched", fileIdentity(identity)+".png")
}

// Write queues the files of one version on the writer pool.
func (o *Output) Write(version *Version) error {
	if !o.opts.OnlyStitched {
		for _, coord := range version.Changed {
			data := version.Chunks[coord]
			pathname := o.ChunkPath(coord, version.Identity)
			o.wg.Go(func() error {
				return writeFile(pathname, data)
			})
		}
	}

	if o.opts.Stitch || o.opts.OnlyStitched {
		chunks := version.Chunks
		pathname := o.StitchedPath(version.Identity)
		o.wg.Go(func() error {
			tiles := make(map[objects.Coord]image.Image, len(chunks))
			for coord, data := range chunks {
				if !o.grid.Contains(coord) {
					continue
				}
				tile, err := stitch.Decode(data)
				if err != nil {
					return fmt.Errorf("chunk %s: %w", coord, err)
				}
				tiles[coord] = tile
			}
			composite, err := stitch.Compose(o.grid, tiles, o.opts.Blank)
			if err != nil {
				return fmt.Errorf("%s: %w", version.Identity, err)
			}
			var buf bytes.Buffer
			if err := stitch.Encode(&buf, composite); err != nil {
				return err
			}
			return writeFile(pathname, buf.Bytes())
		})
	}
	return nil
}

// Wait blocks until every queued file is written.
func (o *Output) Wait() error {
	return o.wg.Wait()
}
