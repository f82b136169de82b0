package events

import (
	"time"

	"github.com/PlakarLabs/tilediff/objects"
)

type Event interface {
	Timestamp() time.Time
}

/**/
type Start struct {
	ts time.Time

	Operation string
}

func StartEvent(operation string) Start {
	return Start{ts: time.Now(), Operation: operation}
}
func (e Start) Timestamp() time.Time {
	return e.ts
}

/**/
type Done struct {
	ts time.Time

	Operation string
}

func DoneEvent(operation string) Done {
	return Done{ts: time.Now(), Operation: operation}
}
func (e Done) Timestamp() time.Time {
	return e.ts
}

/**/
type ChunkIdentical struct {
	ts time.Time

	Coord objects.Coord
}

func ChunkIdenticalEvent(coord objects.Coord) ChunkIdentical {
	return ChunkIdentical{ts: time.Now(), Coord: coord}
}
func (e ChunkIdentical) Timestamp() time.Time {
	return e.ts
}

/**/
type ChunkDiffers struct {
	ts time.Time

	Coord objects.Coord
}

func ChunkDiffersEvent(coord objects.Coord) ChunkDiffers {
	return ChunkDiffers{ts: time.Now(), Coord: coord}
}
func (e ChunkDiffers) Timestamp() time.Time {
	return e.ts
}

/**/
type ChunkMissing struct {
	ts time.Time

	Coord objects.Coord
	Side  string
}

func ChunkMissingEvent(coord objects.Coord, side string) ChunkMissing {
	return ChunkMissing{ts: time.Now(), Coord: coord, Side: side}
}
func (e ChunkMissing) Timestamp() time.Time {
	return e.ts
}

/**/
type ChunkIndexed struct {
	ts time.Time

	Coord objects.Coord
	Size  int
}

func ChunkIndexedEvent(coord objects.Coord, size int) ChunkIndexed {
	return ChunkIndexed{ts: time.Now(), Coord: coord, Size: size}
}
func (e ChunkIndexed) Timestamp() time.Time {
	return e.ts
}

/**/
type DiffScanned struct {
	ts time.Time

	Identity string
	Count    uint64
}

func DiffScannedEvent(identity string, count uint64) DiffScanned {
	return DiffScanned{ts: time.Now(), Identity: identity, Count: count}
}
func (e DiffScanned) Timestamp() time.Time {
	return e.ts
}

/**/
type VersionRetrieved struct {
	ts time.Time

	Identity string
	Chunks   int
}

func VersionRetrievedEvent(identity string, chunks int) VersionRetrieved {
	return VersionRetrieved{ts: time.Now(), Identity: identity, Chunks: chunks}
}
func (e VersionRetrieved) Timestamp() time.Time {
	return e.ts
}
