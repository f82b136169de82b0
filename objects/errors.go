package objects

import (
	"errors"
	"fmt"
)

var (
	ErrSourceRead            = errors.New("source read error")
	ErrDuplicateChunk        = errors.New("duplicate chunk")
	ErrIntegrity             = errors.New("integrity error")
	ErrParentMismatch        = errors.New("parent mismatch")
	ErrBrokenChain           = errors.New("broken chain")
	ErrUnknownTarget         = errors.New("unknown target")
	ErrDanglingRemove        = errors.New("dangling remove")
	ErrInconsistentOperation = errors.New("inconsistent operation")
	ErrChunkNotFound         = errors.New("chunk not found")
	ErrInvalidSelection      = errors.New("invalid selection")
)

// ChunkError ties a failure to the chunk it was detected on.
type ChunkError struct {
	Err     error
	Coord   Coord
	Message string
}

func NewChunkError(err error, coord Coord, format string, args ...interface{}) *ChunkError {
	return &ChunkError{Err: err, Coord: coord, Message: fmt.Sprintf(format, args...)}
}

func (e *ChunkError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: chunk %s", e.Err, e.Coord)
	}
	return fmt.Sprintf("%s: chunk %s: %s", e.Err, e.Coord, e.Message)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// SnapshotError ties a failure to a snapshot or diff identity.
type SnapshotError struct {
	Err      error
	Identity string
	Message  string
}

func NewSnapshotError(err error, identity string, format string, args ...interface{}) *SnapshotError {
	return &SnapshotError{Err: err, Identity: identity, Message: fmt.Sprintf(format, args...)}
}

func (e *SnapshotError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Identity)
	}
	return fmt.Sprintf("%s: %s: %s", e.Err, e.Identity, e.Message)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// SourceError wraps an underlying I/O failure of a snapshot container.
func SourceError(location string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceRead, location, err)
}
