// Package streams defines the pluggable byte Source/Sink abstractions used by
// the transfer and download engines. A Source produces bytes for upload; a
// Sink consumes bytes during download. Both support ranged access so the
// multipart engines can fan a single logical transfer out into concurrent,
// independently retryable chunks.
package streams

import (
	"context"
	"fmt"
	"io"
)

// ProgressFunc is an optional hook a caller can attach to observe bytes moved
// as they happen. It is plumbing for an external progress-bar collaborator,
// not a feature of this package: nothing here renders progress itself.
type ProgressFunc func(delta int64)

// Source is a pluggable byte producer. Implementations backed by a local file
// or any other randomly-accessible medium should report HasRangeSupport() ==
// true so the transfer engine can split uploads into parallel parts and
// restart a failed part without re-reading everything from the start.
type Source interface {
	// Open returns a reader for count bytes starting at offset. When count is
	// negative, it reads to the end of the source. Open is called once per
	// attempt (including retries), so a fresh, independent reader must be
	// returned every time.
	Open(ctx context.Context, offset, count int64) (io.ReadCloser, error)

	// Size returns the total byte length of the source.
	Size() int64

	// HasRangeSupport reports whether Open can be called with an arbitrary
	// offset. Sources without range support may only be uploaded through the
	// single-part local transfer variant.
	HasRangeSupport() bool

	// ContentType returns the MIME type to advertise for the upload, or "" to
	// let the transport default.
	ContentType() string
}

// SinkState models a Sink's allocation lifecycle.
type SinkState int

const (
	SinkNotAllocated SinkState = iota
	SinkAllocated
	SinkClosed
)

func (s SinkState) String() string {
	switch s {
	case SinkNotAllocated:
		return "not_allocated"
	case SinkAllocated:
		return "allocated"
	case SinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrSinkNotAllocated is returned by OpenChunk when Allocate has not been
// called yet.
var ErrSinkNotAllocated = fmt.Errorf("streams: sink is not allocated")

// ErrSinkClosed is returned by any operation attempted after Close.
var ErrSinkClosed = fmt.Errorf("streams: sink is closed")

// Sink is a pluggable byte destination with a strict NotAllocated -> Allocated
// -> Closed state machine: OpenChunk is only valid while Allocated, and
// concurrent chunks opened for non-overlapping byte ranges may write in any
// order.
type Sink interface {
	// Allocate reserves size bytes of backing storage. Must be called exactly
	// once, before any OpenChunk call.
	Allocate(ctx context.Context, size int64) error

	// OpenChunk returns a writer positioned at offset. The caller must Close
	// it before the Sink itself is closed.
	OpenChunk(ctx context.Context, offset int64) (io.WriteCloser, error)

	// Close finalizes the sink. It must be safe to call after a failed
	// Allocate or OpenChunk, and idempotent.
	Close() error
}
