package streams

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemorySource serves a fixed in-memory byte slice. It is the backing used by
// tests for the part-math and multipart round-trip properties, and is handy
// for small payloads (request metadata, thumbnails) that don't warrant a
// temporary file.
type MemorySource struct {
	data        []byte
	contentType string
}

// NewMemorySource wraps data (not copied; the caller must not mutate it while
// an upload is in flight).
func NewMemorySource(data []byte, contentType string) *MemorySource {
	return &MemorySource{data: data, contentType: contentType}
}

func (s *MemorySource) Size() int64          { return int64(len(s.data)) }
func (s *MemorySource) HasRangeSupport() bool { return true }
func (s *MemorySource) ContentType() string   { return s.contentType }

func (s *MemorySource) Open(ctx context.Context, offset, count int64) (io.ReadCloser, error) {
	if offset < 0 || offset > int64(len(s.data)) {
		return nil, fmt.Errorf("streams: offset %d out of range for %d-byte source", offset, len(s.data))
	}
	end := int64(len(s.data))
	if count >= 0 && offset+count < end {
		end = offset + count
	}
	return io.NopCloser(bytes.NewReader(s.data[offset:end])), nil
}

// MemorySink accumulates writes into an in-memory buffer, preallocated to the
// requested size. Used by download-engine tests and small downloads.
type MemorySink struct {
	mu    sync.Mutex
	state SinkState
	data  []byte
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Allocate(ctx context.Context, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SinkNotAllocated {
		return fmt.Errorf("streams: allocate called in state %s", s.state)
	}
	s.data = make([]byte, size)
	s.state = SinkAllocated
	return nil
}

func (s *MemorySink) OpenChunk(ctx context.Context, offset int64) (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SinkAllocated {
		if s.state == SinkNotAllocated {
			return nil, ErrSinkNotAllocated
		}
		return nil, ErrSinkClosed
	}
	return &memoryChunkWriter{sink: s, offset: offset}, nil
}

func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SinkClosed
	return nil
}

// Bytes returns a copy of the accumulated data. Safe to call after Close.
func (s *MemorySink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

type memoryChunkWriter struct {
	sink   *MemorySink
	offset int64
}

func (w *memoryChunkWriter) Write(p []byte) (int, error) {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	if w.offset+int64(len(p)) > int64(len(w.sink.data)) {
		return 0, fmt.Errorf("streams: write at %d, len %d overflows %d-byte sink", w.offset, len(p), len(w.sink.data))
	}
	n := copy(w.sink.data[w.offset:], p)
	w.offset += int64(n)
	return n, nil
}

func (w *memoryChunkWriter) Close() error { return nil }
