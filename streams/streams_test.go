package streams

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySourceRangedRead(t *testing.T) {
	src := NewMemorySource([]byte("0123456789"), "text/plain")
	assert.EqualValues(t, 10, src.Size())
	assert.True(t, src.HasRangeSupport())

	r, err := src.Open(context.Background(), 3, 4)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "3456", string(data))
}

func TestMemorySinkStateMachine(t *testing.T) {
	sink := NewMemorySink()

	_, err := sink.OpenChunk(context.Background(), 0)
	assert.ErrorIs(t, err, ErrSinkNotAllocated)

	require.NoError(t, sink.Allocate(context.Background(), 10))
	_, err = sink.Allocate(context.Background(), 10)
	assert.Error(t, err, "re-allocating must fail")

	w, err := sink.OpenChunk(context.Background(), 0)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w2, err := sink.OpenChunk(context.Background(), 5)
	require.NoError(t, err)
	_, err = w2.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, w2.Close())

	assert.Equal(t, "helloworld", string(sink.Bytes()))

	require.NoError(t, sink.Close())
	_, err = sink.OpenChunk(context.Background(), 0)
	assert.ErrorIs(t, err, ErrSinkClosed)
}

func TestFileSourceAndSinkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "in.bin")
	want := make([]byte, 1<<16)
	for i := range want {
		want[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(srcPath, want, 0o644))

	src, err := NewFileSource(srcPath, "application/octet-stream")
	require.NoError(t, err)
	assert.EqualValues(t, len(want), src.Size())

	dstPath := filepath.Join(dir, "out.bin")
	sink := NewFileSink(dstPath)
	require.NoError(t, sink.Allocate(context.Background(), src.Size()))

	const chunk = 1 << 14
	for offset := int64(0); offset < src.Size(); offset += chunk {
		count := int64(chunk)
		if offset+count > src.Size() {
			count = src.Size() - offset
		}
		r, err := src.Open(context.Background(), offset, count)
		require.NoError(t, err)
		w, err := sink.OpenChunk(context.Background(), offset)
		require.NoError(t, err)
		_, err = io.Copy(w, r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		require.NoError(t, w.Close())
	}
	require.NoError(t, sink.Close())

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
