package httpconn

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrp-cz/nrp-go-client/errs"
	"github.com/nrp-cz/nrp-go-client/streams"
)

func newTestConnection(t *testing.T, handler http.Handler, opts ...ConnectionOption) (*Connection, *httptest.Server) {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	allOpts := append([]ConnectionOption{WithHTTPClient(server.Client())}, opts...)
	conn, err := NewConnection(server.URL, allOpts...)
	require.NoError(t, err)
	return conn, server
}

func TestNewConnectionRejectsPlainHTTP(t *testing.T) {
	_, err := NewConnection("http://example.org")
	assert.Error(t, err)
}

func TestWithInsecureSkipVerifyConnectsToUntrustedCert(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	conn, err := NewConnection(server.URL, WithInsecureSkipVerify())
	require.NoError(t, err)

	_, err = conn.Get(context.Background(), "/", nil)
	require.NoError(t, err)
}

func TestGetDecodesJSONAndETag(t *testing.T) {
	conn, _ := newTestConnection(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "1"})
	}))

	var target map[string]any
	resp, err := conn.Get(context.Background(), "/records/1", &target)
	require.NoError(t, err)
	assert.Equal(t, "1", target["id"])
	assert.Equal(t, "abc123", resp.ETag)
}

func TestRetriesIdempotentMethodOn503(t *testing.T) {
	var attempts int32
	conn, _ := newTestConnection(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), WithRetryPolicy(5, 0.01))

	_, err := conn.Get(context.Background(), "/flaky", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestDoesNotRetryClientError(t *testing.T) {
	var attempts int32
	conn, _ := newTestConnection(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "not found"})
	}), WithRetryPolicy(5, 0.01))

	_, err := conn.Get(context.Background(), "/missing", nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts))
	assert.Equal(t, 404, errs.StatusCode(err))
}

func TestDoesNotRetryNonIdempotentPost(t *testing.T) {
	var attempts int32
	conn, _ := newTestConnection(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), WithRetryPolicy(5, 0.01))

	_, err := conn.Post(context.Background(), "/create", map[string]string{"a": "b"}, nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestPutStreamSendsSourceBytes(t *testing.T) {
	var received []byte
	conn, _ := newTestConnection(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		buf, _ := io.ReadAll(r.Body)
		received = buf
		w.WriteHeader(http.StatusOK)
	}))

	src := streams.NewMemorySource([]byte("payload-bytes"), "application/octet-stream")
	_, err := conn.PutStream(context.Background(), "/files/x", src)
	require.NoError(t, err)
	assert.Equal(t, "payload-bytes", string(received))
}

func TestGetStreamWritesRangedChunk(t *testing.T) {
	full := []byte("0123456789")
	conn, _ := newTestConnection(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=2-5", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(full[2:6])
	}))

	sink := streams.NewMemorySink()
	require.NoError(t, sink.Allocate(context.Background(), int64(len(full))))
	err := conn.GetStream(context.Background(), "/files/x/content", sink, 2, 4)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Equal(t, "2345", string(sink.Bytes()[2:6]))
}

// countingSource wraps a MemorySource and records how many times Open is
// called, so a retry test can assert each attempt re-reads the source.
type countingSource struct {
	*streams.MemorySource
	opens int32
}

func (s *countingSource) Open(ctx context.Context, offset, count int64) (io.ReadCloser, error) {
	atomic.AddInt32(&s.opens, 1)
	return s.MemorySource.Open(ctx, offset, count)
}

func TestPutStreamRetriesOnServerErrorAndReopensSource(t *testing.T) {
	var attempts int32
	conn, _ := newTestConnection(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "payload-bytes", string(buf))
		w.WriteHeader(http.StatusOK)
	}), WithRetryPolicy(3, 0.01))

	src := &countingSource{MemorySource: streams.NewMemorySource([]byte("payload-bytes"), "application/octet-stream")}
	_, err := conn.PutStream(context.Background(), "/files/x", src)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
	assert.EqualValues(t, 2, atomic.LoadInt32(&src.opens))
}

func TestGetStreamRetriesOnServerError(t *testing.T) {
	full := []byte("0123456789")
	var attempts int32
	conn, _ := newTestConnection(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(full[2:6])
	}), WithRetryPolicy(3, 0.01))

	sink := streams.NewMemorySink()
	require.NoError(t, sink.Allocate(context.Background(), int64(len(full))))
	err := conn.GetStream(context.Background(), "/files/x/content", sink, 2, 4)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
	assert.Equal(t, "2345", string(sink.Bytes()[2:6]))
}

func TestSetTokenAttachesBearerHeader(t *testing.T) {
	conn, server := newTestConnection(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, conn.SetToken(server.URL, "secret-token"))
	_, err := conn.Get(context.Background(), "/secured", nil)
	require.NoError(t, err)
}

func TestWithRateLimitThrottlesRequestIssuance(t *testing.T) {
	var timestamps []time.Time
	conn, _ := newTestConnection(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timestamps = append(timestamps, time.Now())
		w.WriteHeader(http.StatusOK)
	}), WithRateLimit(20, 1))

	for i := 0; i < 3; i++ {
		_, err := conn.Get(context.Background(), "/", nil)
		require.NoError(t, err)
	}

	require.Len(t, timestamps, 3)
	assert.True(t, timestamps[2].Sub(timestamps[0]) >= 50*time.Millisecond)
}
