package transfer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrp-cz/nrp-go-client/httpconn"
	"github.com/nrp-cz/nrp-go-client/model"
	"github.com/nrp-cz/nrp-go-client/streams"
)

func TestRegistryBuildUnknownTypeErrors(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.build(Local)
	assert.Error(t, err)
}

func TestEngineUploadLocalVariantDrivesThreePhases(t *testing.T) {
	var uploadedBody []byte
	var sawCommit bool

	mux := http.NewServeMux()
	mux.HandleFunc("/records/1/files", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var entries []InitiateEntry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "data.bin", entries[0].Key)

		resp := model.FilesList{Enabled: true, Entries: []model.File{{
			Key:    "data.bin",
			Status: model.FileStatusPending,
			Links: model.FileActionLinks{
				Self_:   "https://" + r.Host + "/records/1/files/data.bin",
				Content: "https://" + r.Host + "/records/1/files/data.bin/content",
			},
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/records/1/files/data.bin/content", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		uploadedBody = body
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/commit", func(w http.ResponseWriter, r *http.Request) {
		sawCommit = true
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewTLSServer(mux)
	defer server.Close()

	conn, err := httpconn.NewConnection(server.URL, httpconn.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	record := &model.Record{
		Identity: model.Identity{ID: "1"},
		Links:    model.RecordLinks{Files: "/records/1/files"},
	}
	source := streams.NewMemorySource([]byte("hello world"), "application/octet-stream")

	engine := NewEngine(nil)
	file, err := engine.Upload(context.Background(), conn, record, "data.bin", nil, source, Local, nil)
	require.NoError(t, err)
	assert.Equal(t, "data.bin", file.Key)
	assert.Equal(t, "hello world", string(uploadedBody))
	assert.False(t, sawCommit, "local variant's initiate response carried no commit link")
}

func TestEngineUploadMultipartVariantUploadsAllParts(t *testing.T) {
	data := make([]byte, 12*1024*1024) // 12 MiB -> 3 parts of 5 MiB, 5 MiB, 2 MiB under Compute(nil,nil)
	for i := range data {
		data[i] = byte(i % 256)
	}

	received := make(map[int][]byte)

	mux := http.NewServeMux()
	mux.HandleFunc("/records/1/files", func(w http.ResponseWriter, r *http.Request) {
		var entries []InitiateEntry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&entries))
		require.Len(t, entries, 1)
		assert.EqualValues(t, len(data), entries[0].Transfer["size"])

		host := "https://" + r.Host
		resp := model.FilesList{Enabled: true, Entries: []model.File{{
			Key: "big.bin",
			Links: model.FileActionLinks{
				Self_:  host + "/records/1/files/big.bin",
				Commit: host + "/records/1/files/big.bin/commit",
				Parts: []model.FilePartLink{
					{URL: host + "/parts/0"},
					{URL: host + "/parts/1"},
					{URL: host + "/parts/2"},
				},
			},
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	for i := 0; i < 3; i++ {
		i := i
		mux.HandleFunc("/parts/"+itoa(i), func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			received[i] = body
			w.WriteHeader(http.StatusOK)
		})
	}
	mux.HandleFunc("/records/1/files/big.bin/commit", func(w http.ResponseWriter, r *http.Request) {
		final := model.File{Key: "big.bin", Status: model.FileStatusCompleted, Size: int64(len(data))}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(final)
	})

	server := httptest.NewTLSServer(mux)
	defer server.Close()

	conn, err := httpconn.NewConnection(server.URL, httpconn.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	record := &model.Record{Identity: model.Identity{ID: "1"}, Links: model.RecordLinks{Files: "/records/1/files"}}
	source := streams.NewMemorySource(data, "application/octet-stream")

	engine := NewEngine(nil)
	file, err := engine.Upload(context.Background(), conn, record, "big.bin", nil, source, Multipart, nil)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusCompleted, file.Status)

	var reassembled []byte
	for i := 0; i < 3; i++ {
		reassembled = append(reassembled, received[i]...)
	}
	assert.Equal(t, data, reassembled)
}

func itoa(i int) string {
	return string(rune('0' + i))
}
