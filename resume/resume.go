// Package resume persists per-part upload progress so an interrupted
// multipart upload can skip parts it already committed on a prior attempt,
// rather than re-sending the whole file. It is an enrichment over the
// wire protocol: nothing here is visible to the repository, which only
// ever sees completed part PUTs.
package resume

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("parts")

// Store records which parts of which (record, key) upload have already
// been committed, keyed by part number, so a retried Engine.Upload call
// can skip re-sending bytes the repository already has.
type Store interface {
	// Get reports the ETag recorded for part partNumber of (recordID,
	// key), and whether one was found.
	Get(ctx context.Context, recordID, key string, partNumber int) (etag string, ok bool, err error)

	// Put records that part partNumber of (recordID, key) committed with
	// the given ETag.
	Put(ctx context.Context, recordID, key string, partNumber int, etag string) error

	// Forget discards all recorded parts for (recordID, key), called after
	// a successful commit or an abandoned upload.
	Forget(ctx context.Context, recordID, key string) error

	// Close releases the store's underlying resources.
	Close() error
}

// boltStore is a Store backed by a local bbolt database, so resumable
// upload state survives process restarts.
type boltStore struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a bbolt-backed Store at path.
func Open(path string) (Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("resume: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("resume: create bucket: %w", err)
	}
	return &boltStore{db: db}, nil
}

type partRecord struct {
	ETag string `json:"etag"`
}

func partKey(recordID, key string, partNumber int) []byte {
	return []byte(fmt.Sprintf("%s\x00%s\x00%06d", recordID, key, partNumber))
}

func uploadPrefix(recordID, key string) []byte {
	return []byte(fmt.Sprintf("%s\x00%s\x00", recordID, key))
}

func (s *boltStore) Get(ctx context.Context, recordID, key string, partNumber int) (string, bool, error) {
	var rec partRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		data := b.Get(partKey(recordID, key, partNumber))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return "", false, fmt.Errorf("resume: get part %d of %s/%s: %w", partNumber, recordID, key, err)
	}
	return rec.ETag, found, nil
}

func (s *boltStore) Put(ctx context.Context, recordID, key string, partNumber int, etag string) error {
	data, err := json.Marshal(partRecord{ETag: etag})
	if err != nil {
		return fmt.Errorf("resume: encode part record: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put(partKey(recordID, key, partNumber), data)
	})
	if err != nil {
		return fmt.Errorf("resume: put part %d of %s/%s: %w", partNumber, recordID, key, err)
	}
	return nil
}

func (s *boltStore) Forget(ctx context.Context, recordID, key string) error {
	prefix := uploadPrefix(recordID, key)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		var stale [][]byte
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("resume: forget %s/%s: %w", recordID, key, err)
	}
	return nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
