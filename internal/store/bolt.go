package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

const backendLocal = "local"

var eventsBucket = []byte("events")

// BoltStore keeps records in an embedded bbolt file, ordered by event id.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database file at cfg.Path.
func NewBoltStore(cfg config.LocalStoreConfig) (*BoltStore, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "failed to create store directory")
		}
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bolt database %s", cfg.Path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create events bucket")
	}

	log.Info().Str("path", cfg.Path).Msg("Opened local event store")
	return &BoltStore{db: db}, nil
}

// Insert upserts a record
func (s *BoltStore) Insert(ctx context.Context, eventID string, record []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(backendLocal, "insert", err)
	}
	var previous []byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		if prev := b.Get([]byte(eventID)); prev != nil {
			previous = append([]byte(nil), prev...)
		}
		return b.Put([]byte(eventID), record)
	})
	if err != nil {
		return nil, storeErr(backendLocal, "insert", err)
	}
	return previous, nil
}

// Get fetches a record
func (s *BoltStore) Get(ctx context.Context, eventID string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, storeErr(backendLocal, "get", err)
	}
	var record []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(eventsBucket).Get([]byte(eventID)); v != nil {
			record = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, storeErr(backendLocal, "get", err)
	}
	return record, record != nil, nil
}

// GetAll returns every record in key order
func (s *BoltStore) GetAll(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(backendLocal, "get_all", err)
	}
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(eventsBucket).ForEach(func(k, v []byte) error {
			entries = append(entries, Entry{
				EventID: string(k),
				Record:  append([]byte(nil), v...),
			})
			return nil
		})
	})
	if err != nil {
		return nil, storeErr(backendLocal, "get_all", err)
	}
	return entries, nil
}

// IsEmpty reports whether the bucket holds no keys
func (s *BoltStore) IsEmpty(ctx context.Context) bool {
	empty := false
	err := s.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(eventsBucket).Cursor().First()
		empty = k == nil
		return nil
	})
	return err == nil && empty
}

// CompareAndSwap replaces the record inside a single update transaction
func (s *BoltStore) CompareAndSwap(ctx context.Context, eventID string, expected, record []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeErr(backendLocal, "compare_and_swap", err)
	}
	swapped := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		cur := b.Get([]byte(eventID))
		if (expected == nil) != (cur == nil) || !bytes.Equal(cur, expected) {
			return nil
		}
		swapped = true
		return b.Put([]byte(eventID), record)
	})
	if err != nil {
		return false, storeErr(backendLocal, "compare_and_swap", err)
	}
	return swapped, nil
}

// Close releases the database file
func (s *BoltStore) Close() error {
	return s.db.Close()
}
