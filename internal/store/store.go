// Package store persists oracle event records keyed by event id.
package store

import (
	"context"
	"fmt"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/pkg/errors"
)

// Entry is one stored record.
type Entry struct {
	EventID string
	Record  []byte
}

// EventStore is the uniform contract of every backend. A missing record is
// reported through found, never as an error.
type EventStore interface {
	// Insert upserts the record and returns the previous bytes, if any.
	Insert(ctx context.Context, eventID string, record []byte) (previous []byte, err error)
	Get(ctx context.Context, eventID string) (record []byte, found bool, err error)
	// GetAll scans every record. Used for listing only.
	GetAll(ctx context.Context) ([]Entry, error)
	// IsEmpty may answer false whenever the backend cannot tell cheaply.
	IsEmpty(ctx context.Context) bool
	Close() error
}

// ConditionalStore is implemented by backends that can replace a record only
// when it still holds the expected bytes. A nil expected value means the
// record must not exist yet.
type ConditionalStore interface {
	CompareAndSwap(ctx context.Context, eventID string, expected, record []byte) (swapped bool, err error)
}

// Error reports a backend failure: connectivity, protocol or decoding.
type Error struct {
	Backend string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s store: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsStoreError reports whether err was raised by a backend.
func IsStoreError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

func storeErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Backend: backend, Op: op, Err: err}
}

// Open builds the backend selected by cfg.Backend.
func Open(cfg config.StoreConfig) (EventStore, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return NewBoltStore(cfg.Local)
	case config.BackendRedis:
		return NewRedisStore(cfg.Redis, cfg.OpTimeout)
	case config.BackendStorageAPI:
		return NewStorageAPIStore(cfg.StorageAPI, cfg.OpTimeout), nil
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Backend)
	}
}
