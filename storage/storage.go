// Package storage defines the device-local key-value store that persists the
// session token between process runs.
//
// The store is deliberately opaque: string keys, string values, and three
// operations. Backends:
//
//	memstore.New()                          // tests, ephemeral sessions
//	sqlstore.New("sqlite3", "file:escala.db") // on-device file
//	sqlstore.New("postgres", dsn)           // shared hosts
//	badgerstore.New(dir)                    // embedded LSM directory
package storage

import (
	"context"

	"github.com/escala-app/escala/errors"
	"google.golang.org/grpc/codes"
)

var (
	// Returned by Get when no value exists for the key.
	ErrNotFound = errors.NewC("storage: key not found", codes.NotFound)

	// Returned when a key is empty.
	ErrEmptyKey = errors.NewC("storage: empty key", codes.InvalidArgument)

	// Returned when the backend can't currently be reached or is locked.
	ErrUnavailable = errors.NewC("storage: backend unavailable", codes.Unavailable)

	// Returned when the store has been closed.
	ErrClosed = errors.NewC("storage: store closed", codes.FailedPrecondition)
)

// Store is an asynchronous key-value store. All methods accept a
// context.Context so that slow devices can be cancelled or timed out.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a key that doesn't exist is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}

// ValidateKey returns ErrEmptyKey for empty keys.
func ValidateKey(key string) error {
	if key == "" {
		return errors.Mark(ErrEmptyKey, 1)
	}
	return nil
}
