// Package memstore implements storage.Store in process memory. Values do not
// survive a restart, so this is only useful for tests and throwaway sessions.
package memstore

import (
	"context"
	"sync"

	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/storage"
)

// New returns an empty in-memory store.
func New() storage.Store {
	return &store{data: map[string]string{}}
}

type store struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

func (s *store) Get(ctx context.Context, key string) (string, error) {
	if err := s.check(ctx, key); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", errors.Mark(storage.ErrNotFound, 0).Append("key=" + key)
	}
	return v, nil
}

func (s *store) Set(ctx context.Context, key, value string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *store) Remove(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *store) check(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, 1)
	}
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.Mark(storage.ErrClosed, 1)
	}
	return nil
}
