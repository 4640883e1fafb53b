// Package badgerstore implements storage.Store on top of an embedded Badger
// database. Useful on devices where a single directory is all the storage
// the app is given.
package badgerstore

import (
	"context"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"
	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/logging"
	"github.com/escala-app/escala/storage"
)

// Option is a functional option for configuring the store.
type Option func(*badger.Options)

// InMemory keeps all data in memory, dir is ignored.
func InMemory() Option {
	return func(o *badger.Options) {
		o.Dir = ""
		o.ValueDir = ""
		o.InMemory = true
	}
}

// WithLogger routes badger's internal logging through the given logger.
func WithLogger(l logging.Logger) Option {
	return func(o *badger.Options) {
		o.Logger = &badgerLogger{l: l.Named("badger")}
	}
}

// WithSyncWrites controls whether every write is fsynced.
func WithSyncWrites(sync bool) Option {
	return func(o *badger.Options) {
		o.SyncWrites = sync
	}
}

// New opens (or creates) a badger database in dir.
func New(dir string, opts ...Option) (storage.Store, error) {
	o := badger.DefaultOptions(dir)
	o.Logger = &badgerLogger{l: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	db, err := badger.Open(o)
	if err != nil {
		return nil, errors.WrapPrefix(err, "badgerstore: open db", 0)
	}
	return &store{db: db}, nil
}

type store struct {
	db     *badger.DB
	closed atomic.Bool
}

func (s *store) Get(ctx context.Context, key string) (string, error) {
	if err := s.check(ctx, key); err != nil {
		return "", err
	}
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return "", translateError(err)
	}
	return string(value), nil
}

func (s *store) Set(ctx context.Context, key, value string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	return translateError(s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	}))
}

func (s *store) Remove(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	return translateError(s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}))
}

func (s *store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return errors.MaybeWrap(s.db.Close(), 0)
}

func (s *store) check(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, 1)
	}
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return errors.Mark(storage.ErrClosed, 1)
	}
	return nil
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return errors.Mark(storage.ErrNotFound, 0)
	case errors.Is(err, badger.ErrDBClosed):
		return errors.Mark(storage.ErrClosed, 0)
	case errors.Is(err, badger.ErrConflict):
		return errors.Mark(storage.ErrUnavailable, 0).Append(err.Error())
	}
	return errors.MaybeWrap(err, 0)
}

// badgerLogger adapts logging.Logger to badger.Logger.
type badgerLogger struct {
	l logging.Logger
}

func (b *badgerLogger) Errorf(f string, v ...interface{})   { b.l.Errorf(f, v...) }
func (b *badgerLogger) Warningf(f string, v ...interface{}) { b.l.Warnf(f, v...) }
func (b *badgerLogger) Infof(f string, v ...interface{})    { b.l.Debugf(f, v...) }
func (b *badgerLogger) Debugf(f string, v ...interface{})   { b.l.Debugf(f, v...) }
