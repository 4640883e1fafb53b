// Package sqlstore provides a database/sql implementation of storage.Store.
// Two dialects are supported: sqlite3 for an on-device file and postgres for
// hosts where several installs share a database.
//
// Examples:
//
//	store, err := sqlstore.New("sqlite3", "file:escala.db")
//
//	store, err := sqlstore.New("sqlite3", ":memory:")
//
//	store, err := sqlstore.New("postgres",
//		"postgres://escala@localhost/escala?sslmode=disable",
//		sqlstore.WithPrefix("device_"),
//	)
//
//nolint:gosec // Reports on G202. SQL string concat used to parameterize table.
package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/storage"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect names double as database/sql driver names.
const (
	SQLite   = "sqlite3"
	Postgres = "postgres"
)

var ErrUnknownDialect = errors.New("sqlstore: unknown dialect")

// Option is a functional option for configuring the store.
type Option func(*store)

// WithPrefix overrides the default prefix for the table name.
func WithPrefix(prefix string) Option {
	return func(s *store) {
		s.prefix = prefix
	}
}

// WithAutoCreateTable controls whether the table is created on startup.
func WithAutoCreateTable(create bool) Option {
	return func(s *store) {
		s.autoCreate = create
	}
}

// New opens a connection with the given driver and returns a store backed
// by it. The table is created if it doesn't exist.
func New(dialect, dsn string, opts ...Option) (storage.Store, error) {
	if dialect != SQLite && dialect != Postgres {
		return nil, errors.Mark(ErrUnknownDialect, 0).Append(dialect)
	}
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, errors.WrapPrefix(err, "sqlstore: failed to open "+dialect+" connection", 0)
	}
	if dialect == SQLite {
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.WrapPrefix(err, "sqlstore: failed to connect to "+dialect, 0)
	}
	s, err := NewFromDB(db, dialect, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an existing connection pool.
func NewFromDB(db *sql.DB, dialect string, opts ...Option) (storage.Store, error) {
	if dialect != SQLite && dialect != Postgres {
		return nil, errors.Mark(ErrUnknownDialect, 0).Append(dialect)
	}
	s := &store{
		db:         db,
		dialect:    dialect,
		prefix:     "escala_",
		autoCreate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.autoCreate {
		if err := s.ensureTable(context.Background()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

type store struct {
	db         *sql.DB
	dialect    string
	prefix     string
	autoCreate bool
}

func (s *store) Get(ctx context.Context, key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	var value string
	err := s.db.QueryRowContext(ctx, s.query("SELECT value FROM "+s.table()+" WHERE name = ?"), key).Scan(&value)
	if err != nil {
		return "", s.translateError(err)
	}
	return value, nil
}

func (s *store) Set(ctx context.Context, key, value string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.query(
		"INSERT INTO "+s.table()+" (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) "+
			"ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP"),
		key, value)
	return s.translateError(err)
}

func (s *store) Remove(ctx context.Context, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.query("DELETE FROM "+s.table()+" WHERE name = ?"), key)
	return s.translateError(err)
}

func (s *store) Close() error {
	return errors.MaybeWrap(s.db.Close(), 0)
}

func (s *store) table() string {
	return s.prefix + "kv"
}

func (s *store) ensureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+s.table()+` (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return errors.WrapPrefix(err, "sqlstore: failed to create table "+s.table(), 0)
	}
	return nil
}

// query rewrites ? placeholders into $n for postgres.
func (s *store) query(q string) string {
	if s.dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *store) translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Mark(storage.ErrNotFound, 0)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return errors.Mark(storage.ErrClosed, 0)
	}
	switch s.dialect {
	case SQLite:
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) {
			switch sqlErr.Code {
			case sqlite3.ErrNotFound:
				return errors.Mark(storage.ErrNotFound, 0)
			case sqlite3.ErrBusy, sqlite3.ErrLocked:
				return errors.Mark(storage.ErrUnavailable, 0).Append(sqlErr.Error())
			}
		}
	case Postgres:
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" { // connection_exception
			return errors.Mark(storage.ErrUnavailable, 0).Append(pqErr.Message)
		}
	}
	if strings.Contains(err.Error(), "database is closed") {
		return errors.Mark(storage.ErrClosed, 0)
	}
	return errors.MaybeWrap(err, 0)
}
