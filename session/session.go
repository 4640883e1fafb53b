// Package session holds the signed-in user for the lifetime of the process
// and persists their token so the next run starts signed in.
//
// A single Store is constructed at startup and handed to whoever needs it:
//
//	sess := session.New(store, session.WithEventBus(bus))
//	defer sess.Close()
//	sess.Initialize(ctx) // block before any role-gated work
//
// Every operation that changes the session is applied by one worker, in the
// order the operations were invoked. A sign-in that starts while startup is
// still reading storage is therefore never overwritten by the older token.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/eventbus"
	"github.com/escala-app/escala/logging"
	"github.com/escala-app/escala/storage"
	"github.com/escala-app/escala/token"
	"google.golang.org/grpc/codes"
)

// DefaultStorageKey is where the raw token is persisted.
const DefaultStorageKey = "userToken"

var (
	// Returned when persisting or clearing the token fails.
	ErrStorage = errors.NewC("session: storage failure", codes.Unavailable).
			WithPublicMessage("Could not save your session on this device.")

	// Returned by operations invoked after Close.
	ErrClosed = errors.NewC("session: store closed", codes.FailedPrecondition)
)

// Status of the session.
type Status int

const (
	Uninitialized Status = iota
	Loading
	Authenticated
	Anonymous
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "unknown"
}

// Session is an immutable snapshot. Authenticated sessions always carry both
// an identity and the raw token, anonymous ones carry neither.
type Session struct {
	Identity *token.Identity
	RawToken string
	Status   Status
}

func (s Session) IsAuthenticated() bool {
	return s.Status == Authenticated && s.Identity != nil && s.RawToken != ""
}

// Roles returns the roles of the signed-in user, or nil.
func (s Session) Roles() token.RoleSet {
	if !s.IsAuthenticated() {
		return nil
	}
	return s.Identity.Roles
}

func anonymous() Session {
	return Session{Status: Anonymous}
}

// Option configures a Store.
type Option func(*Store)

// WithEventBus publishes eventbus.LoginEvent and eventbus.LogoutEvent.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

// WithStorageKey overrides DefaultStorageKey.
func WithStorageKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// Store owns the current Session.
type Store struct {
	storage storage.Store
	bus     eventbus.EventBus
	key     string

	mu    sync.RWMutex
	state Session

	qmu    sync.Mutex
	queue  []*op
	closed bool
	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}

	// Only touched by the worker.
	initialized bool
	ready       chan struct{}

	closeOnce sync.Once
}

type op struct {
	ctx context.Context
	run func(context.Context) error

	// Run even if ctx is already done.
	always bool

	result chan error
}

// New returns a Store reading and writing the token in st. The store is
// Uninitialized until Initialize is called.
func New(st storage.Store, opts ...Option) *Store {
	s := &Store{
		storage: st,
		key:     DefaultStorageKey,
		state:   Session{Status: Uninitialized},
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

// Current returns the latest snapshot.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the raw token of an authenticated session, or "".
func (s *Store) Token() string {
	cur := s.Current()
	if !cur.IsAuthenticated() {
		return ""
	}
	return cur.RawToken
}

// Ready is closed once the session has left Uninitialized for good.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// WaitReady blocks until Ready is closed or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), 0)
	}
}

// Initialize loads the persisted token. A missing, unreadable or malformed
// token results in an Anonymous session, a malformed one is also removed from
// storage. Only the first call does any work, later calls return the current
// snapshot.
func (s *Store) Initialize(ctx context.Context) Session {
	err := s.do(ctx, false, func(ctx context.Context) error {
		if s.initialized {
			return nil
		}
		s.setState(Session{Status: Loading})
		s.setState(s.load(ctx))
		s.markInitialized()
		return nil
	})
	if err != nil {
		logging.Warnw(ctx, "session: initialize did not run", "error", err)
	}
	return s.Current()
}

func (s *Store) load(ctx context.Context) Session {
	raw, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		logging.Debugw(ctx, "session: no persisted token")
		return anonymous()
	} else if err != nil {
		logging.Warnw(ctx, "session: failed to read persisted token", "error", err)
		return anonymous()
	}

	id, err := token.Decode(raw)
	if err != nil {
		logging.Warnw(ctx, "session: discarding malformed persisted token", "error", err)
		if err := s.storage.Remove(ctx, s.key); err != nil {
			logging.Errorw(ctx, "session: failed to remove malformed token", "error", err)
		}
		return anonymous()
	}

	logging.Infow(ctx, "session: restored", "session.subject", id.SubjectID)
	return Session{Identity: &id, RawToken: raw, Status: Authenticated}
}

// SignIn decodes raw and, if valid, persists it and switches to an
// Authenticated session. Decode and storage failures leave the previous
// session in place.
func (s *Store) SignIn(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	id, err := token.Decode(raw)
	if err != nil {
		return err
	}

	return s.do(ctx, false, func(ctx context.Context) error {
		prev := s.Current()
		s.setState(Session{Status: Loading})

		if err := s.storage.Set(ctx, s.key, raw); err != nil {
			s.setState(prev)
			logging.Errorw(ctx, "session: failed to persist token", "error", err)
			return errors.Mark(ErrStorage, 0).Append(err.Error())
		}

		s.setState(Session{Identity: &id, RawToken: raw, Status: Authenticated})
		s.markInitialized()
		logging.Infow(ctx, "session: signed in", "session.subject", id.SubjectID, "session.roles", []string(id.Roles))
		s.publish(eventbus.LoginEvent, &id)
		return nil
	})
}

// SignOut clears the persisted token and resets to Anonymous. The in-memory
// session is cleared even when storage fails; the storage error is still
// returned so it can be reported.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.do(ctx, true, func(ctx context.Context) error {
		prev := s.Current()
		rmErr := s.storage.Remove(ctx, s.key)

		s.setState(anonymous())
		s.markInitialized()
		logging.Infow(ctx, "session: signed out")
		s.publish(eventbus.LogoutEvent, prev.Identity)

		if rmErr != nil {
			logging.Errorw(ctx, "session: failed to clear persisted token", "error", rmErr)
			return errors.Mark(ErrStorage, 0).Append(rmErr.Error())
		}
		return nil
	})
	if errors.Is(err, ErrClosed) {
		s.setState(anonymous())
		if rmErr := s.storage.Remove(ctx, s.key); rmErr != nil && !errors.Is(rmErr, storage.ErrNotFound) {
			logging.Errorw(ctx, "session: failed to clear persisted token", "error", rmErr)
			return errors.Mark(ErrStorage, 0).Append(rmErr.Error())
		}
	}
	return err
}

// Close stops the worker. Queued operations fail with ErrClosed. The
// underlying storage is not closed.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.qmu.Lock()
		s.closed = true
		s.qmu.Unlock()
		close(s.quit)
		<-s.done
	})
	return nil
}

func (s *Store) setState(next Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
}

func (s *Store) markInitialized() {
	if !s.initialized {
		s.initialized = true
		close(s.ready)
	}
}

func (s *Store) publish(topic string, id *token.Identity) {
	if s.bus == nil {
		return
	}
	ev := eventbus.AuthEvent{}
	if id != nil {
		ev.SubjectID = id.SubjectID
		ev.Email = id.Email
		ev.Roles = []string(id.Roles)
	}
	s.bus.Publish(topic, ev)
}
