package controller

import (
	"context"
	"slices"
	"sync"

	"github.com/escala-app/escala/api"
	"github.com/escala-app/escala/authz"
	"github.com/escala-app/escala/availability"
	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/logging"
	"github.com/escala-app/escala/session"
	"golang.org/x/sync/errgroup"
)

// UserAvailability drives the member availability screen: the dates leaders
// opened and the member's own picks among them.
type UserAvailability struct {
	client   *api.Client
	sessions *session.Store

	mu  sync.Mutex
	cal *availability.UserCalendar
}

func NewUserAvailability(client *api.Client, sessions *session.Store) *UserAvailability {
	return &UserAvailability{
		client:   client,
		sessions: sessions,
		cal:      availability.NewUserCalendar(nil),
	}
}

// Load fetches the offered dates and the member's saved selection
// concurrently, then reconciles them. Saved dates the leaders no longer offer
// are dropped and returned.
func (u *UserAvailability) Load(ctx context.Context) ([]availability.Date, error) {
	if err := authz.Require(u.sessions.Current(), authz.RoleAuthenticated); err != nil {
		return nil, err
	}

	var general, mine []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		general, err = u.client.GeneralAvailability(gctx)
		return err
	})
	g.Go(func() (err error) {
		mine, err = u.client.UserAvailability(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	offered, err := availability.ParseDates(general)
	if err != nil {
		return nil, errors.WrapPrefix(err, "general availability", 0)
	}
	selected, err := availability.ParseDates(mine)
	if err != nil {
		return nil, errors.WrapPrefix(err, "user availability", 0)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.cal.SetOffered(offered)
	dropped := u.cal.Load(selected)
	if len(dropped) > 0 {
		logging.Infow(ctx, "controller: dropped dates no longer offered", "dates", availability.Strings(dropped))
	}
	return dropped, nil
}

// Mount loads in the background on tasks. onLoad is not called if the screen
// is closed first.
func (u *UserAvailability) Mount(tasks *Tasks, onLoad func(dropped []availability.Date, err error)) {
	Go(tasks, u.Load, onLoad)
}

// Toggle flips a date. Only dates the leaders opened can be picked.
func (u *UserAvailability) Toggle(date string) (bool, error) {
	d, err := availability.ParseDate(date)
	if err != nil {
		return false, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cal.Toggle(d)
}

// Offered returns the dates the leaders opened.
func (u *UserAvailability) Offered() []availability.Date {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cal.Offered()
}

// Selected returns the member's picks.
func (u *UserAvailability) Selected() []availability.Date {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cal.Selected()
}

// Save sends the selection and reloads it from the backend.
func (u *UserAvailability) Save(ctx context.Context) error {
	if err := authz.Require(u.sessions.Current(), authz.RoleAuthenticated); err != nil {
		return err
	}
	dates := availability.Strings(u.Selected())
	if err := u.client.SaveUserAvailability(ctx, dates); err != nil {
		return err
	}
	logging.Infow(ctx, "controller: availability saved", "dates", dates)
	_, err := u.Load(ctx)
	return err
}

// LeaderAvailability drives the screen where leaders open dates for one of
// their ministries.
type LeaderAvailability struct {
	client   *api.Client
	sessions *session.Store

	mu         sync.Mutex
	cal        *availability.LeaderCalendar
	ministries []api.Ministry
}

func NewLeaderAvailability(client *api.Client, sessions *session.Store) *LeaderAvailability {
	return &LeaderAvailability{
		client:   client,
		sessions: sessions,
		cal:      availability.NewLeaderCalendar(),
	}
}

// Load fetches the ministries the leader leads and selects the first one
// unless a ministry is already selected.
func (l *LeaderAvailability) Load(ctx context.Context) ([]api.Ministry, error) {
	if err := authz.Require(l.sessions.Current(), authz.RoleLeader); err != nil {
		return nil, err
	}
	ms, err := l.client.LeaderMinistries(ctx)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ministries = ms
	ids := make([]int, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	if !slices.Contains(ids, l.cal.MinistryID()) {
		l.cal.SelectMinistry(0)
	}
	l.cal.DefaultMinistry(ids)
	return ms, nil
}

// Mount loads in the background on tasks.
func (l *LeaderAvailability) Mount(tasks *Tasks, onLoad func([]api.Ministry, error)) {
	Go(tasks, l.Load, onLoad)
}

// SelectMinistry picks one of the loaded ministries.
func (l *LeaderAvailability) SelectMinistry(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.ministries {
		if m.ID == id {
			l.cal.SelectMinistry(id)
			return nil
		}
	}
	return errors.Mark(ErrMinistryNotFound, 0)
}

func (l *LeaderAvailability) MinistryID() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cal.MinistryID()
}

func (l *LeaderAvailability) Toggle(date string) (bool, error) {
	d, err := availability.ParseDate(date)
	if err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cal.Toggle(d), nil
}

func (l *LeaderAvailability) Selected() []availability.Date {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cal.Selected()
}

// Save opens the drafted dates for the selected ministry and clears the
// draft on success.
func (l *LeaderAvailability) Save(ctx context.Context) error {
	if err := authz.Require(l.sessions.Current(), authz.RoleLeader); err != nil {
		return err
	}

	l.mu.Lock()
	if err := l.cal.Ready(); err != nil {
		l.mu.Unlock()
		return err
	}
	ministryID := l.cal.MinistryID()
	dates := availability.Strings(l.cal.Selected())
	l.mu.Unlock()

	if err := l.client.SetGeneralAvailability(ctx, ministryID, dates); err != nil {
		return err
	}
	logging.Infow(ctx, "controller: dates opened", "ministry.id", ministryID, "dates", dates)

	l.mu.Lock()
	l.cal.Reset()
	l.mu.Unlock()
	return nil
}
