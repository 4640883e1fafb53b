// Package escala wires the client core together: configuration, token
// storage, the session store, the role gate and the API client. Front-ends
// (the CLI, tests) build one App per process and get everything else from
// it.
package escala

import (
	"context"

	"github.com/escala-app/escala/api"
	"github.com/escala-app/escala/authz"
	"github.com/escala-app/escala/controller"
	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/eventbus"
	"github.com/escala-app/escala/logging"
	"github.com/escala-app/escala/session"
	"github.com/escala-app/escala/storage"
)

// App owns the single session store of the process.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	ownedStorage storage.Store
	bus          eventbus.EventBus
	sessions     *session.Store
	gate         *authz.Gate
	client       *api.Client
	auditor      *auditor
}

// Context carries the App's logger and is canceled by Close.
func (a *App) Context() context.Context {
	return a.ctx
}

func (a *App) Sessions() *session.Store { return a.sessions }
func (a *App) Client() *api.Client      { return a.client }
func (a *App) Gate() *authz.Gate        { return a.gate }

// Start restores the persisted session. It must run before the first gated
// route is checked, otherwise the gate sees a session that is still loading.
func (a *App) Start(ctx context.Context) session.Session {
	s := a.sessions.Initialize(ctx)
	logging.Debugw(ctx, "escala: session restored", "session.status", s.Status.String())
	return s
}

// Check consults the role gate for route against the current session.
func (a *App) Check(route string) error {
	return a.gate.Check(a.sessions.Current(), route)
}

func (a *App) Auth() *controller.Auth {
	return controller.NewAuth(a.client, a.sessions)
}

func (a *App) Admin() *controller.Admin {
	return controller.NewAdmin(a.client, a.sessions)
}

func (a *App) UserAvailability() *controller.UserAvailability {
	return controller.NewUserAvailability(a.client, a.sessions)
}

func (a *App) LeaderAvailability() *controller.LeaderAvailability {
	return controller.NewLeaderAvailability(a.client, a.sessions)
}

func (a *App) Schedule() *controller.Schedule {
	return controller.NewSchedule(a.client, a.sessions)
}

// Close stops the session worker, drains pending events and closes storage
// opened by the App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.sessions.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.bus.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.ownedStorage != nil {
		if err := a.ownedStorage.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = logging.FromContext(a.ctx).Sync()
	a.cancel()

	if len(errs) > 0 {
		return errors.WrapPrefix(errs[0], "escala: close", 0)
	}
	return nil
}
