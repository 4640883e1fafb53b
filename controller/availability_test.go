package controller

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/escala-app/escala/api"
	"github.com/escala-app/escala/authz"
	"github.com/escala-app/escala/availability"
	"github.com/escala-app/escala/errors"
)

func dates(ds []availability.Date) []string {
	return availability.Strings(ds)
}

func TestUserAvailability_load(t *testing.T) {
	f := newFixture(t)
	f.login(t, "ana@example.com")
	ua := NewUserAvailability(f.client, f.sessions)

	dropped, err := ua.Load(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-05-25"}, dates(dropped), "saved dates leaders no longer offer are dropped")
	assert.Equal(t, []string{"2024-06-01", "2024-06-08", "2024-06-15"}, dates(ua.Offered()))
	assert.Equal(t, []string{"2024-06-08"}, dates(ua.Selected()))
}

func TestUserAvailability_requiresSession(t *testing.T) {
	f := newFixture(t)
	ua := NewUserAvailability(f.client, f.sessions)

	_, err := ua.Load(t.Context())
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)
	assert.ErrorIs(t, ua.Save(t.Context()), authz.ErrUnauthenticated)
}

func TestUserAvailability_toggleAndSave(t *testing.T) {
	f := newFixture(t)
	f.login(t, "ana@example.com")
	ua := NewUserAvailability(f.client, f.sessions)
	_, err := ua.Load(t.Context())
	require.NoError(t, err)

	on, err := ua.Toggle("2024-06-15")
	require.NoError(t, err)
	assert.True(t, on)

	on, err = ua.Toggle("2024-06-08")
	require.NoError(t, err)
	assert.False(t, on)

	_, err = ua.Toggle("2024-07-01")
	assert.ErrorIs(t, err, availability.ErrNotOffered)

	_, err = ua.Toggle("15/06/2024")
	assert.ErrorIs(t, err, availability.ErrInvalidDate)

	require.NoError(t, ua.Save(t.Context()))
	saved := f.backend.seen(http.MethodPost, "/api/availability/user")
	require.Len(t, saved, 1)
	assert.Equal(t, []any{"2024-06-15"}, saved[0].Body["dates"])

	assert.Len(t, f.backend.seen(http.MethodGet, "/api/availability/user"), 2, "save reloads")
	assert.Equal(t, []string{"2024-06-15"}, dates(ua.Selected()))
}

func TestUserAvailability_loadFailure(t *testing.T) {
	f := newFixture(t)
	f.login(t, "ana@example.com")
	f.backend.fail("/api/availability/general", http.StatusInternalServerError)
	ua := NewUserAvailability(f.client, f.sessions)

	_, err := ua.Load(t.Context())
	require.Error(t, err)
	assert.Equal(t, codes.Internal, errors.Code(err))
	assert.Empty(t, ua.Offered())
}

func TestUserAvailability_mount(t *testing.T) {
	f := newFixture(t)
	f.login(t, "ana@example.com")
	ua := NewUserAvailability(f.client, f.sessions)

	tasks := NewTasks(t.Context())
	defer tasks.Close()

	loaded := make(chan error, 1)
	ua.Mount(tasks, func(_ []availability.Date, err error) { loaded <- err })

	select {
	case err := <-loaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("load never finished")
	}
	assert.Len(t, ua.Offered(), 3)
}

func TestLeaderAvailability(t *testing.T) {
	f := newFixture(t)
	f.login(t, "leader@example.com")
	la := NewLeaderAvailability(f.client, f.sessions)

	ms, err := la.Load(t.Context())
	require.NoError(t, err)
	assert.Len(t, ms, 2)
	assert.Equal(t, 2, la.MinistryID(), "first ministry is the default")

	require.NoError(t, la.SelectMinistry(1))
	assert.ErrorIs(t, la.SelectMinistry(9), ErrMinistryNotFound)
	assert.Equal(t, 1, la.MinistryID())

	_, err = la.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, la.MinistryID(), "reloading keeps a still valid selection")

	for _, d := range []string{"2024-06-22", "2024-06-01", "2024-06-29"} {
		on, err := la.Toggle(d)
		require.NoError(t, err)
		assert.True(t, on)
	}
	on, err := la.Toggle("2024-06-29")
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, la.Save(t.Context()))
	body := f.backend.seen(http.MethodPost, "/api/availability/general")[0].Body
	assert.EqualValues(t, 1, body["ministryId"])
	assert.Equal(t, []any{"2024-06-01", "2024-06-22"}, body["dates"])

	assert.Empty(t, la.Selected(), "draft is cleared after saving")
	assert.Equal(t, 1, la.MinistryID())
}

func TestLeaderAvailability_saveWithoutMinistry(t *testing.T) {
	f := newFixture(t)
	f.login(t, "leader@example.com")
	la := NewLeaderAvailability(f.client, f.sessions)

	_, err := la.Toggle("2024-06-01")
	require.NoError(t, err)
	assert.ErrorIs(t, la.Save(t.Context()), availability.ErrNoMinistry)
	assert.Empty(t, f.backend.seen(http.MethodPost, "/api/availability/general"))
	assert.Len(t, la.Selected(), 1, "draft is kept on failure")
}

func TestLeaderAvailability_requiresLeader(t *testing.T) {
	f := newFixture(t)
	f.login(t, "ana@example.com")
	la := NewLeaderAvailability(f.client, f.sessions)

	_, err := la.Load(t.Context())
	assert.ErrorIs(t, err, authz.ErrForbidden)

	var ms []api.Ministry
	tasks := NewTasks(t.Context())
	done := make(chan error, 1)
	la.Mount(tasks, func(got []api.Ministry, err error) {
		ms = got
		done <- err
	})
	assert.ErrorIs(t, <-done, authz.ErrForbidden)
	tasks.Close()
	assert.Nil(t, ms)
}
