package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/escala-app/escala/errors"
)

// recorded is a request as seen by the fake backend.
type recorded struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

type fakeBackend struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recorded
}

func (f *fakeBackend) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeBackend(t *testing.T) *fakeBackend {
	f := &fakeBackend{}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rec := recorded{Method: req.Method, Path: req.URL.Path, Header: req.Header.Clone()}
			if b, _ := io.ReadAll(req.Body); len(b) > 0 {
				_ = json.Unmarshal(b, &rec.Body)
			}
			f.mu.Lock()
			f.requests = append(f.requests, rec)
			f.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/Auth/login", func(w http.ResponseWriter, req *http.Request) {
			if f.last().Body["password"] != "secret" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Credenciais inválidas."})
				return
			}
			writeJSON(w, http.StatusOK, LoginResponse{Token: "tok", Roles: []string{"member"}})
		})
		r.Post("/Auth/register", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		r.Get("/Admin/users", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{{
				"id": "u1", "userName": "ana", "email": "ana@example.com",
				"phone": nil, "birthday": nil, "roles": []string{"member"},
				"ministries": []map[string]any{{"id": 3, "ministry": "Música", "functions": []string{"Vocal"}}},
			}})
		})
		r.Put("/Admin/users/{id}/roles", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Put("/Admin/users/{id}/ministries-functions", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/Admin/ministries", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, []Ministry{{ID: 1, Name: "Música"}, {ID: 2, Name: "Comunicação"}})
		})
		r.Post("/Admin/ministries", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusConflict, map[string]string{"title": "Ministry already exists"})
		})
		r.Post("/Admin/assign-leader", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Post("/Admin/remove-leader", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/Admin/leaders/{ministryId}", func(w http.ResponseWriter, req *http.Request) {
			if chi.URLParam(req, "ministryId") != "1" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, []Leader{{ID: "u2", UserName: "bia", Email: "bia@example.com"}})
		})
		r.Get("/ministries/leader", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, []Ministry{{ID: 1, Name: "Música"}})
		})
		r.Get("/availability/general", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, []string{"2024-06-01", "2024-06-08"})
		})
		r.Post("/availability/general", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		r.Get("/availability/user", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, []string{"2024-06-08"})
		})
		r.Post("/availability/user", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/schedule/user", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, []string{"2024-06-08"})
		})
		r.Get("/schedule/date/{date}", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, Schedule{"Música": {"ana", "bia"}})
		})
		r.Get("/slow", func(w http.ResponseWriter, req *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-req.Context().Done():
			}
		})
		r.Get("/broken", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("{not json"))
		})
		r.Get("/boom", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

func newClient(f *fakeBackend, opts ...Option) *Client {
	return New(f.URL+"/api/", opts...)
}

func TestLogin(t *testing.T) {
	f := newFakeBackend(t)
	c := newClient(f)

	resp, err := c.Login(t.Context(), "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, []string{"member"}, resp.Roles)

	req := f.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/Auth/login", req.Path)
	assert.Equal(t, "ana@example.com", req.Body["email"])
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Empty(t, req.Header.Get("Authorization"), "no token, no header")

	_, err = uuid.Parse(req.Header.Get(RequestIDHeader))
	assert.NoError(t, err, "request id should be a uuid")
}

func TestLogin_invalidCredentials(t *testing.T) {
	f := newFakeBackend(t)
	c := newClient(f)

	_, err := c.Login(t.Context(), "ana@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, errors.Code(err))
	assert.Equal(t, http.StatusUnauthorized, errors.HTTPStatusCode(err))
	assert.Equal(t, "Credenciais inválidas.", errors.PublicMessage(err, "fallback"))
	assert.Contains(t, err.Error(), "POST /Auth/login")
}

func TestBearerToken(t *testing.T) {
	f := newFakeBackend(t)
	token := "abc"
	c := newClient(f, WithTokenSource(TokenFunc(func() string { return token })))

	_, err := c.Users(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", f.last().Header.Get("Authorization"))

	// The source is consulted on every request.
	token = ""
	_, err = c.Users(t.Context())
	require.NoError(t, err)
	assert.Empty(t, f.last().Header.Get("Authorization"))
}

func TestRequestIDsAreUnique(t *testing.T) {
	f := newFakeBackend(t)
	c := newClient(f)

	_, _ = c.Ministries(t.Context())
	first := f.last().Header.Get(RequestIDHeader)
	_, _ = c.Ministries(t.Context())
	assert.NotEqual(t, first, f.last().Header.Get(RequestIDHeader))
}

func TestEndpoints(t *testing.T) {
	f := newFakeBackend(t)
	c := newClient(f)
	ctx := t.Context()

	t.Run("Register", func(t *testing.T) {
		require.NoError(t, c.Register(ctx, RegisterRequest{Name: "Ana", Email: "a@x", Password: "p"}))
		req := f.last()
		assert.Equal(t, "/api/Auth/register", req.Path)
		assert.Equal(t, []any{}, req.Body["ministries"], "ministries should be an array, not null")
	})

	t.Run("Users", func(t *testing.T) {
		users, err := c.Users(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "ana", users[0].UserName)
		assert.Empty(t, users[0].Phone, "null phone decodes to empty")
		assert.Equal(t, []MinistryAssignment{{ID: 3, Ministry: "Música", Functions: []string{"Vocal"}}}, users[0].Ministries)
	})

	t.Run("SetUserRoles", func(t *testing.T) {
		require.NoError(t, c.SetUserRoles(ctx, "u/1", []string{"Admin", "leader"}))
		req := f.last()
		assert.Equal(t, http.MethodPut, req.Method)
		assert.Equal(t, "/api/Admin/users/u/1/roles", req.Path)
		assert.Equal(t, []any{"Admin", "leader"}, req.Body["roles"])
	})

	t.Run("SetUserRolesEmpty", func(t *testing.T) {
		require.NoError(t, c.SetUserRoles(ctx, "u1", nil))
		assert.Equal(t, []any{}, f.last().Body["roles"])
	})

	t.Run("SetUserMinistries", func(t *testing.T) {
		require.NoError(t, c.SetUserMinistries(ctx, "u1", []MinistryAssignment{{Ministry: "Música", Functions: []string{"Baixo"}}}))
		req := f.last()
		assert.Equal(t, "/api/Admin/users/u1/ministries-functions", req.Path)
		assert.Len(t, req.Body["ministries"], 1)
	})

	t.Run("CreateMinistryConflict", func(t *testing.T) {
		err := c.CreateMinistry(ctx, "Música")
		assert.Equal(t, codes.AlreadyExists, errors.Code(err))
		assert.Equal(t, "Ministry already exists", errors.PublicMessage(err, ""))
		assert.Equal(t, "Música", f.last().Body["name"])
	})

	t.Run("AssignLeader", func(t *testing.T) {
		require.NoError(t, c.AssignLeader(ctx, "u2", 1))
		req := f.last()
		assert.Equal(t, "/api/Admin/assign-leader", req.Path)
		assert.Equal(t, "u2", req.Body["userId"])
		assert.Equal(t, float64(1), req.Body["ministryId"])
	})

	t.Run("RemoveLeader", func(t *testing.T) {
		require.NoError(t, c.RemoveLeader(ctx, "u2", 1))
		assert.Equal(t, "/api/Admin/remove-leader", f.last().Path)
	})

	t.Run("MinistryLeaders", func(t *testing.T) {
		leaders, err := c.MinistryLeaders(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []Leader{{ID: "u2", UserName: "bia", Email: "bia@example.com"}}, leaders)

		_, err = c.MinistryLeaders(ctx, 9)
		assert.Equal(t, codes.NotFound, errors.Code(err))
	})

	t.Run("LeaderMinistries", func(t *testing.T) {
		ms, err := c.LeaderMinistries(ctx)
		require.NoError(t, err)
		assert.Equal(t, []Ministry{{ID: 1, Name: "Música"}}, ms)
	})

	t.Run("Availability", func(t *testing.T) {
		general, err := c.GeneralAvailability(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-01", "2024-06-08"}, general)

		require.NoError(t, c.SetGeneralAvailability(ctx, 1, []string{"2024-06-15"}))
		req := f.last()
		assert.Equal(t, []any{"2024-06-15"}, req.Body["dates"])
		assert.Equal(t, float64(1), req.Body["ministryId"])

		mine, err := c.UserAvailability(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-08"}, mine)

		require.NoError(t, c.SaveUserAvailability(ctx, nil))
		req = f.last()
		assert.Equal(t, []any{}, req.Body["dates"])
		assert.NotContains(t, req.Body, "ministryId")
	})

	t.Run("Schedule", func(t *testing.T) {
		days, err := c.UserSchedule(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-08"}, days)

		sched, err := c.ScheduleForDate(ctx, "2024-06-08")
		require.NoError(t, err)
		assert.Equal(t, Schedule{"Música": {"ana", "bia"}}, sched)
		assert.Equal(t, "/api/schedule/date/2024-06-08", f.last().Path)
	})
}

func TestServerErrorWithoutBody(t *testing.T) {
	f := newFakeBackend(t)
	c := newClient(f)

	err := c.do(t.Context(), call{method: http.MethodGet, route: "/boom", path: "/boom"})
	assert.Equal(t, codes.Internal, errors.Code(err))
	assert.Equal(t, "fallback", errors.PublicMessage(err, "fallback"))
}

func TestBadResponse(t *testing.T) {
	f := newFakeBackend(t)
	c := newClient(f)

	var out []string
	err := c.do(t.Context(), call{method: http.MethodGet, route: "/broken", path: "/broken", out: &out})
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestNetworkError(t *testing.T) {
	f := newFakeBackend(t)
	url := f.URL
	f.Close()

	c := New(url + "/api")
	_, err := c.Ministries(t.Context())
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, codes.Unavailable, errors.Code(err))
}

func TestTimeout(t *testing.T) {
	f := newFakeBackend(t)
	c := newClient(f, WithTimeout(10*time.Millisecond))

	err := c.do(t.Context(), call{method: http.MethodGet, route: "/slow", path: "/slow"})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, codes.DeadlineExceeded, errors.Code(err))
}

func TestRateLimit(t *testing.T) {
	f := newFakeBackend(t)
	c := newClient(f, WithRateLimit(0.1, 1))

	_, err := c.Ministries(t.Context())
	require.NoError(t, err, "burst allows the first request")

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Ministries(ctx)
	assert.ErrorIs(t, err, ErrNetwork, "second request can't be admitted before the deadline")
}

func TestMetrics(t *testing.T) {
	f := newFakeBackend(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := newClient(f, WithMetrics(m))

	_, _ = c.MinistryLeaders(t.Context(), 1)
	_, _ = c.MinistryLeaders(t.Context(), 2)
	_, _ = c.MinistryLeaders(t.Context(), 9)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/Admin/leaders/{ministryId}", "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/Admin/leaders/{ministryId}", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency), "ids must not become labels")
}

func TestNew_defaults(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("").BaseURL())
	assert.Equal(t, "http://example.com/api", New("http://example.com/api///").BaseURL())
}
