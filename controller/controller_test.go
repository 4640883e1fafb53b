package controller

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/escala-app/escala/api"
	"github.com/escala-app/escala/session"
	"github.com/escala-app/escala/storage/memstore"
)

func makeToken(t *testing.T, sub string, roles ...string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": sub + "@example.com",
		"name":  "User " + sub,
		"role":  roles,
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	return raw
}

type request struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

// backend is a fake of the scheduling API with just enough state for the
// controllers.
type backend struct {
	*httptest.Server
	t *testing.T

	mu       sync.Mutex
	requests []request
	general  []string
	mine     []string
	failing  map[string]int
}

func (b *backend) seen(method, path string) []request {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []request
	for _, r := range b.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// fail makes every request to path answer status.
func (b *backend) fail(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[path] = status
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newBackend(t *testing.T) *backend {
	b := &backend{
		t:       t,
		general: []string{"2024-06-01", "2024-06-08", "2024-06-15"},
		mine:    []string{"2024-06-08", "2024-05-25"},
		failing: map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rec := request{Method: req.Method, Path: req.URL.Path, Auth: req.Header.Get("Authorization")}
			if raw, _ := io.ReadAll(req.Body); len(raw) > 0 {
				_ = json.Unmarshal(raw, &rec.Body)
			}
			b.mu.Lock()
			b.requests = append(b.requests, rec)
			status, failing := b.failing[req.URL.Path]
			b.mu.Unlock()
			if failing {
				writeJSON(w, status, map[string]string{"message": "nope"})
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/Auth/login", func(w http.ResponseWriter, req *http.Request) {
			var body api.LoginRequest
			recs := b.seen(http.MethodPost, "/api/Auth/login")
			raw, _ := json.Marshal(recs[len(recs)-1].Body)
			_ = json.Unmarshal(raw, &body)
			switch {
			case body.Password != "secret":
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Credenciais inválidas."})
			case body.Email == "garbage@example.com":
				writeJSON(w, http.StatusOK, api.LoginResponse{Token: "not-a-jwt"})
			case body.Email == "admin@example.com":
				writeJSON(w, http.StatusOK, api.LoginResponse{Token: makeToken(t, "admin", "Admin")})
			case body.Email == "leader@example.com":
				writeJSON(w, http.StatusOK, api.LoginResponse{Token: makeToken(t, "leader", "leader")})
			default:
				writeJSON(w, http.StatusOK, api.LoginResponse{Token: makeToken(t, "ana", "member")})
			}
		})
		r.Post("/Auth/register", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		r.Get("/Admin/users", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, []api.User{
				{ID: "u2", UserName: "bia", Email: "bia@example.com", Roles: []string{"leader"}},
				{ID: "u1", UserName: "Ana", Email: "ana@example.com", Roles: []string{"member"}},
				{ID: "u3", UserName: "ana", Email: "ana2@example.com", Roles: []string{"member"}},
			})
		})
		r.Put("/Admin/users/{id}/roles", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Put("/Admin/users/{id}/ministries-functions", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/Admin/ministries", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, []api.Ministry{{ID: 1, Name: "Música"}, {ID: 2, Name: "Comunicação"}})
		})
		r.Post("/Admin/ministries", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		r.Post("/Admin/assign-leader", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Post("/Admin/remove-leader", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/Admin/leaders/{ministryId}", func(w http.ResponseWriter, req *http.Request) {
			switch chi.URLParam(req, "ministryId") {
			case "1":
				writeJSON(w, http.StatusOK, []api.Leader{{ID: "u2", UserName: "bia", Email: "bia@example.com"}})
			case "2":
				writeJSON(w, http.StatusOK, []api.Leader{})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		})
		r.Get("/ministries/leader", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, []api.Ministry{{ID: 2, Name: "Comunicação"}, {ID: 1, Name: "Música"}})
		})
		r.Get("/availability/general", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			writeJSON(w, http.StatusOK, b.general)
		})
		r.Post("/availability/general", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		r.Get("/availability/user", func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			writeJSON(w, http.StatusOK, b.mine)
		})
		r.Post("/availability/user", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Dates []string `json:"dates"`
			}
			recs := b.seen(http.MethodPost, "/api/availability/user")
			raw, _ := json.Marshal(recs[len(recs)-1].Body)
			_ = json.Unmarshal(raw, &body)
			b.mu.Lock()
			b.mine = body.Dates
			b.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/schedule/user", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, []string{"2024-06-15", "2024-06-08"})
		})
		r.Get("/schedule/date/{date}", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string][]string{
				"Música":      {"ana", "bia"},
				"Comunicação": nil,
			})
		})
	})

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Close)
	return b
}

// fixture wires a session store and an API client that authenticates with
// it, against a fresh fake backend.
type fixture struct {
	backend  *backend
	client   *api.Client
	sessions *session.Store
	auth     *Auth
}

func newFixture(t *testing.T) *fixture {
	b := newBackend(t)
	sessions := session.New(memstore.New())
	t.Cleanup(func() { _ = sessions.Close() })
	sessions.Initialize(t.Context())

	client := api.New(b.URL+"/api", api.WithTokenSource(sessions))
	return &fixture{
		backend:  b,
		client:   client,
		sessions: sessions,
		auth:     NewAuth(client, sessions),
	}
}

func (f *fixture) login(t *testing.T, email string) {
	t.Helper()
	_, err := f.auth.Login(t.Context(), email, "secret")
	require.NoError(t, err)
}
