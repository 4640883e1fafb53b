package controller

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/escala-app/escala/api"
	"github.com/escala-app/escala/authz"
	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/logging"
	"github.com/escala-app/escala/session"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
)

var (
	ErrUnknownRole = errors.NewC("controller: unknown role", codes.InvalidArgument).
			WithPublicMessage("That role does not exist.")
	ErrUserNotFound = errors.NewC("controller: user not found", codes.NotFound).
			WithPublicMessage("No user matches.")
	ErrAmbiguousUser = errors.NewC("controller: more than one user matches", codes.InvalidArgument).
				WithPublicMessage("More than one user matches, be more specific.")
	ErrMinistryNotFound = errors.NewC("controller: ministry not found", codes.NotFound).
				WithPublicMessage("No ministry matches.")
)

// leaderFetchLimit bounds concurrent leader lookups.
const leaderFetchLimit = 4

// Admin drives the administration screens. Every call checks the Admin role
// against the current session first.
type Admin struct {
	client   *api.Client
	sessions *session.Store
}

func NewAdmin(client *api.Client, sessions *session.Store) *Admin {
	return &Admin{client: client, sessions: sessions}
}

func (a *Admin) require() error {
	return authz.Require(a.sessions.Current(), authz.RoleAdmin)
}

// Users lists users sorted by name.
func (a *Admin) Users(ctx context.Context) ([]api.User, error) {
	if err := a.require(); err != nil {
		return nil, err
	}
	users, err := a.client.Users(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].UserName) < strings.ToLower(users[j].UserName)
	})
	return users, nil
}

// FindUser resolves a user by id, email or name. Email and name matches are
// case-insensitive and must be unique.
func (a *Admin) FindUser(ctx context.Context, query string) (api.User, error) {
	users, err := a.Users(ctx)
	if err != nil {
		return api.User{}, err
	}
	return findUser(users, query)
}

func findUser(users []api.User, query string) (api.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return api.User{}, errors.Mark(ErrMissingField, 0).Append("user")
	}
	var matches []api.User
	for _, u := range users {
		if u.ID == query {
			return u, nil
		}
		if strings.EqualFold(u.Email, query) || strings.EqualFold(u.UserName, query) {
			matches = append(matches, u)
		}
	}
	switch len(matches) {
	case 0:
		return api.User{}, errors.Mark(ErrUserNotFound, 0).Append(query)
	case 1:
		return matches[0], nil
	default:
		return api.User{}, errors.Mark(ErrAmbiguousUser, 0).Append(query)
	}
}

// SetRoles replaces a user's roles. Roles must be ones the backend knows.
func (a *Admin) SetRoles(ctx context.Context, userID string, roles []string) error {
	if err := a.require(); err != nil {
		return err
	}
	clean := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if !slices.Contains(authz.AllRoles, authz.Role(r)) {
			return errors.Mark(ErrUnknownRole, 0).Append(r)
		}
		if !slices.Contains(clean, r) {
			clean = append(clean, r)
		}
	}
	if err := a.client.SetUserRoles(ctx, userID, clean); err != nil {
		return err
	}
	logging.Infow(ctx, "controller: roles updated", "user.id", userID, "user.roles", clean)
	return nil
}

// SetMinistries replaces a user's ministry memberships.
func (a *Admin) SetMinistries(ctx context.Context, userID string, ministries []api.MinistryAssignment) error {
	if err := a.require(); err != nil {
		return err
	}
	for _, m := range ministries {
		if strings.TrimSpace(m.Ministry) == "" {
			return errors.Mark(ErrMissingField, 0).Append("ministry")
		}
	}
	return a.client.SetUserMinistries(ctx, userID, ministries)
}

// Ministries lists ministries sorted by name.
func (a *Admin) Ministries(ctx context.Context) ([]api.Ministry, error) {
	if err := a.require(); err != nil {
		return nil, err
	}
	ms, err := a.client.Ministries(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Name < ms[j].Name })
	return ms, nil
}

// FindMinistry resolves a ministry by name, case-insensitively.
func (a *Admin) FindMinistry(ctx context.Context, name string) (api.Ministry, error) {
	ms, err := a.Ministries(ctx)
	if err != nil {
		return api.Ministry{}, err
	}
	for _, m := range ms {
		if strings.EqualFold(m.Name, strings.TrimSpace(name)) {
			return m, nil
		}
	}
	return api.Ministry{}, errors.Mark(ErrMinistryNotFound, 0).Append(name)
}

func (a *Admin) CreateMinistry(ctx context.Context, name string) error {
	if err := a.require(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Mark(ErrMissingField, 0).Append("name")
	}
	return a.client.CreateMinistry(ctx, name)
}

func (a *Admin) AssignLeader(ctx context.Context, userID string, ministryID int) error {
	if err := a.require(); err != nil {
		return err
	}
	return a.client.AssignLeader(ctx, userID, ministryID)
}

func (a *Admin) RemoveLeader(ctx context.Context, userID string, ministryID int) error {
	if err := a.require(); err != nil {
		return err
	}
	return a.client.RemoveLeader(ctx, userID, ministryID)
}

// Leaders lists the leaders of one ministry.
func (a *Admin) Leaders(ctx context.Context, ministryID int) ([]api.Leader, error) {
	if err := a.require(); err != nil {
		return nil, err
	}
	return a.client.MinistryLeaders(ctx, ministryID)
}

// LeadersByMinistry fetches the leaders of every given ministry
// concurrently. The first failure cancels the rest.
func (a *Admin) LeadersByMinistry(ctx context.Context, ministries []api.Ministry) (map[int][]api.Leader, error) {
	if err := a.require(); err != nil {
		return nil, err
	}
	results := make([][]api.Leader, len(ministries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(leaderFetchLimit)
	for i, m := range ministries {
		g.Go(func() error {
			leaders, err := a.client.MinistryLeaders(gctx, m.ID)
			if err != nil {
				return errors.WrapPrefix(err, m.Name, 0)
			}
			results[i] = leaders
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[int][]api.Leader, len(ministries))
	for i, m := range ministries {
		out[m.ID] = results[i]
	}
	return out, nil
}
