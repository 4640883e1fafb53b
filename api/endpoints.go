package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, call{
		method: http.MethodPost, route: "/Auth/login", path: "/Auth/login",
		in: LoginRequest{Email: email, Password: password}, out: &out,
	})
	return out, err
}

// Register creates an account. The user still has to log in afterwards.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	if req.Ministries == nil {
		req.Ministries = []MinistryFunctions{}
	}
	return c.do(ctx, call{
		method: http.MethodPost, route: "/Auth/register", path: "/Auth/register", in: req,
	})
}

// Users lists every user. Admin only.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var out []User
	err := c.do(ctx, call{method: http.MethodGet, route: "/Admin/users", path: "/Admin/users", out: &out})
	return out, err
}

// SetUserRoles replaces the roles of a user.
func (c *Client) SetUserRoles(ctx context.Context, userID string, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	return c.do(ctx, call{
		method: http.MethodPut, route: "/Admin/users/{id}/roles",
		path: "/Admin/users/" + url.PathEscape(userID) + "/roles",
		in:   rolesBody{Roles: roles},
	})
}

// SetUserMinistries replaces the ministries and functions of a user.
func (c *Client) SetUserMinistries(ctx context.Context, userID string, ministries []MinistryAssignment) error {
	if ministries == nil {
		ministries = []MinistryAssignment{}
	}
	return c.do(ctx, call{
		method: http.MethodPut, route: "/Admin/users/{id}/ministries-functions",
		path: "/Admin/users/" + url.PathEscape(userID) + "/ministries-functions",
		in:   ministriesBody{Ministries: ministries},
	})
}

func (c *Client) Ministries(ctx context.Context) ([]Ministry, error) {
	var out []Ministry
	err := c.do(ctx, call{method: http.MethodGet, route: "/Admin/ministries", path: "/Admin/ministries", out: &out})
	return out, err
}

func (c *Client) CreateMinistry(ctx context.Context, name string) error {
	return c.do(ctx, call{
		method: http.MethodPost, route: "/Admin/ministries", path: "/Admin/ministries",
		in: nameBody{Name: name},
	})
}

func (c *Client) AssignLeader(ctx context.Context, userID string, ministryID int) error {
	return c.do(ctx, call{
		method: http.MethodPost, route: "/Admin/assign-leader", path: "/Admin/assign-leader",
		in: leaderAssignment{UserID: userID, MinistryID: ministryID},
	})
}

func (c *Client) RemoveLeader(ctx context.Context, userID string, ministryID int) error {
	return c.do(ctx, call{
		method: http.MethodPost, route: "/Admin/remove-leader", path: "/Admin/remove-leader",
		in: leaderAssignment{UserID: userID, MinistryID: ministryID},
	})
}

// MinistryLeaders lists the leaders of a ministry.
func (c *Client) MinistryLeaders(ctx context.Context, ministryID int) ([]Leader, error) {
	var out []Leader
	err := c.do(ctx, call{
		method: http.MethodGet, route: "/Admin/leaders/{ministryId}",
		path: "/Admin/leaders/" + strconv.Itoa(ministryID), out: &out,
	})
	return out, err
}

// LeaderMinistries lists the ministries led by the signed-in user.
func (c *Client) LeaderMinistries(ctx context.Context) ([]Ministry, error) {
	var out []Ministry
	err := c.do(ctx, call{method: http.MethodGet, route: "/ministries/leader", path: "/ministries/leader", out: &out})
	return out, err
}

// GeneralAvailability returns the dates leaders have opened.
func (c *Client) GeneralAvailability(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, call{method: http.MethodGet, route: "/availability/general", path: "/availability/general", out: &out})
	return out, err
}

// SetGeneralAvailability opens dates for a ministry.
func (c *Client) SetGeneralAvailability(ctx context.Context, ministryID int, dates []string) error {
	if dates == nil {
		dates = []string{}
	}
	return c.do(ctx, call{
		method: http.MethodPost, route: "/availability/general", path: "/availability/general",
		in: datesBody{Dates: dates, MinistryID: ministryID},
	})
}

// UserAvailability returns the dates the signed-in user marked.
func (c *Client) UserAvailability(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, call{method: http.MethodGet, route: "/availability/user", path: "/availability/user", out: &out})
	return out, err
}

// SaveUserAvailability replaces the signed-in user's dates.
func (c *Client) SaveUserAvailability(ctx context.Context, dates []string) error {
	if dates == nil {
		dates = []string{}
	}
	return c.do(ctx, call{
		method: http.MethodPost, route: "/availability/user", path: "/availability/user",
		in: datesBody{Dates: dates},
	})
}

// UserSchedule returns the dates the signed-in user is scheduled on.
func (c *Client) UserSchedule(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, call{method: http.MethodGet, route: "/schedule/user", path: "/schedule/user", out: &out})
	return out, err
}

// ScheduleForDate returns who serves in each ministry on date (YYYY-MM-DD).
func (c *Client) ScheduleForDate(ctx context.Context, date string) (Schedule, error) {
	out := Schedule{}
	err := c.do(ctx, call{
		method: http.MethodGet, route: "/schedule/date/{date}",
		path: "/schedule/date/" + url.PathEscape(date), out: &out,
	})
	return out, err
}
