package api

// LoginRequest is the body of POST /Auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token. Roles are informational, the
// session reads them from the token itself.
type LoginResponse struct {
	Token string   `json:"token"`
	Roles []string `json:"roles"`
}

// MinistryFunctions names a ministry and the functions a member performs in
// it, e.g. {"Música", ["Vocal", "Teclado"]}.
type MinistryFunctions struct {
	Ministry  string   `json:"ministry"`
	Functions []string `json:"functions"`
}

// RegisterRequest is the body of POST /Auth/register.
type RegisterRequest struct {
	Name       string              `json:"name"`
	Email      string              `json:"email"`
	Phone      string              `json:"phone"`
	Birthday   string              `json:"birthday"`
	Password   string              `json:"password"`
	Ministries []MinistryFunctions `json:"ministries"`
}

// MinistryAssignment is a ministry membership as stored by the backend.
type MinistryAssignment struct {
	ID        int      `json:"id,omitempty"`
	Ministry  string   `json:"ministry"`
	Functions []string `json:"functions"`
}

// User as listed by the admin endpoints. Phone and Birthday may be empty.
type User struct {
	ID         string               `json:"id"`
	UserName   string               `json:"userName"`
	Email      string               `json:"email"`
	Phone      string               `json:"phone,omitempty"`
	Birthday   string               `json:"birthday,omitempty"`
	Roles      []string             `json:"roles"`
	Ministries []MinistryAssignment `json:"ministries,omitempty"`
}

type Ministry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Leader struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Email    string `json:"email"`
}

// Schedule maps a ministry name to the members serving on a date.
type Schedule map[string][]string

type leaderAssignment struct {
	UserID     string `json:"userId"`
	MinistryID int    `json:"ministryId"`
}

type rolesBody struct {
	Roles []string `json:"roles"`
}

type ministriesBody struct {
	Ministries []MinistryAssignment `json:"ministries"`
}

type nameBody struct {
	Name string `json:"name"`
}

type datesBody struct {
	Dates      []string `json:"dates"`
	MinistryID int      `json:"ministryId,omitempty"`
}
