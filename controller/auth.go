package controller

import (
	"context"
	"net/mail"
	"strings"

	"github.com/escala-app/escala/api"
	"github.com/escala-app/escala/availability"
	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/logging"
	"github.com/escala-app/escala/session"
	"google.golang.org/grpc/codes"
)

var (
	ErrMissingField = errors.NewC("controller: required field missing", codes.InvalidArgument).
			WithPublicMessage("Please fill in all required fields.")
	ErrInvalidEmail = errors.NewC("controller: invalid email", codes.InvalidArgument).
			WithPublicMessage("Please enter a valid email address.")
	ErrPasswordMismatch = errors.NewC("controller: passwords do not match", codes.InvalidArgument).
				WithPublicMessage("Passwords do not match.")
)

// Auth drives the login, register and logout screens.
type Auth struct {
	client   *api.Client
	sessions *session.Store
}

func NewAuth(client *api.Client, sessions *session.Store) *Auth {
	return &Auth{client: client, sessions: sessions}
}

// Login exchanges credentials for a token and signs the session in with it.
// The returned snapshot is the session after sign-in.
func (a *Auth) Login(ctx context.Context, email, password string) (session.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return a.sessions.Current(), errors.Mark(ErrMissingField, 0)
	}

	resp, err := a.client.Login(ctx, email, password)
	if err != nil {
		return a.sessions.Current(), err
	}
	if err := a.sessions.SignIn(ctx, resp.Token); err != nil {
		return a.sessions.Current(), err
	}

	// A sign-out queued behind SignIn may already have applied.
	s := a.sessions.Current()
	if s.IsAuthenticated() {
		logging.Infow(ctx, "controller: logged in", "user.id", s.Identity.SubjectID, "user.roles", []string(s.Roles()))
	}
	return s, nil
}

// Logout signs the session out. The session is anonymous afterwards even if
// the error is non-nil.
func (a *Auth) Logout(ctx context.Context) error {
	return a.sessions.SignOut(ctx)
}

// RegisterForm is the register screen's input.
type RegisterForm struct {
	Name            string
	Email           string
	Phone           string
	Birthday        string
	Password        string
	ConfirmPassword string
	Ministries      []api.MinistryFunctions
}

// Validate checks the form without contacting the backend.
func (f RegisterForm) Validate() error {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"name", f.Name},
		{"email", f.Email},
		{"password", f.Password},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return errors.Mark(ErrMissingField, 0).Append(strings.Join(missing, ", "))
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(f.Email)); err != nil {
		return errors.Mark(ErrInvalidEmail, 0).Append(f.Email)
	}
	if f.Password != f.ConfirmPassword {
		return errors.Mark(ErrPasswordMismatch, 0)
	}
	if f.Birthday != "" {
		if _, err := availability.ParseDate(f.Birthday); err != nil {
			return err
		}
	}
	return nil
}

// Register creates the account. It does not sign in.
func (a *Auth) Register(ctx context.Context, f RegisterForm) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return a.client.Register(ctx, api.RegisterRequest{
		Name:       strings.TrimSpace(f.Name),
		Email:      strings.TrimSpace(f.Email),
		Phone:      strings.TrimSpace(f.Phone),
		Birthday:   strings.TrimSpace(f.Birthday),
		Password:   f.Password,
		Ministries: f.Ministries,
	})
}
