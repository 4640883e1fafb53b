package command

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/internal/cli/output"
	"github.com/escala-app/escala/session"
	"github.com/escala-app/escala/token"
)

func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Sign in and remember the session",
		ArgsUsage: "EMAIL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Password, read from stdin when omitted",
				EnvVars: []string{"ESCALA_PASSWORD"},
			},
		},
		Action: login,
	}
}

func login(c *cli.Context) error {
	email, err := argument(c, 0, "EMAIL")
	if err != nil {
		return err
	}
	password := c.String("password")
	if password == "" {
		if password, err = readLine(c, "Password: "); err != nil {
			return err
		}
	}

	s, err := appFrom(c).Auth().Login(ctxFrom(c), email, password)
	if err != nil {
		return err
	}
	return printer(c).Message("Signed in as %s", displayName(s.Identity))
}

func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored session",
		Action: func(c *cli.Context) error {
			if err := appFrom(c).Auth().Logout(ctxFrom(c)); err != nil {
				// The session is gone from memory, only the stored copy may linger.
				return errors.WrapPrefix(err, "signed out, but the stored token could not be removed", 0)
			}
			return printer(c).Message("Signed out")
		},
	}
}

func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the signed-in user",
		Action: gated("/whoami", whoami),
	}
}

// whoamiView is the printable session.
type whoamiView struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Name      string    `json:"name" yaml:"name"`
	Phone     string    `json:"phone,omitempty" yaml:"phone,omitempty"`
	Birthday  string    `json:"birthday,omitempty" yaml:"birthday,omitempty"`
	Roles     []string  `json:"roles" yaml:"roles"`
	ExpiresAt time.Time `json:"expiresAt,omitzero" yaml:"expiresAt,omitempty"`
}

func whoami(c *cli.Context) error {
	s := appFrom(c).Sessions().Current()
	if s.Status != session.Authenticated {
		return cli.Exit("not signed in", 1)
	}
	id := s.Identity
	v := whoamiView{
		ID:        id.SubjectID,
		Email:     id.Email,
		Name:      id.DisplayName,
		Phone:     id.Phone,
		Birthday:  id.Birthday,
		Roles:     append([]string{}, id.Roles...),
		ExpiresAt: id.ExpiresAt,
	}
	return printer(c).Print(v, func() *output.Table {
		t := output.NewTable("field", "value")
		t.AddRow("id", v.ID)
		t.AddRow("email", v.Email)
		t.AddRow("name", v.Name)
		t.AddRow("phone", v.Phone)
		t.AddRow("birthday", v.Birthday)
		t.AddRow("roles", output.Join(v.Roles))
		if !v.ExpiresAt.IsZero() {
			t.AddRow("expires", v.ExpiresAt.Local().Format(time.DateTime))
		}
		return t
	})
}

func displayName(id *token.Identity) string {
	switch {
	case id == nil:
		return "unknown"
	case id.DisplayName != "":
		return id.DisplayName
	case id.Email != "":
		return id.Email
	default:
		return id.SubjectID
	}
}
