package command

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/escala-app/escala/api"
	"github.com/escala-app/escala/internal/cli/output"
)

func UsersCommand() *cli.Command {
	return &cli.Command{
		Name:    "users",
		Aliases: []string{"user"},
		Usage:   "Manage users (Admin)",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List users",
				Action: gated("/users", usersList),
			},
			{
				Name:      "roles",
				Usage:     "Replace the roles of a user",
				ArgsUsage: "USER ROLE...",
				Action:    gated("/users", usersRoles),
			},
			{
				Name:      "ministries",
				Usage:     "Replace the ministries of a user, e.g. Música:Vocal,Teclado",
				ArgsUsage: "USER MINISTRY[:FUNCTION,...]...",
				Action:    gated("/users", usersMinistries),
			},
		},
	}
}

func usersList(c *cli.Context) error {
	users, err := appFrom(c).Admin().Users(ctxFrom(c))
	if err != nil {
		return err
	}
	return printer(c).Print(users, func() *output.Table {
		t := output.NewTable("id", "userName", "email", "roles", "ministries")
		for _, u := range users {
			var ms []string
			for _, m := range u.Ministries {
				ms = append(ms, m.Ministry)
			}
			t.AddRow(u.ID, u.UserName, u.Email, output.Join(u.Roles), output.Join(ms))
		}
		return t
	})
}

func usersRoles(c *cli.Context) error {
	query, err := argument(c, 0, "USER")
	if err != nil {
		return err
	}
	admin := appFrom(c).Admin()
	ctx := ctxFrom(c)
	u, err := admin.FindUser(ctx, query)
	if err != nil {
		return err
	}
	roles := c.Args().Tail()
	if err := admin.SetRoles(ctx, u.ID, roles); err != nil {
		return err
	}
	return printer(c).Message("%s now has %s", u.UserName, output.Count(len(roles), "role"))
}

func usersMinistries(c *cli.Context) error {
	query, err := argument(c, 0, "USER")
	if err != nil {
		return err
	}
	admin := appFrom(c).Admin()
	ctx := ctxFrom(c)
	u, err := admin.FindUser(ctx, query)
	if err != nil {
		return err
	}

	var assignments []api.MinistryAssignment
	for _, arg := range c.Args().Tail() {
		assignments = append(assignments, parseAssignment(arg))
	}
	if err := admin.SetMinistries(ctx, u.ID, assignments); err != nil {
		return err
	}
	return printer(c).Message("%s now serves in %s", u.UserName, output.Count(len(assignments), "ministry"))
}

// parseAssignment reads "Ministry:Function,Function".
func parseAssignment(arg string) api.MinistryAssignment {
	name, funcs, _ := strings.Cut(arg, ":")
	a := api.MinistryAssignment{Ministry: strings.TrimSpace(name), Functions: []string{}}
	for _, f := range strings.Split(funcs, ",") {
		if f = strings.TrimSpace(f); f != "" {
			a.Functions = append(a.Functions, f)
		}
	}
	return a
}
