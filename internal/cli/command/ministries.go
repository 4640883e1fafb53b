package command

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/escala-app/escala/api"
	"github.com/escala-app/escala/controller"
	"github.com/escala-app/escala/internal/cli/output"
)

func MinistriesCommand() *cli.Command {
	return &cli.Command{
		Name:    "ministries",
		Aliases: []string{"ministry"},
		Usage:   "Manage ministries and their leaders (Admin)",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List ministries",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "leaders", Aliases: []string{"l"}, Usage: "Include leaders"},
				},
				Action: gated("/ministries", ministriesList),
			},
			{
				Name:      "create",
				Usage:     "Create a ministry",
				ArgsUsage: "NAME",
				Action:    gated("/ministries", ministriesCreate),
			},
			{
				Name:      "leaders",
				Usage:     "List the leaders of a ministry",
				ArgsUsage: "MINISTRY",
				Action:    gated("/ministries", ministriesLeaders),
			},
			{
				Name:      "assign",
				Usage:     "Make a user leader of a ministry",
				ArgsUsage: "MINISTRY USER",
				Action:    gated("/ministries", leaderAction(true)),
			},
			{
				Name:      "unassign",
				Usage:     "Remove a leader from a ministry",
				ArgsUsage: "MINISTRY USER",
				Action:    gated("/ministries", leaderAction(false)),
			},
		},
	}
}

type ministryView struct {
	ID      int          `json:"id" yaml:"id"`
	Name    string       `json:"name" yaml:"name"`
	Leaders []api.Leader `json:"leaders,omitempty" yaml:"leaders,omitempty"`
}

func ministriesList(c *cli.Context) error {
	admin := appFrom(c).Admin()
	ctx := ctxFrom(c)
	ms, err := admin.Ministries(ctx)
	if err != nil {
		return err
	}

	var leaders map[int][]api.Leader
	if c.Bool("leaders") {
		if leaders, err = admin.LeadersByMinistry(ctx, ms); err != nil {
			return err
		}
	}

	views := make([]ministryView, len(ms))
	for i, m := range ms {
		views[i] = ministryView{ID: m.ID, Name: m.Name, Leaders: leaders[m.ID]}
	}
	return printer(c).Print(views, func() *output.Table {
		fields := []string{"id", "name"}
		if leaders != nil {
			fields = append(fields, "leaders")
		}
		t := output.NewTable(fields...)
		for _, v := range views {
			row := []string{strconv.Itoa(v.ID), v.Name}
			if leaders != nil {
				row = append(row, output.Join(leaderNames(v.Leaders)))
			}
			t.AddRow(row...)
		}
		return t
	})
}

func ministriesCreate(c *cli.Context) error {
	name, err := argument(c, 0, "NAME")
	if err != nil {
		return err
	}
	if err := appFrom(c).Admin().CreateMinistry(ctxFrom(c), name); err != nil {
		return err
	}
	return printer(c).Message("Created %s", name)
}

func ministriesLeaders(c *cli.Context) error {
	admin := appFrom(c).Admin()
	ctx := ctxFrom(c)
	m, err := findMinistry(c, admin)
	if err != nil {
		return err
	}
	leaders, err := admin.Leaders(ctx, m.ID)
	if err != nil {
		return err
	}
	return printer(c).Print(leaders, func() *output.Table {
		t := output.NewTable("id", "userName", "email")
		for _, l := range leaders {
			t.AddRow(l.ID, l.UserName, l.Email)
		}
		return t
	})
}

func leaderAction(assign bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		admin := appFrom(c).Admin()
		ctx := ctxFrom(c)
		m, err := findMinistry(c, admin)
		if err != nil {
			return err
		}
		query, err := argument(c, 1, "USER")
		if err != nil {
			return err
		}
		u, err := admin.FindUser(ctx, query)
		if err != nil {
			return err
		}

		if assign {
			if err := admin.AssignLeader(ctx, u.ID, m.ID); err != nil {
				return err
			}
			return printer(c).Message("%s now leads %s", u.UserName, m.Name)
		}
		if err := admin.RemoveLeader(ctx, u.ID, m.ID); err != nil {
			return err
		}
		return printer(c).Message("%s no longer leads %s", u.UserName, m.Name)
	}
}

// findMinistry resolves the first argument as a ministry id or name.
func findMinistry(c *cli.Context, admin *controller.Admin) (api.Ministry, error) {
	arg, err := argument(c, 0, "MINISTRY")
	if err != nil {
		return api.Ministry{}, err
	}
	if id, err := strconv.Atoi(arg); err == nil {
		return api.Ministry{ID: id, Name: arg}, nil
	}
	return admin.FindMinistry(ctxFrom(c), arg)
}

func leaderNames(leaders []api.Leader) []string {
	names := make([]string, len(leaders))
	for i, l := range leaders {
		names[i] = l.UserName
	}
	return names
}
