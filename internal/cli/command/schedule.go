package command

import (
	"github.com/urfave/cli/v2"

	"github.com/escala-app/escala/availability"
	"github.com/escala-app/escala/internal/cli/output"
)

func ScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "schedule",
		Usage:     "List the days you serve, or who serves on DATE",
		ArgsUsage: "[DATE]",
		Action:    gated("/schedule", schedule),
	}
}

func schedule(c *cli.Context) error {
	sched := appFrom(c).Schedule()
	ctx := ctxFrom(c)

	if c.NArg() == 0 {
		days, err := sched.Days(ctx)
		if err != nil {
			return err
		}
		dates := availability.Strings(days)
		return printer(c).Print(dates, func() *output.Table {
			t := output.NewTable("date")
			for _, d := range dates {
				t.AddRow(d)
			}
			return t
		})
	}

	assignments, err := sched.ForDate(ctx, c.Args().First())
	if err != nil {
		return err
	}
	return printer(c).Print(assignments, func() *output.Table {
		t := output.NewTable("ministry", "members")
		for _, a := range assignments {
			t.AddRow(a.Ministry, output.Join(a.Members))
		}
		return t
	})
}
