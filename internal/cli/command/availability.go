package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/escala-app/escala/availability"
	"github.com/escala-app/escala/controller"
	"github.com/escala-app/escala/internal/cli/output"
)

func AvailabilityCommand() *cli.Command {
	return &cli.Command{
		Name:    "availability",
		Aliases: []string{"avail"},
		Usage:   "Show and change availability",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the dates leaders opened and your picks",
				Action: gated("/availability", availabilityShow),
			},
			{
				Name:      "pick",
				Usage:     "Toggle dates you are available on and save",
				ArgsUsage: "DATE...",
				Action:    gated("/availability", availabilityPick),
			},
			{
				Name:      "offer",
				Usage:     "Open dates for one of your ministries (leader)",
				ArgsUsage: "DATE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "ministry",
						Aliases: []string{"m"},
						Usage:   "Ministry id or name, defaults to the first you lead",
					},
				},
				Action: gated("/availability/offer", availabilityOffer),
			},
		},
	}
}

type dayView struct {
	Date     string `json:"date" yaml:"date"`
	Selected bool   `json:"selected" yaml:"selected"`
}

func printCalendar(c *cli.Context, ua *controller.UserAvailability) error {
	offered := ua.Offered()
	selected := ua.Selected()
	views := make([]dayView, len(offered))
	for i, d := range offered {
		views[i] = dayView{Date: d.String(), Selected: availability.Contains(selected, d)}
	}
	return printer(c).Print(views, func() *output.Table {
		t := output.NewTable("date", "available")
		for _, v := range views {
			mark := ""
			if v.Selected {
				mark = "yes"
			}
			t.AddRow(v.Date, mark)
		}
		return t
	})
}

func availabilityShow(c *cli.Context) error {
	ua := appFrom(c).UserAvailability()
	dropped, err := ua.Load(ctxFrom(c))
	if err != nil {
		return err
	}
	if len(dropped) > 0 {
		fmt.Fprintf(c.App.ErrWriter, "dropped %s no longer offered\n", output.Count(len(dropped), "date"))
	}
	return printCalendar(c, ua)
}

func availabilityPick(c *cli.Context) error {
	if _, err := argument(c, 0, "DATE"); err != nil {
		return err
	}
	ua := appFrom(c).UserAvailability()
	ctx := ctxFrom(c)
	if _, err := ua.Load(ctx); err != nil {
		return err
	}
	for _, d := range c.Args().Slice() {
		if _, err := ua.Toggle(d); err != nil {
			return err
		}
	}
	if err := ua.Save(ctx); err != nil {
		return err
	}
	return printCalendar(c, ua)
}

func availabilityOffer(c *cli.Context) error {
	if _, err := argument(c, 0, "DATE"); err != nil {
		return err
	}
	la := appFrom(c).LeaderAvailability()
	ctx := ctxFrom(c)
	ms, err := la.Load(ctx)
	if err != nil {
		return err
	}

	if name := c.String("ministry"); name != "" {
		id, convErr := strconv.Atoi(name)
		if convErr != nil {
			for _, m := range ms {
				if m.Name == name {
					id = m.ID
				}
			}
		}
		if err := la.SelectMinistry(id); err != nil {
			return err
		}
	}

	for _, d := range c.Args().Slice() {
		if _, err := la.Toggle(d); err != nil {
			return err
		}
	}
	n := len(la.Selected())
	ministry := la.MinistryID()
	if err := la.Save(ctx); err != nil {
		return err
	}
	return printer(c).Message("Opened %s for ministry %d", output.Count(n, "date"), ministry)
}
