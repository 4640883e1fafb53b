// Package command defines the escala command line. Each command builds on
// the App from the root package: the session restored from storage, the
// role gate and the screen controllers.
package command

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/escala-app/escala"
	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/internal/cli/output"
	"github.com/escala-app/escala/logging"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const (
	appKey     = "app"
	printerKey = "printer"
)

// closeTimeout bounds how long pending events may delay exit.
const closeTimeout = 5 * time.Second

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "escala",
		Usage:                "Ministry scheduling from the terminal",
		Version:              fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			WhoamiCommand(),
			UsersCommand(),
			MinistriesCommand(),
			AvailabilityCommand(),
			ScheduleCommand(),
		},
		Before: setup,
		After:  teardown,
		// Exit codes are chosen by main.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Additional YAML config file",
			EnvVars: []string{"ESCALA_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "api",
			Usage:   "API base URL (overrides api.baseURL)",
			EnvVars: []string{"ESCALA_API"},
		},
		&cli.StringFlag{
			Name:  "storage",
			Usage: "Token storage: memory, sqlite, postgres or badger (overrides storage.driver)",
		},
		&cli.StringFlag{
			Name:  "storage-dsn",
			Usage: "Storage DSN for sqlite and postgres (overrides storage.dsn)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log to stderr",
		},
	}
}

// setup loads configuration, applies flag overrides and restores the
// session before any command runs.
func setup(c *cli.Context) error {
	if path := c.String("config"); path != "" {
		if err := escala.LoadConfigFile(path); err != nil {
			return errors.WrapPrefix(err, "loading "+path, 0)
		}
	}

	overrides := map[string]interface{}{}
	for flag, key := range map[string]string{
		"api":         "api.baseURL",
		"storage":     "storage.driver",
		"storage-dsn": "storage.dsn",
	} {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	if c.Bool("verbose") {
		overrides["logging.mode"] = "dev"
	}
	if len(overrides) > 0 {
		escala.LoadConfigDefaults(overrides)
	}
	if warnings := escala.ValidateConfig(); warnings != "" {
		fmt.Fprint(c.App.ErrWriter, warnings)
	}

	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	c.App.Metadata = map[string]interface{}{
		printerKey: &output.Printer{Format: format, Out: c.App.Writer},
	}

	app, err := escala.New(escala.WithContext(c.Context))
	if err != nil {
		return err
	}
	app.Start(app.Context())
	c.App.Metadata[appKey] = app
	return nil
}

func teardown(c *cli.Context) error {
	app, ok := c.App.Metadata[appKey].(*escala.App)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return app.Close(ctx)
}

func appFrom(c *cli.Context) *escala.App {
	return c.App.Metadata[appKey].(*escala.App)
}

func printer(c *cli.Context) *output.Printer {
	return c.App.Metadata[printerKey].(*output.Printer)
}

// ctxFrom is the command's context carrying the App's logger.
func ctxFrom(c *cli.Context) context.Context {
	return logging.With(c.Context, logging.FromContext(appFrom(c).Context()))
}

// gated runs action only if the role gate allows route for the current
// session.
func gated(route string, action cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		if err := appFrom(c).Check(route); err != nil {
			return err
		}
		return action(c)
	}
}

// readLine prompts on ErrWriter and reads one line from the app's Reader.
func readLine(c *cli.Context, prompt string) (string, error) {
	fmt.Fprint(c.App.ErrWriter, prompt)
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.WrapPrefix(err, "reading "+strings.TrimSpace(strings.TrimSuffix(prompt, ":")), 0)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// argument returns the n-th positional argument or a usage error.
func argument(c *cli.Context, n int, name string) (string, error) {
	if c.NArg() <= n {
		return "", cli.Exit("missing "+name+"\nusage: "+c.Command.HelpName+" "+c.Command.ArgsUsage, 2)
	}
	return c.Args().Get(n), nil
}
