// Command escala is the terminal client for the ministry scheduling service.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"google.golang.org/grpc/codes"

	"github.com/escala-app/escala/errors"
	"github.com/escala-app/escala/internal/cli/command"
)

func main() {
	app := command.App()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", errors.PublicMessage(err, err.Error()))
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes "sign in first" and "not allowed" from other
// failures so scripts can react.
func exitCode(err error) int {
	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		return exit.ExitCode()
	}
	switch errors.Code(err) {
	case codes.Unauthenticated:
		return 3
	case codes.PermissionDenied:
		return 4
	default:
		return 1
	}
}
