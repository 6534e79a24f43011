// Package version implements the version subcommand. The Version var
// is meant to be stamped at build time via -ldflags.
package version

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// Version of the tlserve binary; "dev" for unstamped builds.
var Version = "dev"

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the tlserve version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("tlserve %s\n", Version)
			return nil
		},
	}
}
