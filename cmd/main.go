package main

import (
	"context"
	"fmt"
	"os"
	"penumbra-x/tlserve/cmd/serve"
	"penumbra-x/tlserve/cmd/version"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "tlserve",
		Usage: "TLS-terminating HTTP server with live certificate reload",
		Commands: []*cli.Command{
			serve.GetCommand(),
			version.GetCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("[!] Error: %s\n", err)
	}
}
