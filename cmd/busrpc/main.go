// Command busrpc serves a demo text service over a message bus and calls
// procedures from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "busrpc",
		Usage: "remote procedure calls over NATS or AMQP",
		Flags: globalFlags,
		Commands: []*cli.Command{
			serveCommand,
			callCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
