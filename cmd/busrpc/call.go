package main

import (
	"fmt"
	"os"

	rpc "github.com/RidgeA/bus-rpc"
	"github.com/urfave/cli/v2"
)

var notifyFlag = &cli.BoolFlag{
	Name:  "notify",
	Usage: "publish without waiting for a result",
}

var callCommand = &cli.Command{
	Name:      "call",
	Usage:     "call a procedure and print its result",
	ArgsUsage: "<service> <method> [payload]",
	Flags:     []cli.Flag{notifyFlag},
	Action:    call,
}

func call(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return cli.Exit("service and method are required", 2)
	}
	service, method, payload := ctx.Args().Get(0), ctx.Args().Get(1), ctx.Args().Get(2)

	logger, err := newLogger(ctx)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	bus, err := openBus(ctx)
	if err != nil {
		return err
	}
	defer bus.Close()

	client, err := rpc.NewClient(bus, rpc.SetConfig(cfg), rpc.SetLogger(logger))
	if err != nil {
		return err
	}
	defer client.Shutdown()

	if ctx.Bool(notifyFlag.Name) {
		return client.Notify(service, method, []byte(payload))
	}

	res, err := client.Call(ctx.Context, service, method, []byte(payload))
	if err != nil {
		return fmt.Errorf("call %s: %w", client.Subject(service, method), err)
	}

	_, err = fmt.Fprintln(os.Stdout, string(res))
	return err
}
