// Package main is the splatmesh command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/splatmesh/splatmesh/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := cli.NewApp(os.Stdout, os.Stderr)
	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		cli.Errorf(os.Stderr, "%v", err)
		os.Exit(cli.ExitCode(err))
	}
}
