package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"peerlab-bird/pkg/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := newOptions(os.LookupEnv)
	cmd := newRootCmdWithOptions(version.Build, o)
	if err := cmd.ExecuteContext(ctx); err != nil {
		o.logger().Error("peerlab-bird failed", "err", err)
		stop()
		os.Exit(1)
	}
}
