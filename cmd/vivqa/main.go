// Package main provides the vivqa command: training, evaluation and a
// synthetic demo of the ViVQA answer decoder.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.CheckErr(NewCLI().ExecuteContext(ctx))
}
