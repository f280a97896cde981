package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/worldnews/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "worldnews",
	Short:         "Collect world news and reduce it to a short daily digest",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Init()
	rootCmd.AddCommand(RunCmd, DigestCmd, StatsCmd, SourcesCmd, RecentCmd, ExportCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
