package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/worldnews/internal/app"
	"github.com/deusflow/worldnews/internal/config"
	"github.com/deusflow/worldnews/internal/digest"
	"github.com/deusflow/worldnews/internal/logger"
	"github.com/deusflow/worldnews/internal/metrics"
)

var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect, rank, cluster, archive and deliver today's digest",
	RunE:  runDigest,
}

func init() {
	RunCmd.Flags().Bool("skip-delivery", false, "Build and archive the digest without sending it")
	RunCmd.Flags().BoolP("verbose", "v", false, "Log at debug level")
}

func runDigest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	skip, _ := cmd.Flags().GetBool("skip-delivery")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := setupLogger(cfg)

	if cfg.Monitoring.Enabled {
		srv := startMonitoringServer(cfg.Monitoring.Port, metrics.Global, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	a, err := app.Build(ctx, cfg, log, metrics.Global)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.Run(ctx, app.RunOptions{SkipDelivery: skip})
	if d != nil {
		fmt.Fprintln(os.Stdout, digest.FormatText(d))
	}
	return err
}

func setupLogger(cfg *config.Config) *slog.Logger {
	return logger.Setup(cfg.LogLevel)
}

func startMonitoringServer(port string, m *metrics.Metrics, log *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("starting monitoring server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("monitoring server error", "error", err)
		}
	}()
	return srv
}
