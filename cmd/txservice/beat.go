package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/monitor"
	"github.com/t77yq/txservice/internal/scheduler"
	"github.com/t77yq/txservice/internal/storage"
)

func newBeatCommand(opts *rootOptions) *cobra.Command {
	var (
		reloadInterval  time.Duration
		runRetention    time.Duration
		collectInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "beat",
		Short: "Publish the enabled periodic tasks to the task stream at their interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := validateBeatFlags(reloadInterval, runRetention, collectInterval); err != nil {
				return err
			}

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := storage.NewSQLiteStore(logger, cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			nc, js, err := connectNATS(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer nc.Close()

			beat := scheduler.NewBeat(js, store, store, logger)
			if err := beat.Start(ctx); err != nil {
				return err
			}
			defer beat.Stop()

			collector := monitor.NewCollector(js, scheduler.TaskStreamName, collectInterval, logger)
			if err := collector.Start(ctx); err != nil {
				return err
			}
			defer collector.Stop()

			serveMetrics(ctx, cfg.Metrics.ListenAddr, logger)

			reloadTicker := time.NewTicker(reloadInterval)
			cleanupTicker := time.NewTicker(24 * time.Hour)
			defer reloadTicker.Stop()
			defer cleanupTicker.Stop()

			for {
				select {
				case <-ctx.Done():
					logger.Info("Beat shutting down gracefully")
					return nil
				case <-reloadTicker.C:
					// picks up the tasks written by a later setup run
					if err := beat.Reload(ctx); err != nil {
						logger.Error("Failed to reload schedules", zap.Error(err))
					}
				case <-cleanupTicker.C:
					cutoff := time.Now().Add(-runRetention)
					if err := store.DeleteBefore(ctx, cutoff); err != nil {
						logger.Error("Failed to cleanup old task runs", zap.Error(err))
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&reloadInterval, "reload-interval", time.Minute, "how often the schedules are re-read from the database")
	cmd.Flags().DurationVar(&runRetention, "run-retention", 30*24*time.Hour, "how long dispatched task runs are kept")
	cmd.Flags().DurationVar(&collectInterval, "collect-interval", 15*time.Second, "how often the task stream and host usage are sampled")
	return cmd
}

// validateBeatFlags rejects durations time.NewTicker would panic on
func validateBeatFlags(reloadInterval, runRetention, collectInterval time.Duration) error {
	if reloadInterval <= 0 {
		return fmt.Errorf("--reload-interval must be positive, got %s", reloadInterval)
	}
	if runRetention <= 0 {
		return fmt.Errorf("--run-retention must be positive, got %s", runRetention)
	}
	if collectInterval <= 0 {
		return fmt.Errorf("--collect-interval must be positive, got %s", collectInterval)
	}
	return nil
}
