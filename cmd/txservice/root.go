package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/config"
)

type rootOptions struct {
	configPath string
	jsonLogs   bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "txservice",
		Short:         "Safe transaction service setup, beat and XDC compatibility tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the config file (default ./config/config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "emit production JSON logs")

	cmd.AddCommand(
		newSetupCommand(opts),
		newPriceCommand(opts),
		newBeatCommand(opts),
		newProxyCommand(opts),
		newStatusCommand(opts),
	)
	return cmd
}

// load reads the config and builds the logger shared by every command
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}

	var logger *zap.Logger
	if o.jsonLogs || cfg.App.JSONLogs {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.Named(cfg.App.Name), nil
}

// serveMetrics exposes the prometheus registry until ctx is done
func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serveHTTP(ctx, &http.Server{Addr: addr, Handler: mux}, logger.Named("metrics"))
}

func serveHTTP(ctx context.Context, server *http.Server, logger *zap.Logger) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down http server", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("Listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
}
