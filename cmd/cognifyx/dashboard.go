package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/cognifyx/internal/dashboard"
	"github.com/good-yellow-bee/cognifyx/internal/metrics"
	"github.com/good-yellow-bee/cognifyx/internal/storage"
)

var (
	dashboardAddr string
	dashboardLog  string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the alert log to the live dashboard",
	Long: `Serve the alert log over HTTP. The log is re-read whenever it changes;
clients can poll the JSON endpoints or subscribe to the event stream.

Endpoints:
  GET /api/v1/status
  GET /api/v1/alerts
  GET /api/v1/alerts/latest
  GET /api/v1/alerts/geojson
  GET /api/v1/alerts/stream
  GET /healthz`,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardAddr, "addr", "", "listen address (overrides config)")
	dashboardCmd.Flags().StringVar(&dashboardLog, "log", "", "alert log path (overrides config)")

	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if dashboardAddr != "" {
		cfg.Dashboard.Address = dashboardAddr
	}
	if dashboardLog != "" {
		cfg.Storage.Path = dashboardLog
	}

	logger := newLogger(os.Stderr)

	opts := dashboard.DefaultWatcherOptions()
	opts.PollInterval = cfg.Dashboard.PollInterval
	if cfg.Storage.Driver == storage.DriverSQLite {
		store, err := storage.Open(storage.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path})
		if err != nil {
			return fmt.Errorf("open alert store: %w", err)
		}
		defer store.Close()
		opts.Load = store.ReadAll
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := dashboard.NewWatcher(cfg.Storage.Path, opts, logger)
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Stop()

	server := dashboard.NewServer(dashboard.Config{
		Addr:      cfg.Dashboard.Address,
		RateLimit: cfg.Dashboard.RateLimit,
		Burst:     cfg.Dashboard.Burst,
		Heartbeat: cfg.Dashboard.Heartbeat,
		Verbose:   verbose,
	}, watcher, logger)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Address, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dashboard shutdown", "error", err)
	}
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}
