package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/outbox/internal/config"
	"github.com/roach88/outbox/internal/engine"
	"github.com/roach88/outbox/internal/metrics"
	"github.com/roach88/outbox/internal/netstate"
	"github.com/roach88/outbox/internal/remote"
	"github.com/roach88/outbox/internal/status"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the queue in sync",
		Long: `Run the sync daemon.

Entries left syncing by an interrupted run are returned to pending, then
the server is probed periodically. Every transition to online starts a
drain, and a periodic reconciliation picks up entries enqueued while the
connection stayed up. With metrics_addr set, Prometheus metrics are served
on /metrics.

Example:
  outbox run --db ./outbox.db
  outbox run --config ./outbox.toml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(rootOpts, cmd)
		},
	}
	return cmd
}

func runDaemon(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	// Configure logging
	logger := newLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	client, err := remote.NewClient(cfg.ServerURL)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid server_url", err)
	}

	logger.Info("opening database", "path", cfg.Database)
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	// Startup reconciliation must finish before the first drain.
	reset, err := st.ResetSyncing(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to reconcile syncing entries", err)
	}
	if reset > 0 {
		logger.Info("returned interrupted entries to pending", "count", reset)
	}

	board := &status.Board{}
	syncOpts := []engine.Option{
		engine.WithBoard(board),
		engine.WithLogger(logger),
		engine.WithInvokeTimeout(cfg.InvokeTimeout),
		engine.WithResultWindow(cfg.ResultWindow),
	}
	monitorOpts := []netstate.Option{
		netstate.WithProber(client),
		netstate.WithProbeInterval(cfg.ProbeInterval),
		netstate.WithReconcileInterval(cfg.ReconcileInterval),
		netstate.WithBoard(board),
		netstate.WithLogger(logger),
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		recorder := metrics.NewRecorder()
		reg := prometheus.NewRegistry()
		if err := recorder.Register(reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		syncOpts = append(syncOpts, engine.WithRecorder(recorder))
		monitorOpts = append(monitorOpts, netstate.WithRecorder(recorder))
		metricsSrv = startMetricsServer(cfg, reg, logger)
	}

	syncer := engine.New(st, client, syncOpts...)
	monitor := netstate.NewMonitor(st, monitorOpts...)
	monitor.OnTransitionToOnline(func() {
		syncer.Trigger(ctx)
	})

	logger.Info("outbox starting", "db", cfg.Database, "server", client.BaseURL())
	fmt.Fprintln(cmd.OutOrStdout(), "Outbox running. Syncing with", client.BaseURL())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	runErr := monitor.Run(ctx)

	// Let an in-flight drain observe the cancellation and return.
	syncer.Wait()
	if metricsSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", "error", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "monitor error", runErr)
	}

	snap := board.Snapshot()
	logger.Info("outbox stopped gracefully", "pending", snap.PendingCount)
	return nil
}

func startMetricsServer(cfg config.Config, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	return srv
}
