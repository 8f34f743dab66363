package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/outbox/internal/engine"
	"github.com/roach88/outbox/internal/remote"
)

// SyncResult is the output of the sync command.
type SyncResult struct {
	Server string        `json:"server"`
	Reset  int64         `json:"reset"`
	Report engine.Report `json:"report"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Drain the queue once",
		Long: `Deliver every pending entry once, in enqueue order, and exit.

Entries left syncing by an interrupted run are returned to pending first.
When the server does not answer its health check nothing is attempted.

Exit codes:
  0 - All attempted entries were delivered
  1 - Server unreachable, or one or more entries failed
  2 - Command error (config, database)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return syncOnce(rootOpts, cmd)
		},
	}
	return cmd
}

func syncOnce(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	client, err := remote.NewClient(cfg.ServerURL)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "invalid server_url", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "failed to open database", err)
	}
	defer closeStore(st, logger)

	ctx := cmd.Context()

	// Startup reconciliation: nothing else is draining this queue.
	reset, err := st.ResetSyncing(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "failed to reconcile syncing entries", err)
	}
	if reset > 0 {
		logger.Info("returned interrupted entries to pending", "count", reset)
	}

	if err := client.Probe(ctx); err != nil {
		return out.Fail(ExitFailure, CodeOffline,
			fmt.Sprintf("server %s unreachable, nothing attempted", client.BaseURL()), err)
	}

	syncer := engine.New(st, client,
		engine.WithLogger(logger),
		engine.WithInvokeTimeout(cfg.InvokeTimeout),
		engine.WithResultWindow(cfg.ResultWindow),
	)
	report, err := syncer.Drain(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "drain aborted", err)
	}

	result := SyncResult{Server: client.BaseURL(), Reset: reset, Report: report}
	if opts.Format == "json" {
		return outputSyncJSON(cmd, result)
	}
	return outputSyncText(cmd, result)
}

func outputSyncJSON(cmd *cobra.Command, result SyncResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Report.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    CodeDrainFailures,
			Message: fmt.Sprintf("%d entr(ies) failed", result.Report.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}
	return syncExit(result.Report)
}

func outputSyncText(cmd *cobra.Command, result SyncResult) error {
	w := cmd.OutOrStdout()
	writeReport(w, result.Report)
	return syncExit(result.Report)
}

func writeReport(w io.Writer, r engine.Report) {
	if r.Attempted == 0 {
		fmt.Fprintln(w, "Nothing to sync.")
		return
	}
	fmt.Fprintf(w, "Sync Summary: %d attempted, %d succeeded, %d failed", r.Attempted, r.Succeeded, r.Failed)
	if r.Stalled > 0 {
		fmt.Fprintf(w, " (%d stalled)", r.Stalled)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Pending: %d\n", r.Pending)
}

// syncExit maps failed entries to exit code 1.
func syncExit(r engine.Report) error {
	if r.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d entr(ies) failed; see 'outbox list --status failed'", r.Failed))
	}
	return nil
}
