package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/outbox/internal/store"
)

// StatusResult is the output of the status command.
type StatusResult struct {
	Database string       `json:"database"`
	Counts   store.Counts `json:"counts"`
	Pending  int          `json:"pending"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show queue counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(rootOpts, cmd)
		},
	}
	return cmd
}

func showStatus(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "failed to open database", err)
	}
	defer st.Close()

	counts, err := st.Counts(cmd.Context())
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "failed to count entries", err)
	}

	result := StatusResult{Database: cfg.Database, Counts: counts, Pending: counts.Pending}
	return out.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "Queue: %s\n", result.Database)
		fmt.Fprintf(w, "  Pending: %d\n", counts.Pending)
		fmt.Fprintf(w, "  Syncing: %d\n", counts.Syncing)
		fmt.Fprintf(w, "  Failed:  %d\n", counts.Failed)
		fmt.Fprintf(w, "  Total:   %d\n", counts.Total())
	})
}
