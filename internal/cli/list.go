package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/outbox/internal/payload"
	"github.com/roach88/outbox/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Status string
	Limit  int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued entries",
		Long: `List queue entries in enqueue order.

Examples:
  outbox list
  outbox list --status failed
  outbox list --format json --limit 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listEntries(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "only entries with this status (pending|syncing|failed)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")

	return cmd
}

func listEntries(opts *ListOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	filter := store.Filter{Limit: opts.Limit}
	if opts.Status != "" {
		s, err := store.ParseStatus(opts.Status)
		if err != nil {
			return out.Fail(ExitCommandError, CodeInvalidArgs, "invalid --status", err)
		}
		filter.Status = s
	}
	if opts.Limit < 0 {
		return out.Fail(ExitCommandError, CodeInvalidArgs, "--limit must be non-negative", nil)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.List(cmd.Context(), filter)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "failed to list entries", err)
	}

	return out.Emit(entries, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "No entries.")
			return
		}
		writeEntryTable(w, entries)
	})
}

func writeEntryTable(w io.Writer, entries []store.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMMAND\tSTATUS\tATTEMPTS\tCREATED\tARGS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			e.ID, e.CommandName, e.Status, e.Attempts,
			e.CreatedAt.Local().Format(time.DateTime), formatArgs(e.Args))
	}
	tw.Flush()

	for _, e := range entries {
		if e.LastError != "" {
			fmt.Fprintf(w, "  entry %d: %s\n", e.ID, e.LastError)
		}
	}
}

// formatArgs renders args compactly, truncated for table display.
func formatArgs(args payload.Value) string {
	data, err := payload.Marshal(args)
	if err != nil {
		return "?"
	}
	const maxLen = 60
	if len(data) > maxLen {
		return string(data[:maxLen-3]) + "..."
	}
	return string(data)
}
