package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/outbox/internal/store"
)

// RequeueResult is the output of the requeue command.
type RequeueResult struct {
	ID       int64  `json:"id"`
	Requeued bool   `json:"requeued"`
	Status   string `json:"status"`
}

// NewRequeueCommand creates the requeue command.
func NewRequeueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requeue <id>",
		Short: "Return a failed entry to pending",
		Long: `Return a failed entry to pending so the next sync retries it.

Failed entries are never retried automatically. Entries that are pending or
syncing are left unchanged.

Example:
  outbox requeue 42`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return requeueEntry(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func requeueEntry(opts *RootOptions, rawID string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return out.Fail(ExitCommandError, CodeInvalidArgs, fmt.Sprintf("invalid entry id %q", rawID), err)
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

	ctx := cmd.Context()
	changed, err := st.Requeue(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return out.Fail(ExitCommandError, CodeNotFound, fmt.Sprintf("entry %d not found", id), err)
		}
		return out.Fail(ExitCommandError, CodeStorage, "failed to requeue", err)
	}
	entry, err := st.Get(ctx, id)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "failed to read entry", err)
	}

	result := RequeueResult{ID: id, Requeued: changed, Status: string(entry.Status)}
	return out.Emit(result, func(w io.Writer) {
		if changed {
			fmt.Fprintf(w, "Entry %d requeued\n", id)
		} else {
			fmt.Fprintf(w, "Entry %d unchanged (status %s)\n", id, entry.Status)
		}
	})
}
