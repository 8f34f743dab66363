package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/outbox/internal/catalog"
	"github.com/roach88/outbox/internal/payload"
	"github.com/roach88/outbox/internal/store"
)

// EnqueueOptions holds flags for the enqueue command.
type EnqueueOptions struct {
	*RootOptions
	Args string
}

// EnqueueResult is the output of the enqueue command.
type EnqueueResult struct {
	ID             int64  `json:"id"`
	Command        string `json:"command"`
	IdempotencyKey string `json:"idempotency_key"`
}

// NewEnqueueCommand creates the enqueue command.
func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnqueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enqueue <command>",
		Short: "Append a command to the queue",
		Long: `Append a command to the local queue.

The entry is durable once this command returns. When a catalog is
configured, the command name and args are validated against it first and
nothing is written on a violation.

Example:
  outbox enqueue recordSale --args '{"amount":1250,"currency":"EUR"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return enqueueCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "command arguments as JSON")

	return cmd
}

func enqueueCommand(opts *EnqueueOptions, commandName string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	args, err := payload.Parse([]byte(opts.Args))
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidArgs, "invalid --args JSON", err)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}

	if cfg.Catalog != "" {
		out.VerboseLog("validating against catalog %s", cfg.Catalog)
		cat, err := catalog.Load(cfg.Catalog)
		if err != nil {
			return out.Fail(ExitCommandError, CodeConfig, "failed to load catalog", err)
		}
		if err := cat.Validate(commandName, args); err != nil {
			msg := "args rejected by catalog"
			if errors.Is(err, catalog.ErrUnknownCommand) {
				msg = fmt.Sprintf("command %q is not in the catalog", commandName)
			}
			return out.Fail(ExitCommandError, CodeInvalidArgs, msg, err)
		}
	}

	st, err := openStore(cfg)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	id, err := st.Enqueue(ctx, commandName, args)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCommand) {
			return out.Fail(ExitCommandError, CodeInvalidArgs, "invalid command name", err)
		}
		return out.Fail(ExitCommandError, CodeStorage, "failed to enqueue", err)
	}
	entry, err := st.Get(ctx, id)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "failed to read entry", err)
	}

	result := EnqueueResult{
		ID:             entry.ID,
		Command:        entry.CommandName,
		IdempotencyKey: entry.IdempotencyKey,
	}
	return out.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "Enqueued %s as entry %d (key %s)\n", result.Command, result.ID, result.IdempotencyKey)
	})
}
