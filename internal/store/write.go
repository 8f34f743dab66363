package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/outbox/internal/payload"
)

// Enqueue appends a pending entry and returns its id.
//
// The row is committed before Enqueue returns; once it returns nil the
// command survives a crash. The args are stored verbatim (see payload.Marshal)
// and handed back unchanged to the invoker.
func (s *Store) Enqueue(ctx context.Context, commandName string, args payload.Value) (int64, error) {
	if strings.TrimSpace(commandName) == "" {
		return 0, fmt.Errorf("enqueue: %w", ErrInvalidCommand)
	}
	if args == nil {
		args = payload.Null{}
	}

	argsJSON, err := marshalArgs(args)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	fingerprint, err := payload.Fingerprint(commandName, args)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}

	now := millis(s.now())
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_entries
		(command_name, args, created_at, status, idempotency_key, fingerprint, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		commandName,
		argsJSON,
		now,
		string(StatusPending),
		s.keys.Generate(),
		fingerprint,
		now,
	)
	if err != nil {
		return 0, unavailable("enqueue", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, unavailable("enqueue: last insert id", err)
	}
	return id, nil
}

// MarkSyncing moves an entry to syncing and counts the attempt.
// Calling it again on a syncing entry changes nothing.
// Returns ErrNotFound if the id does not exist.
func (s *Store) MarkSyncing(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = ?,
		    attempts = attempts + CASE WHEN status = ? THEN 0 ELSE 1 END,
		    updated_at = ?
		WHERE id = ?
	`, string(StatusSyncing), string(StatusSyncing), millis(s.now()), id)
	return s.checkUpdate("mark syncing", id, result, err)
}

// MarkFailed moves an entry to failed and records the reason.
// Returns ErrNotFound if the id does not exist.
func (s *Store) MarkFailed(ctx context.Context, id int64, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, string(StatusFailed), reason, millis(s.now()), id)
	return s.checkUpdate("mark failed", id, result, err)
}

// Remove deletes an entry. Only a confirmed success removes an entry.
// Returns ErrNotFound if the id does not exist.
func (s *Store) Remove(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE id = ?`, id)
	return s.checkUpdate("remove", id, result, err)
}

// Requeue returns a failed entry to pending so that the next drain retries it.
//
// Reports whether the entry changed. A pending entry is left as is, and so is
// a syncing entry: it belongs to the drain in flight (or to startup
// reconciliation). Returns ErrNotFound if the id does not exist.
func (s *Store) Requeue(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = ?, last_error = '', updated_at = ?
		WHERE id = ? AND status = ?
	`, string(StatusPending), millis(s.now()), id, string(StatusFailed))
	if err != nil {
		return false, unavailable("requeue", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, unavailable("requeue: rows affected", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return false, fmt.Errorf("requeue: %w", err)
	}
	return false, nil
}

// ResetSyncing returns every syncing entry to pending and reports how many
// were reset.
//
// A syncing entry at startup means the process stopped before recording the
// outcome of a delivery. Delivering it again is the at-least-once choice;
// the server deduplicates on the idempotency key.
func (s *Store) ResetSyncing(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = ?, updated_at = ?
		WHERE status = ?
	`, string(StatusPending), millis(s.now()), string(StatusSyncing))
	if err != nil {
		return 0, unavailable("reset syncing", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, unavailable("reset syncing: rows affected", err)
	}
	return n, nil
}

func (s *Store) checkUpdate(op string, id int64, result sql.Result, err error) error {
	if err != nil {
		return unavailable(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return unavailable(op+": rows affected", err)
	}
	if n == 0 {
		return notFound(op, id)
	}
	return nil
}
