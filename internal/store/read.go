package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const entryColumns = `id, command_name, args, created_at, status, idempotency_key,
	fingerprint, attempts, last_error, updated_at`

// ListPending returns a snapshot of the pending entries, ordered by id.
// Syncing and failed entries are never included.
//
// Returns an empty slice (not nil) if nothing is pending.
func (s *Store) ListPending(ctx context.Context) ([]Entry, error) {
	return s.List(ctx, Filter{Status: StatusPending})
}

// CountPending returns the number of pending entries without reading their
// payloads.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_entries WHERE status = ?`,
		string(StatusPending),
	).Scan(&n)
	if err != nil {
		return 0, unavailable("count pending", err)
	}
	return n, nil
}

// Get retrieves a single entry by id.
// Returns ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, id int64) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, notFound("get", id)
	}
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// List returns entries matching the filter, ordered by id.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + entryColumns + ` FROM queue_entries`)
	if f.Status != "" {
		query.WriteString(` WHERE status = ?`)
		args = append(args, string(f.Status))
	}
	query.WriteString(` ORDER BY id ASC`)
	if f.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, unavailable("list entries", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate entries", err)
	}
	return entries, nil
}

// Counts returns the number of entries in each status.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM queue_entries GROUP BY status`)
	if err != nil {
		return Counts{}, unavailable("count entries", err)
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, unavailable("scan counts", err)
		}
		switch Status(status) {
		case StatusPending:
			c.Pending = n
		case StatusSyncing:
			c.Syncing = n
		case StatusFailed:
			c.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return Counts{}, unavailable("iterate counts", err)
	}
	return c, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (Entry, error) {
	var (
		e         Entry
		argsJSON  string
		status    string
		createdAt int64
		updatedAt int64
	)
	err := r.Scan(
		&e.ID,
		&e.CommandName,
		&argsJSON,
		&createdAt,
		&status,
		&e.IdempotencyKey,
		&e.Fingerprint,
		&e.Attempts,
		&e.LastError,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, unavailable("scan entry", err)
	}

	args, err := unmarshalArgs(argsJSON)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %d: %w", e.ID, err)
	}
	e.Args = args
	e.Status = Status(status)
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return e, nil
}
