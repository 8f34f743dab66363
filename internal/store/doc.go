// Package store provides the SQLite-backed durable queue of outgoing commands.
//
// The store is the only authoritative state in the system. Each row is one
// command that has not yet been confirmed by the server:
//
//	pending ──MarkSyncing──> syncing ──Remove──> (deleted)
//	                            │
//	                            └──MarkFailed──> failed ──Requeue──> pending
//
// There is no "succeeded" status; a confirmed command is deleted. A failed
// entry stays failed until Requeue is called explicitly.
//
// # Ordering
//
// Ids come from an AUTOINCREMENT primary key, so they are unique for the
// lifetime of the database and strictly increasing in insertion order. Every
// listing is ORDER BY id ASC.
//
// # Crash recovery
//
// Status is stored rather than derived. A crash between MarkSyncing and
// Remove/MarkFailed leaves a row in "syncing"; ResetSyncing returns such rows
// to "pending" and must run before the first drain after startup.
//
// # Errors
//
// Every database failure is wrapped so that errors.Is(err,
// ErrStorageUnavailable) holds. Callers treat it as fatal to the operation
// at hand; the store never retries.
//
// # Database Configuration
//
//   - WAL mode: readers do not block the writer
//   - synchronous=FULL: an acknowledged Enqueue survives power loss
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - one open connection: SQLite has a single writer anyway
package store
