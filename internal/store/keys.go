package store

import "github.com/google/uuid"

// KeyGenerator produces idempotency keys for new entries.
// Implemented by UUIDv7Generator (production) and testutil.SequentialKeys (tests).
type KeyGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 idempotency keys.
//
// The key travels with every delivery attempt of an entry, so a server that
// remembers keys can drop the duplicate produced by a retry after a lost
// response.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
