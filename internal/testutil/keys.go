package testutil

import (
	"fmt"
	"sync"
)

// SequentialKeys generates predictable idempotency keys: prefix-1, prefix-2, ...
//
// Implements store.KeyGenerator. Golden output stays byte-identical across
// runs because keys no longer embed the current time.
//
// Thread-safety: SequentialKeys is safe for concurrent use via internal mutex.
type SequentialKeys struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialKeys creates a generator. An empty prefix defaults to "key".
func NewSequentialKeys(prefix string) *SequentialKeys {
	if prefix == "" {
		prefix = "key"
	}
	return &SequentialKeys{prefix: prefix}
}

// Generate returns the next key.
func (g *SequentialKeys) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
