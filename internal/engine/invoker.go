package engine

import (
	"context"

	"github.com/roach88/outbox/internal/payload"
)

// Invoker performs one remote operation.
//
// Invoke returns an error when the call failed. A Result whose Success is
// explicitly false counts as a failure too. Implementations should honor ctx
// cancellation; one that does not is abandoned at the invoke timeout.
type Invoker interface {
	Invoke(ctx context.Context, commandName string, args payload.Value) (Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, commandName string, args payload.Value) (Result, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, commandName string, args payload.Value) (Result, error) {
	return f(ctx, commandName, args)
}

// Result is what an Invoker returns for a settled call.
type Result struct {
	// Success is the explicit success indicator, nil when the remote did
	// not send one.
	Success *bool

	// Body is the decoded response, if any.
	Body payload.Value
}

// Succeeded reports whether the result counts as a success: no explicit
// indicator, or an indicator that is not false.
func (r Result) Succeeded() bool {
	return r.Success == nil || *r.Success
}

type idempotencyKeyCtx struct{}

// WithIdempotencyKey returns a context carrying the entry's idempotency key.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKey returns the key attached by WithIdempotencyKey, or "".
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}
