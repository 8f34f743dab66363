// Package engine implements the synchronizer that drains the outbox.
//
// A Synchronizer owns one draining flag and moves through two states:
//
//	Idle ──trigger, pending > 0──→ Draining ──drain done──→ Idle
//	Idle ──trigger, pending == 0─→ Idle        (discarded)
//	Draining ──trigger───────────→ Draining    (discarded, nothing queued)
//
// A drain takes a snapshot of the pending entries and handles them one at a
// time in id order. Each entry is marked syncing, handed to the Invoker, then
// either removed (success) or marked failed (error, explicit non-success, or
// no answer within the invoke timeout). A failed entry never stops the drain.
//
// Per-entry failures are contained: they show up only as failed rows, in the
// Report and through the Recorder. Storage errors abort the drain and are
// returned to the caller of Drain.
//
// After a drain with at least one success the board's LastResult is set to
// "success" and cleared again after the result window. Partial and full
// success look the same.
//
// Delivery is at-least-once. The idempotency key of each entry travels on
// the invoke context (see IdempotencyKey) so transports can forward it for
// duplicate suppression on the server.
package engine
