// Package netstate tracks connectivity and asks for a sync when it returns.
//
// A Monitor keeps one online flag. Platform events (or the periodic probe
// in Run) call SetOnline; a false→true transition runs every callback
// registered with OnTransitionToOnline, exactly once per transition.
//
// Transition events can be missed: a flap too short to be reported, or a
// process that starts already online with entries left from a previous run.
// The reconciliation tick covers both. Every ReconcileInterval it re-reads
// the pending count, publishes it, and while online with pending entries it
// runs the callbacks again. The synchronizer's reentrancy guard discards
// those requests when a drain is already running.
package netstate
