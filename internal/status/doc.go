// Package status holds the observable outputs of the sync core.
//
// The Board is written by the network monitor (online, pending count) and
// by the synchronizer (draining, last result, last drain) and read by
// presenters through Snapshot. Presenters never write.
//
//	Monitor ──SetOnline/SetPendingCount──┐
//	                                     ├──→ Board ──Snapshot()──→ presenter
//	Synchronizer ──SetDraining/...───────┘
//
// The zero Board is ready to use.
package status
