// Package harness runs conformance scenarios against the real sync core.
//
// A scenario wires a fresh SQLite queue store, a Synchronizer, a network
// Monitor and a scripted invoker, then plays a list of steps and checks
// assertions against the final state. Time comes from a fake clock, keys
// from a sequential generator, so every run of a scenario produces the same
// trace.
//
// # Scenario Format
//
//	name: record_sale_offline
//	description: "A failed sale stays failed and no success is shown"
//	start_online: true
//	entries:
//	  - command: recordSale
//	    args: { amount: 1000 }
//	outcomes:
//	  recordSale: [error]
//	steps:
//	  - do: offline
//	  - do: online
//	assertions:
//	  - type: entry_status
//	    id: 1
//	    status: failed
//	  - type: last_result
//	    value: ""
//
// Outcomes are consumed per command in order; the last one repeats, and a
// command without outcomes succeeds. The outcomes are:
//
//   - success: the call settles without error
//   - error: the call returns an error
//   - reject: the call answers success=false
//   - stall: the call never answers; the harness advances the fake clock by
//     the invoke timeout so the synchronizer gives up on it
//   - crash: the process dies mid-invoke, leaving the entry syncing until a
//     restart step
//
// # Steps
//
//   - enqueue: append an entry (command, args)
//   - offline, online: connectivity events; online triggers a sync
//   - drain: run one drain synchronously
//   - trigger: request an asynchronous drain and wait for it
//   - tick: run the monitor's reconciliation tick
//   - restart: reopen the store and reconcile syncing entries
//   - requeue: return a failed entry to pending (id)
//   - advance: move the fake clock forward (duration)
//
// # Assertion Types
//
//   - store_count: number of stored entries, optionally of one status
//   - entry_status: status of one entry by id ("removed" once deleted)
//   - invoke_order: the exact sequence of invoked commands
//   - invoke_count: number of invokes, optionally of one command
//   - pending_count: the published pending count
//   - last_result: the published transient result ("success" or "")
//   - payload_equals: args received by the invoker on the n-th invoke
package harness
