// Package remote is the HTTP transport for queued commands.
//
// Client.Invoke posts one command to {base}/api/commands/{name} with the
// args as the JSON body. The entry's idempotency key, when present on the
// context, is sent as the Idempotency-Key header so the server can drop
// duplicates produced by at-least-once delivery.
//
// A response status of 400 or above is an error. A JSON object body with
// "success": false is an explicit non-success. Any other 2xx answer is a
// success; the decoded body is returned as Result.Body.
//
// Client.Probe issues GET {base}/api/health and serves as the reachability
// check of the network monitor.
package remote
