// Package payload models the opaque arguments carried by queued commands.
//
// A payload is any JSON value: objects, arrays and scalars nest freely. The
// queue never interprets it; it only has to store it and hand it back to the
// invoker structurally unchanged. Numbers are kept as their JSON text so that
// large integers and decimals survive a round trip through SQLite exactly.
//
// Two serializations exist:
//   - Marshal: the storage form. Object keys sorted, no HTML escaping,
//     strings byte-for-byte as given.
//   - MarshalCanonical: the identity form used by Fingerprint. Strings are
//     NFC normalized and numbers are normalized, so equivalent payloads hash
//     the same way.
//
// This package imports nothing internal.
package payload
