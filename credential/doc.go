// Package credential provides Redis-backed persistence for refresh
// credentials and the atomic rotation primitive the whole refresh protocol
// rests on.
//
// # Data model
//
// Every refresh credential ever issued is a [Record]: an immutable identity
// (id, account, chain root, predecessor) plus one mutable word, the state.
// Records form rotation chains: login creates a chain root, each successful
// rotation appends a successor. At most one record per chain is Active; the
// only transitions are Active→Rotated and Active→Revoked, applied by Lua
// scripts so the compare-and-swap happens inside Redis, never as a
// read-then-write pair in Go.
//
// # Binary encoding
//
// Records are stored in a fixed-offset binary format (the account id is the
// single variable-length field and sits last) so the rotation script can
// patch the state byte and successor field in place without a full decode.
//
// # Retention
//
// Keys carry a TTL of the refresh lifetime plus a retention grace. Rotated
// and revoked records stay visible for the grace window to power reuse
// detection and the Expired-vs-NotFound distinction; Redis expiry is the
// garbage collector.
//
// # What this package must NOT do
//
//   - Import authmint, jwt, or password (no upward imports).
//   - See plaintext refresh secrets; callers supply SHA-256 hashes.
//   - Decide how reuse is punished; it only reports the state it found.
package credential
