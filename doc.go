// Package authmint provides an authentication core with JWT access tokens
// and rotating opaque refresh credentials persisted in Redis, including
// single-use rotation chains and replay (reuse) detection.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Accounts stay in the caller's
// database behind the [AccountProvider] interface; authmint owns only the
// refresh credential records.
//
// # Architecture boundaries
//
// authmint is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPair, AuthResult, MetricsSnapshot, etc.). Flow
// orchestration, token codecs, and audit dispatch live under internal/ and
// are never exported; credential persistence lives in the credential
// sub-package.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or record encodings in its
//     public API.
//   - Persist plaintext passwords or refresh secrets anywhere.
//   - Import any sub-package that re-imports authmint (no import cycles).
//
// # Performance contract
//
// Validate is the hot path: pure JWT verification with no Redis
// round-trips. Login, Refresh, Logout, and account operations are allowed
// one Redis script or pipeline per call.
package authmint
