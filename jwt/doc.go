// Package jwt manages access-token issuance and verification using configured
// signing keys and strict validation semantics suitable for low-latency
// authentication paths.
//
// The [Manager] is pure: it reads key material once at construction and
// performs no I/O afterwards. Parse failures are collapsed onto three
// sentinels ([ErrMalformed], [ErrSignatureInvalid], [ErrExpired]) so callers
// can log the kind without leaking library internals to clients.
package jwt
