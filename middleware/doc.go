// Package middleware exposes HTTP middleware built on top of
// authmint.Engine validation.
//
// [Guard] reads the Authorization bearer header, calls Engine.Validate,
// and injects the validated [authmint.AuthResult] into the request
// context, where handlers retrieve it with [AuthResultFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated to
// Engine.Validate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis.
//   - Make authorization decisions beyond pass/reject from Engine.Validate.
package middleware
