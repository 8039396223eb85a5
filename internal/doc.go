// Package internal contains helper utilities that are intentionally private to
// authmint, including secure random generation and the refresh-token wire codec.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//
// # What this package must NOT do
//
//   - Export types that appear in the public authmint API.
//   - Be imported by any package outside the authmint module.
package internal
