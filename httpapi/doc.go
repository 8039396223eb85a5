// Package httpapi provides ready-made net/http JSON handlers for the core
// authentication operations: login, refresh, logout, register, and a
// guarded identity endpoint.
//
// The handlers are transport glue only. Every authentication decision is
// delegated to [authmint.Engine]; failures surface to clients as a generic
// 401 so the reason (bad password, revoked chain, reuse) never leaks.
//
// Refresh tokens travel either in the JSON body or, when cookie transport
// is enabled, in an httpOnly strict-same-site cookie. All responses carry
// the standard browser hardening headers.
package httpapi
