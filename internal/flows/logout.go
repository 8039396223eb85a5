package flows

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/authmint/authmint/credential"
)

type LogoutCredentialStore interface {
	Get(ctx context.Context, id string) (*credential.Record, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForAccount(ctx context.Context, accountID string) (int, error)
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	DecodeRefreshToken func(string) (string, [32]byte, error)
	HashRefreshSecret  func([32]byte) [32]byte
	Store              LogoutCredentialStore
}

// LogoutFailureKind classifies logout flow failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureDecode
	LogoutFailureNotFound
	LogoutFailureMismatch
	LogoutFailureStore
)

// LogoutResult reports which credential was revoked, or why not.
type LogoutResult struct {
	Failure      LogoutFailureKind
	Err          error
	AccountID    string
	CredentialID string
}

// RunLogout revokes the credential named by a presented refresh token. The
// token's secret must hash to the stored value; possession of an id alone
// revokes nothing. Revoking an already-retired record succeeds, so logout
// stays idempotent under client retries.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	id, secret, err := deps.DecodeRefreshToken(refreshToken)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureDecode, Err: err}
	}

	rec, err := deps.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return LogoutResult{Failure: LogoutFailureNotFound, Err: err, CredentialID: id}
		}
		return LogoutResult{Failure: LogoutFailureStore, Err: err, CredentialID: id}
	}

	provided := deps.HashRefreshSecret(secret)
	if subtle.ConstantTimeCompare(provided[:], rec.SecretHash[:]) != 1 {
		return LogoutResult{Failure: LogoutFailureMismatch, CredentialID: id}
	}

	if err := deps.Store.Revoke(ctx, id); err != nil {
		return LogoutResult{
			Failure:      LogoutFailureStore,
			Err:          err,
			AccountID:    rec.AccountID,
			CredentialID: id,
		}
	}

	return LogoutResult{
		Failure:      LogoutFailureNone,
		AccountID:    rec.AccountID,
		CredentialID: id,
	}
}

// RunLogoutAll revokes every active credential the account holds and
// reports how many were transitioned.
func RunLogoutAll(ctx context.Context, accountID string, deps LogoutDeps) (int, error) {
	return deps.Store.RevokeAllForAccount(ctx, accountID)
}

// RunRevokeCredential revokes a single credential by id. Administrative
// surface: no secret proof is required.
func RunRevokeCredential(ctx context.Context, credentialID string, deps LogoutDeps) error {
	return deps.Store.Revoke(ctx, credentialID)
}
