package flows

import (
	"context"
	"errors"
	"time"

	"github.com/authmint/authmint/credential"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureNextSecret
	RefreshFailureNotFound
	RefreshFailureExpired
	RefreshFailureMismatch
	RefreshFailureReuse
	RefreshFailureRotate
	RefreshFailureInactive
	RefreshFailureIssueAccess
	RefreshFailureEncode
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	AccountID    string
	PriorID      string
	CredentialID string
	ChainRoot    string
	ChainRevoked int
	AccessToken  string
	RefreshToken string
}

type RefreshCredentialStore interface {
	Rotate(
		ctx context.Context,
		id string,
		providedHash [32]byte,
		next *credential.Record,
		ttl time.Duration,
	) (*credential.Record, error)
	RevokeChain(ctx context.Context, rootID string) (int, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	DecodeRefreshToken func(string) (string, [32]byte, error)
	NewCredentialID    func() (string, error)
	NewRefreshSecret   func() ([32]byte, error)
	HashRefreshSecret  func([32]byte) [32]byte
	EncodeRefreshToken func(string, [32]byte) (string, error)
	IssueAccessToken   func(accountID string) (string, error)
	CheckAccountActive func(context.Context, string) error
	Now                func() time.Time
	RefreshLifetime    func() time.Duration
	StoreTTL           func() time.Duration
	Warn               func(string, ...any)
	Store              RefreshCredentialStore
}

// RunRefresh executes refresh rotation and issuance logic without root
// package dependencies. A presented token that matches a retired record is
// treated as reuse: the whole chain is revoked before the failure surfaces.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	priorID, providedSecret, err := deps.DecodeRefreshToken(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	nextID, err := deps.NewCredentialID()
	if err != nil {
		return RefreshResult{Failure: RefreshFailureNextSecret, Err: err, PriorID: priorID}
	}
	nextSecret, err := deps.NewRefreshSecret()
	if err != nil {
		return RefreshResult{Failure: RefreshFailureNextSecret, Err: err, PriorID: priorID}
	}

	// Account, chain root, and predecessor are filled in by the store from
	// the live prior record.
	now := deps.Now()
	next := &credential.Record{
		ID:         nextID,
		Successor:  credential.NilID,
		SecretHash: deps.HashRefreshSecret(nextSecret),
		State:      credential.StateActive,
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(deps.RefreshLifetime()).Unix(),
	}

	prior, err := deps.Store.Rotate(
		ctx,
		priorID,
		deps.HashRefreshSecret(providedSecret),
		next,
		deps.StoreTTL(),
	)
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrNotFound):
			return RefreshResult{Failure: RefreshFailureNotFound, Err: err, PriorID: priorID}
		case errors.Is(err, credential.ErrExpired):
			return RefreshResult{
				Failure:   RefreshFailureExpired,
				Err:       err,
				PriorID:   priorID,
				AccountID: accountOf(prior),
				ChainRoot: rootOf(prior),
			}
		case errors.Is(err, credential.ErrSecretMismatch):
			return RefreshResult{Failure: RefreshFailureMismatch, Err: err, PriorID: priorID}
		case errors.Is(err, credential.ErrNotActive):
			revoked := 0
			if prior != nil {
				var revokeErr error
				revoked, revokeErr = deps.Store.RevokeChain(ctx, prior.ChainRoot)
				if revokeErr != nil {
					deps.Warn("authmint: reuse chain revocation failed")
				}
			}
			return RefreshResult{
				Failure:      RefreshFailureReuse,
				Err:          err,
				PriorID:      priorID,
				AccountID:    accountOf(prior),
				ChainRoot:    rootOf(prior),
				ChainRevoked: revoked,
			}
		default:
			return RefreshResult{Failure: RefreshFailureRotate, Err: err, PriorID: priorID}
		}
	}

	if deps.CheckAccountActive != nil {
		if statusErr := deps.CheckAccountActive(ctx, prior.AccountID); statusErr != nil {
			// A deactivated account's rotated chain must not stay usable.
			if _, revokeErr := deps.Store.RevokeChain(ctx, prior.ChainRoot); revokeErr != nil {
				deps.Warn("authmint: inactive account chain revocation failed")
			}
			return RefreshResult{
				Failure:   RefreshFailureInactive,
				Err:       statusErr,
				PriorID:   priorID,
				AccountID: prior.AccountID,
				ChainRoot: prior.ChainRoot,
			}
		}
	}

	access, err := deps.IssueAccessToken(prior.AccountID)
	if err != nil {
		return RefreshResult{
			Failure:   RefreshFailureIssueAccess,
			Err:       err,
			PriorID:   priorID,
			AccountID: prior.AccountID,
			ChainRoot: prior.ChainRoot,
		}
	}

	refresh, err := deps.EncodeRefreshToken(nextID, nextSecret)
	if err != nil {
		return RefreshResult{
			Failure:   RefreshFailureEncode,
			Err:       err,
			PriorID:   priorID,
			AccountID: prior.AccountID,
			ChainRoot: prior.ChainRoot,
		}
	}

	return RefreshResult{
		Failure:      RefreshFailureNone,
		PriorID:      priorID,
		CredentialID: nextID,
		AccountID:    prior.AccountID,
		ChainRoot:    prior.ChainRoot,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}

func accountOf(r *credential.Record) string {
	if r == nil {
		return ""
	}
	return r.AccountID
}

func rootOf(r *credential.Record) string {
	if r == nil {
		return ""
	}
	return r.ChainRoot
}
