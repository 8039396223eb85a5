package flows

import (
	"context"
	"errors"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureEmptyInput
	LoginFailureAccountLookup
	LoginFailurePassword
	LoginFailureInactive
	LoginFailureIssueTokens
)

// LoginAccountRecord is the flow-local account shape used by the login flow.
type LoginAccountRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Active       bool
}

// LoginResult carries either the issued token pair or failure metadata.
type LoginResult struct {
	Failure      LoginFailureKind
	Err          error
	AccountID    string
	CredentialID string
	AccessToken  string
	RefreshToken string
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	GetAccountByEmail  func(context.Context, string) (LoginAccountRecord, error)
	AccountNotFound    error
	VerifyPassword     func(password, encodedHash string) (bool, error)
	EqualizeTiming     func(password string)
	NeedsRehash        func(encodedHash string) (bool, error)
	HashPassword       func(password string) (string, error)
	UpdatePasswordHash func(ctx context.Context, accountID, encodedHash string) error
	IssueTokenPair     func(ctx context.Context, accountID string) (access, refresh, credentialID string, err error)
	Warn               func(string, ...any)
}

// RunLogin verifies credentials and issues a token pair. Lookup misses and
// password mismatches both land on LoginFailurePassword-class outcomes so the
// caller can map them to one indistinguishable error; EqualizeTiming runs a
// throwaway hash on the miss path to keep the two timings alike.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	if email == "" || password == "" {
		return LoginResult{Failure: LoginFailureEmptyInput}
	}

	account, err := deps.GetAccountByEmail(ctx, email)
	if err != nil {
		if deps.AccountNotFound != nil && errors.Is(err, deps.AccountNotFound) {
			if deps.EqualizeTiming != nil {
				deps.EqualizeTiming(password)
			}
			return LoginResult{Failure: LoginFailureAccountLookup, Err: err}
		}
		return LoginResult{Failure: LoginFailureAccountLookup, Err: err}
	}

	ok, err := deps.VerifyPassword(password, account.PasswordHash)
	if err != nil || !ok {
		return LoginResult{
			Failure:   LoginFailurePassword,
			Err:       err,
			AccountID: account.ID,
		}
	}

	// Inactive is only reported after the password checked out, so the
	// response never leaks account status to a guesser.
	if !account.Active {
		return LoginResult{
			Failure:   LoginFailureInactive,
			AccountID: account.ID,
		}
	}

	if deps.NeedsRehash != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		upgradeLoginHash(ctx, account, password, deps)
	}

	access, refresh, credentialID, err := deps.IssueTokenPair(ctx, account.ID)
	if err != nil {
		return LoginResult{
			Failure:   LoginFailureIssueTokens,
			Err:       err,
			AccountID: account.ID,
		}
	}

	return LoginResult{
		Failure:      LoginFailureNone,
		AccountID:    account.ID,
		CredentialID: credentialID,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}

// upgradeLoginHash rehashes the password under current cost parameters when
// the stored hash is weaker. Best effort: the login already succeeded.
func upgradeLoginHash(ctx context.Context, account LoginAccountRecord, password string, deps LoginDeps) {
	needs, err := deps.NeedsRehash(account.PasswordHash)
	if err != nil || !needs {
		return
	}
	rehashed, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("authmint: password upgrade hash failed")
		return
	}
	if err := deps.UpdatePasswordHash(ctx, account.ID, rehashed); err != nil {
		deps.Warn("authmint: password upgrade persist failed")
	}
}
