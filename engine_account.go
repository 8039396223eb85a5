package authmint

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

// Register creates an account with a hashed password. Duplicate emails
// fail with [ErrAccountExists]; weak passwords with [ErrPasswordPolicy].
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.passwordHash == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		e.emitAudit(ctx, auditEventAccountCreateFailure, false, "", "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "invalid_email",
			}
		})
		return nil, ErrPasswordPolicy
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventAccountCreateFailure, false, "", "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "password_policy",
			}
		})
		return nil, ErrPasswordPolicy
	}

	account, err := e.accounts.CreateAccount(ctx, CreateAccountInput{
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountDuplicate, false, "", "", ErrAccountExists, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return nil, ErrAccountExists
		}
		e.emitAudit(ctx, auditEventAccountCreateFailure, false, "", "", err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "provider_failure",
			}
		})
		return nil, err
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreated, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})

	return &RegisterResult{
		AccountID: account.ID,
		Email:     account.Email,
	}, nil
}

// VerifyCredentials checks an email/password pair without issuing tokens.
// Unknown emails and wrong passwords are indistinguishable, and lookup
// misses burn a throwaway hash so the two paths cost the same.
func (e *Engine) VerifyCredentials(ctx context.Context, email, pass string) (*AccountRecord, error) {
	if e == nil || e.passwordHash == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" || pass == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		_, _ = e.passwordHash.Verify(pass, e.dummyHash)
		return nil, ErrInvalidCredentials
	}

	ok, err := e.passwordHash.Verify(pass, account.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	if !account.Active {
		return nil, ErrAccountInactive
	}

	return &account, nil
}

// ChangePassword rotates an account's password after verifying the current
// one, then revokes every refresh credential the account holds so stolen
// refresh tokens die with the old password.
func (e *Engine) ChangePassword(ctx context.Context, accountID, oldPass, newPass string) error {
	if e == nil || e.passwordHash == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if accountID == "" || oldPass == "" || newPass == "" {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "invalid_input",
			}
		})
		return ErrPasswordPolicy
	}

	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, "", ErrAccountNotFound, func() map[string]string {
			return map[string]string{
				"reason": "account_not_found",
			}
		})
		return ErrAccountNotFound
	}

	oldOK, err := e.passwordHash.Verify(oldPass, account.PasswordHash)
	if err != nil || !oldOK {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeOldBad, false, accountID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	same, err := e.passwordHash.Verify(newPass, account.PasswordHash)
	if err == nil && same {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeReuse, false, accountID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.passwordHash.Hash(newPass)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "password_policy",
			}
		})
		return ErrPasswordPolicy
	}

	if err := e.accounts.UpdatePasswordHash(ctx, accountID, newHash); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, "", err, func() map[string]string {
			return map[string]string{
				"reason": "update_hash_failed",
			}
		})
		return err
	}

	if _, err := e.LogoutAll(ctx, accountID); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, "", err, func() map[string]string {
			return map[string]string{
				"reason": "credential_revocation_failed",
			}
		})
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, accountID, "", nil, nil)

	return nil
}

// SetAccountActive flips an account's active flag. Deactivation revokes
// every refresh credential so the account cannot mint new access tokens.
func (e *Engine) SetAccountActive(ctx context.Context, accountID string, active bool) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	account, err := e.accounts.SetActive(ctx, accountID, active)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, auditEventAccountStatusChange, false, accountID, "", ErrAccountNotFound, nil)
			return ErrAccountNotFound
		}
		e.emitAudit(ctx, auditEventAccountStatusChange, false, accountID, "", err, nil)
		return err
	}

	revoked := 0
	if !active {
		revoked, err = e.credentials.RevokeAllForAccount(ctx, accountID)
		if err != nil {
			err = e.mapStoreErr(err)
			e.emitAudit(ctx, auditEventAccountStatusChange, false, accountID, "", err, func() map[string]string {
				return map[string]string{
					"reason": "credential_revocation_failed",
				}
			})
			return err
		}
		e.metricInc(MetricAccountDeactivated)
	}

	e.emitAudit(ctx, auditEventAccountStatusChange, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{
			"active":  strconv.FormatBool(active),
			"revoked": strconv.Itoa(revoked),
		}
	})
	return nil
}
