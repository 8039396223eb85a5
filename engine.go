package authmint

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/authmint/authmint/credential"
	"github.com/authmint/authmint/internal"
	internalaudit "github.com/authmint/authmint/internal/audit"
	"github.com/authmint/authmint/internal/flows"
	"github.com/authmint/authmint/jwt"
	"github.com/authmint/authmint/password"
)

// Engine is the façade over the whole token lifecycle: credential
// verification, token issuance, validation, rotation, and revocation.
// Construct it with [Builder.Build]; safe for concurrent use.
type Engine struct {
	config       Config
	credentials  *credential.Store
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Hasher
	jwtManager   *jwt.Manager
	accounts     AccountProvider
	dummyHash    string
}

// Close drains the audit dispatcher. The engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// storeTTL is how long credential records stay visible in Redis: refresh
// lifetime plus retention grace, so retired records still answer replays.
func (e *Engine) storeTTL() time.Duration {
	return e.config.Refresh.TTL + e.config.Refresh.RetentionGrace
}

// Login verifies an email/password pair and issues a token pair. The
// refresh credential starts a fresh rotation chain.
func (e *Engine) Login(ctx context.Context, email, pass string) (*TokenPair, error) {
	if e == nil || e.passwordHash == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	result := flows.RunLogin(ctx, email, pass, e.loginDeps())

	switch result.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, result.AccountID, result.CredentialID, nil, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return &TokenPair{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			CredentialID: result.CredentialID,
		}, nil

	case flows.LoginFailureEmptyInput, flows.LoginFailureAccountLookup, flows.LoginFailurePassword:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, result.AccountID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": loginFailureReason(result.Failure),
			}
		})
		return nil, ErrInvalidCredentials

	case flows.LoginFailureInactive:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, result.AccountID, "", ErrAccountInactive, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "account_inactive",
			}
		})
		return nil, ErrAccountInactive

	default:
		err := e.mapStoreErr(result.Err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, result.AccountID, "", err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "issue_tokens_failed",
			}
		})
		return nil, err
	}
}

func (e *Engine) loginDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		GetAccountByEmail: func(ctx context.Context, email string) (flows.LoginAccountRecord, error) {
			account, err := e.accounts.GetAccountByEmail(ctx, email)
			if err != nil {
				return flows.LoginAccountRecord{}, err
			}
			return flows.LoginAccountRecord{
				ID:           account.ID,
				Email:        account.Email,
				PasswordHash: account.PasswordHash,
				Active:       account.Active,
			}, nil
		},
		AccountNotFound: ErrAccountNotFound,
		VerifyPassword:  e.passwordHash.Verify,
		EqualizeTiming: func(pass string) {
			_, _ = e.passwordHash.Verify(pass, e.dummyHash)
		},
		IssueTokenPair: e.issueTokenPair,
		Warn:           func(msg string, _ ...any) { log.Print(msg) },
	}
	if e.config.Password.UpgradeOnLogin {
		deps.NeedsRehash = e.passwordHash.NeedsRehash
		deps.HashPassword = e.passwordHash.Hash
		deps.UpdatePasswordHash = e.accounts.UpdatePasswordHash
	}
	return deps
}

func loginFailureReason(kind flows.LoginFailureKind) string {
	switch kind {
	case flows.LoginFailureEmptyInput:
		return "empty_input"
	case flows.LoginFailureAccountLookup:
		return "account_not_found"
	case flows.LoginFailurePassword:
		return "password_mismatch"
	default:
		return "internal"
	}
}

// issueTokenPair creates a chain-root refresh credential, persists it, and
// signs a matching access token.
func (e *Engine) issueTokenPair(ctx context.Context, accountID string) (string, string, string, error) {
	credentialID, err := internal.NewCredentialID()
	if err != nil {
		return "", "", "", err
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return "", "", "", err
	}

	now := time.Now()
	rec := &credential.Record{
		ID:          credentialID,
		AccountID:   accountID,
		ChainRoot:   credentialID,
		Predecessor: credential.NilID,
		Successor:   credential.NilID,
		SecretHash:  internal.HashRefreshSecret(secret),
		State:       credential.StateActive,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(e.config.Refresh.TTL).Unix(),
	}
	if err := e.credentials.Save(ctx, rec, e.storeTTL()); err != nil {
		return "", "", "", err
	}

	access, err := e.issueAccessToken(accountID)
	if err != nil {
		return "", "", "", err
	}

	refresh, err := internal.EncodeRefreshToken(credentialID, secret)
	if err != nil {
		return "", "", "", err
	}

	return access, refresh, credentialID, nil
}

func (e *Engine) issueAccessToken(accountID string) (string, error) {
	tokenID, err := internal.NewTokenID()
	if err != nil {
		return "", err
	}
	return e.jwtManager.Issue(accountID, tokenID)
}

// Refresh rotates a refresh credential and issues a fresh token pair. A
// replayed (already rotated or revoked) token revokes its whole chain and
// fails with [ErrRefreshReuse].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}

	result := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		DecodeRefreshToken: internal.DecodeRefreshToken,
		NewCredentialID:    internal.NewCredentialID,
		NewRefreshSecret:   internal.NewRefreshSecret,
		HashRefreshSecret:  internal.HashRefreshSecret,
		EncodeRefreshToken: internal.EncodeRefreshToken,
		IssueAccessToken:   e.issueAccessToken,
		CheckAccountActive: e.checkAccountActive,
		RefreshLifetime:    func() time.Duration { return e.config.Refresh.TTL },
		StoreTTL:           e.storeTTL,
		Warn:               func(msg string, _ ...any) { log.Print(msg) },
		Store:              e.credentials,
	})

	switch result.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, result.AccountID, result.CredentialID, nil, func() map[string]string {
			return map[string]string{
				"predecessor": result.PriorID,
				"chain_root":  result.ChainRoot,
			}
		})
		return &TokenPair{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			CredentialID: result.CredentialID,
		}, nil

	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, result.AccountID, result.PriorID, ErrRefreshReuse, func() map[string]string {
			return map[string]string{
				"chain_root": result.ChainRoot,
			}
		})
		return nil, ErrRefreshReuse

	case flows.RefreshFailureDecode, flows.RefreshFailureNotFound,
		flows.RefreshFailureExpired, flows.RefreshFailureMismatch:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, result.AccountID, result.PriorID, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": refreshFailureReason(result.Failure),
			}
		})
		return nil, ErrRefreshInvalid

	case flows.RefreshFailureInactive:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, result.AccountID, result.PriorID, ErrAccountInactive, func() map[string]string {
			return map[string]string{
				"reason": "account_inactive",
			}
		})
		return nil, ErrAccountInactive

	default:
		err := e.mapStoreErr(result.Err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, result.AccountID, result.PriorID, err, func() map[string]string {
			return map[string]string{
				"reason": refreshFailureReason(result.Failure),
			}
		})
		return nil, err
	}
}

func refreshFailureReason(kind flows.RefreshFailureKind) string {
	switch kind {
	case flows.RefreshFailureDecode:
		return "decode_failed"
	case flows.RefreshFailureNotFound:
		return "credential_not_found"
	case flows.RefreshFailureExpired:
		return "credential_expired"
	case flows.RefreshFailureMismatch:
		return "secret_mismatch"
	case flows.RefreshFailureNextSecret:
		return "next_secret_generation"
	case flows.RefreshFailureRotate:
		return "rotate_failed"
	case flows.RefreshFailureIssueAccess:
		return "issue_access_failed"
	case flows.RefreshFailureEncode:
		return "encode_refresh_failed"
	default:
		return "internal"
	}
}

func (e *Engine) checkAccountActive(ctx context.Context, accountID string) error {
	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return ErrAccountInactive
	}
	if !account.Active {
		return ErrAccountInactive
	}
	return nil
}

// Validate verifies an access token (signature, expiry, issuer, audience)
// without touching the credential store.
func (e *Engine) Validate(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	claims, err := e.jwtManager.Parse(tokenStr)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, mapTokenErr(err)
	}

	e.metricInc(MetricValidateSuccess)

	res := &AuthResult{
		AccountID: claims.AccountID(),
		TokenID:   claims.TokenID(),
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	return res, nil
}

func mapTokenErr(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrTokenMalformed
	}
}

// Logout revokes the refresh credential named by the presented token. The
// revoke is unconditional and idempotent: unknown, malformed, or already
// retired tokens land in the audit trail but still report success. The
// access token, being stateless, simply ages out.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.credentials == nil {
		return ErrEngineNotReady
	}

	result := flows.RunLogout(ctx, refreshToken, e.logoutDeps())

	switch result.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogout)
		e.metricInc(MetricCredentialRevoked)
		e.emitAudit(ctx, auditEventLogout, true, result.AccountID, result.CredentialID, nil, nil)
		return nil
	case flows.LogoutFailureDecode, flows.LogoutFailureNotFound, flows.LogoutFailureMismatch:
		// Nothing provable to revoke. The attempt is audited, the caller
		// still gets a clean logout.
		e.emitAudit(ctx, auditEventLogout, false, result.AccountID, result.CredentialID, ErrRefreshInvalid, nil)
		return nil
	default:
		err := e.mapStoreErr(result.Err)
		e.emitAudit(ctx, auditEventLogout, false, result.AccountID, result.CredentialID, err, nil)
		return err
	}
}

// LogoutAll revokes every active refresh credential the account holds and
// reports how many were transitioned.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) (int, error) {
	if e == nil || e.credentials == nil {
		return 0, ErrEngineNotReady
	}

	revoked, err := flows.RunLogoutAll(ctx, accountID, e.logoutDeps())
	if err != nil {
		err = e.mapStoreErr(err)
		e.emitAudit(ctx, auditEventLogoutAll, false, accountID, "", err, nil)
		return 0, err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, accountID, "", nil, func() map[string]string {
		return map[string]string{
			"revoked": strconv.Itoa(revoked),
		}
	})
	return revoked, nil
}

// RevokeCredential revokes a single refresh credential by id.
// Administrative surface: no secret proof required, idempotent.
func (e *Engine) RevokeCredential(ctx context.Context, credentialID string) error {
	if e == nil || e.credentials == nil {
		return ErrEngineNotReady
	}

	if err := flows.RunRevokeCredential(ctx, credentialID, e.logoutDeps()); err != nil {
		err = e.mapStoreErr(err)
		e.emitAudit(ctx, auditEventCredentialRevoked, false, "", credentialID, err, nil)
		return err
	}

	e.metricInc(MetricCredentialRevoked)
	e.emitAudit(ctx, auditEventCredentialRevoked, true, "", credentialID, nil, nil)
	return nil
}

func (e *Engine) logoutDeps() flows.LogoutDeps {
	return flows.LogoutDeps{
		DecodeRefreshToken: internal.DecodeRefreshToken,
		HashRefreshSecret:  internal.HashRefreshSecret,
		Store:              e.credentials,
	}
}

// AccountCredentials lists the account's refresh credentials across all
// chains, including retired records still inside the retention window.
func (e *Engine) AccountCredentials(ctx context.Context, accountID string) ([]CredentialInfo, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}

	ids, err := e.credentials.AccountCredentialIDs(ctx, accountID)
	if err != nil {
		return nil, e.mapStoreErr(err)
	}

	infos := make([]CredentialInfo, 0, len(ids))
	for _, id := range ids {
		rec, err := e.credentials.Get(ctx, id)
		if err != nil {
			// Records expire out from under the index set.
			if errors.Is(err, credential.ErrNotFound) {
				continue
			}
			return nil, e.mapStoreErr(err)
		}
		infos = append(infos, CredentialInfo{
			ID:        rec.ID,
			ChainRoot: rec.ChainRoot,
			State:     rec.State.String(),
			IssuedAt:  time.Unix(rec.IssuedAt, 0).UTC(),
			ExpiresAt: time.Unix(rec.ExpiresAt, 0).UTC(),
		})
	}
	return infos, nil
}

func (e *Engine) mapStoreErr(err error) error {
	if errors.Is(err, credential.ErrUnavailable) {
		return ErrStoreUnavailable
	}
	return err
}
