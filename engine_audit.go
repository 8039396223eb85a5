package authmint

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventRefreshReuseDetected  = "refresh_reuse_detected"
	auditEventLogout                = "logout_credential"
	auditEventLogoutAll             = "logout_all"
	auditEventCredentialRevoked     = "credential_revoked"
	auditEventAccountCreated        = "account_creation_success"
	auditEventAccountCreateFailure  = "account_creation_failure"
	auditEventAccountDuplicate      = "account_creation_duplicate"
	auditEventAccountStatusChange   = "account_status_change"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventPasswordChangeOldBad  = "password_change_invalid_old"
	auditEventPasswordChangeReuse   = "password_change_reuse_attempt"
)

// AuditErrorCode is the stable error vocabulary recorded on audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrRefreshInvalid     AuditErrorCode = "refresh_invalid"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	credentialID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		AccountID:    accountID,
		CredentialID: credentialID,
		IP:           clientIPFromContext(ctx),
		Success:      success,
		Metadata:     metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrSignatureInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrRefreshInvalid):
		return auditErrRefreshInvalid
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
