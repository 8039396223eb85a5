package authmint

import "errors"

var (
	// ErrInvalidCredentials covers unknown emails and wrong passwords. The
	// two cases are deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when credentials check out but the
	// account has been deactivated.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountExists is returned by Register on a duplicate email.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound is the sentinel AccountProvider implementations
	// return (or wrap) for missing accounts.
	ErrAccountNotFound = errors.New("account not found")
	// ErrPasswordPolicy is returned when a new password fails policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when a password change supplies the
	// current password as the new one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrTokenMalformed is returned by Validate for tokens that do not
	// parse as JWTs or carry unexpected structure.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrSignatureInvalid is returned by Validate for tokens whose
	// signature does not verify.
	ErrSignatureInvalid = errors.New("invalid token signature")
	// ErrTokenExpired is returned by Validate for structurally valid,
	// correctly signed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrRefreshInvalid covers undecodable, unknown, expired, and
	// secret-mismatched refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when a retired refresh token is replayed.
	// The whole rotation chain is revoked before this error surfaces.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrStoreUnavailable is returned when the credential store cannot be
	// reached. Retry-safe.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is returned when the engine is used before Build
	// or after Close.
	ErrEngineNotReady = errors.New("engine not initialized")
)
