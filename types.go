package authmint

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/authmint/authmint/internal/audit"
)

// AccountRecord is the account shape the engine works with. The engine
// never persists accounts itself; records come from the [AccountProvider].
type AccountRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Active       bool
}

// CreateAccountInput is the input for [AccountProvider.CreateAccount].
// PasswordHash arrives already encoded; providers never see plaintext.
type CreateAccountInput struct {
	Email        string
	PasswordHash string
	Active       bool
}

// AccountProvider is the interface callers implement to integrate authmint
// with their account database. Missing accounts are signalled by returning
// (or wrapping) [ErrAccountNotFound]; duplicate emails on create by
// [ErrAccountExists].
type AccountProvider interface {
	GetAccountByEmail(ctx context.Context, email string) (AccountRecord, error)
	GetAccountByID(ctx context.Context, accountID string) (AccountRecord, error)
	CreateAccount(ctx context.Context, input CreateAccountInput) (AccountRecord, error)
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error
	SetActive(ctx context.Context, accountID string, active bool) (AccountRecord, error)
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email    string
	Password string
}

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	AccountID string
	Email     string
}

// TokenPair is returned by [Engine.Login] and [Engine.Refresh].
// CredentialID names the refresh credential backing RefreshToken.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	CredentialID string
}

// AuthResult is returned by [Engine.Validate] for a valid access token.
type AuthResult struct {
	AccountID string
	TokenID   string
	ExpiresAt time.Time
}

// CredentialInfo is a read-only view of one refresh credential, returned
// by [Engine.AccountCredentials]. Secret hashes are never exposed.
type CredentialInfo struct {
	ID        string
	ChainRoot string
	State     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	RetentionGrace        time.Duration
	Argon2                PasswordConfigReport
	RotationEnabled       bool
	ReuseDetectionEnabled bool
	AuditEnabled          bool
	MetricsEnabled        bool
}

// PasswordConfigReport contains the Argon2 parameters active in the engine.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
