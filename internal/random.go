package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	refreshSecretSize   = 32
	refreshTokenRawSize = 16 + refreshSecretSize
)

// NewCredentialID returns a fresh random credential identifier in canonical
// UUID text form (36 bytes, fixed width).
func NewCredentialID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewTokenID returns a random access-token id (jti claim).
func NewTokenID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshToken packs a credential id and its secret into the opaque
// wire token handed to clients: base64url(raw id || secret), no padding.
func EncodeRefreshToken(credentialID string, secret [refreshSecretSize]byte) (string, error) {
	id, err := uuid.Parse(credentialID)
	if err != nil {
		return "", err
	}

	var raw [refreshTokenRawSize]byte
	copy(raw[:16], id[:])
	copy(raw[16:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeRefreshToken reverses [EncodeRefreshToken]. The error is
// deliberately generic: callers map any decode failure to an invalid-token
// result without distinguishing malformed ids from truncated secrets.
func DecodeRefreshToken(token string) (string, [refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != refreshTokenRawSize {
		return "", secret, errors.New("invalid refresh token size")
	}

	var id uuid.UUID
	copy(id[:], raw[:16])
	copy(secret[:], raw[16:])

	return id.String(), secret, nil
}
