//go:build integration
// +build integration

package test

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/authmint/authmint/credential"
)

func newIntegrationStore(t *testing.T) (*credential.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return credential.NewStore(rdb, "am"), mr
}

func hashByte(b byte) [32]byte {
	return sha256.Sum256([]byte{b})
}

func makeChainRoot(account string, secretHash [32]byte) *credential.Record {
	id := uuid.NewString()
	now := time.Now()
	return &credential.Record{
		ID:          id,
		AccountID:   account,
		ChainRoot:   id,
		Predecessor: credential.NilID,
		Successor:   credential.NilID,
		SecretHash:  secretHash,
		State:       credential.StateActive,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(time.Hour).Unix(),
	}
}

func makeSuccessor(prior *credential.Record, secretHash [32]byte) *credential.Record {
	now := time.Now()
	return &credential.Record{
		ID:          uuid.NewString(),
		AccountID:   prior.AccountID,
		ChainRoot:   prior.ChainRoot,
		Predecessor: prior.ID,
		Successor:   credential.NilID,
		SecretHash:  secretHash,
		State:       credential.StateActive,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(time.Hour).Unix(),
	}
}
