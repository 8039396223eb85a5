package credential

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "am"), mr
}

func hashOf(b byte) [32]byte {
	return sha256.Sum256([]byte{b})
}

func newActiveRecord(account string, secretHash [32]byte) *Record {
	id := uuid.NewString()
	now := time.Now()
	return &Record{
		ID:          id,
		AccountID:   account,
		ChainRoot:   id,
		Predecessor: NilID,
		Successor:   NilID,
		SecretHash:  secretHash,
		State:       StateActive,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(time.Hour).Unix(),
	}
}

func successorFor(prior *Record, secretHash [32]byte) *Record {
	now := time.Now()
	return &Record{
		ID:          uuid.NewString(),
		AccountID:   prior.AccountID,
		ChainRoot:   prior.ChainRoot,
		Predecessor: prior.ID,
		Successor:   NilID,
		SecretHash:  secretHash,
		State:       StateActive,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(time.Hour).Unix(),
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := newActiveRecord("acct-1", hashOf(1))
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *got != *rec {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
	}
}

func TestRotateExpiredHistoryReadsExpired(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	secret := hashOf(1)
	rec := newActiveRecord("acct-1", secret)
	rec.State = StateRotated
	rec.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A replay of a record whose lifetime has lapsed is classified as
	// expired, not reuse, even when the record is already retired.
	prior, err := store.Rotate(ctx, rec.ID, secret, successorFor(rec, hashOf(2)), time.Hour)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if prior == nil || prior.AccountID != "acct-1" {
		t.Fatalf("prior = %+v, want decoded record", prior)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != StateRotated || got.Successor != NilID {
		t.Fatalf("record mutated by failed rotate: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), uuid.NewString())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRotateSuccess(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := newActiveRecord("acct-1", hashOf(1))
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	next := successorFor(rec, hashOf(2))
	prior, err := store.Rotate(ctx, rec.ID, hashOf(1), next, time.Hour)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if prior.State != StateRotated || prior.Successor != next.ID {
		t.Fatalf("returned prior not linked: state=%v successor=%s", prior.State, prior.Successor)
	}

	stored, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get prior failed: %v", err)
	}
	if stored.State != StateRotated {
		t.Fatalf("stored prior state = %v, want rotated", stored.State)
	}
	if stored.Successor != next.ID {
		t.Fatalf("stored successor = %s, want %s", stored.Successor, next.ID)
	}
	if stored.SecretHash != rec.SecretHash {
		t.Fatal("prior secret hash must survive the in-place patch")
	}

	fresh, err := store.Get(ctx, next.ID)
	if err != nil {
		t.Fatalf("Get successor failed: %v", err)
	}
	if fresh.State != StateActive {
		t.Fatalf("successor state = %v, want active", fresh.State)
	}
	if fresh.Predecessor != rec.ID || fresh.ChainRoot != rec.ChainRoot {
		t.Fatalf("successor lineage wrong: pred=%s root=%s", fresh.Predecessor, fresh.ChainRoot)
	}
}

func TestRotateSecretMismatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := newActiveRecord("acct-1", hashOf(1))
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	next := successorFor(rec, hashOf(2))
	_, err := store.Rotate(ctx, rec.ID, hashOf(9), next, time.Hour)
	if !errors.Is(err, ErrSecretMismatch) {
		t.Fatalf("expected ErrSecretMismatch, got %v", err)
	}

	// The live record must be untouched by a forged attempt.
	stored, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.State != StateActive {
		t.Fatalf("record state = %v after mismatch, want active", stored.State)
	}
}

func TestRotateReplayReturnsPrior(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := newActiveRecord("acct-1", hashOf(1))
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Rotate(ctx, rec.ID, hashOf(1), successorFor(rec, hashOf(2)), time.Hour); err != nil {
		t.Fatalf("first Rotate failed: %v", err)
	}

	prior, err := store.Rotate(ctx, rec.ID, hashOf(1), successorFor(rec, hashOf(3)), time.Hour)
	if !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive on replay, got %v", err)
	}
	if prior == nil || prior.ChainRoot != rec.ChainRoot || prior.AccountID != "acct-1" {
		t.Fatalf("replay must surface the prior record, got %+v", prior)
	}
}

func TestRotateExpired(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := newActiveRecord("acct-1", hashOf(1))
	rec.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := store.Rotate(ctx, rec.ID, hashOf(1), successorFor(rec, hashOf(2)), time.Hour)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	stored, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.State != StateActive {
		t.Fatal("expired record must not be transitioned by a failed rotation")
	}
}

func TestRotateMissing(t *testing.T) {
	store, _ := newTestStore(t)

	ghost := newActiveRecord("acct-1", hashOf(1))
	_, err := store.Rotate(context.Background(), uuid.NewString(), hashOf(1), successorFor(ghost, hashOf(2)), time.Hour)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeChainSparesRotatedHistory(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := newActiveRecord("acct-1", hashOf(1))
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	next := successorFor(rec, hashOf(2))
	if _, err := store.Rotate(ctx, rec.ID, hashOf(1), next, time.Hour); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	revoked, err := store.RevokeChain(ctx, rec.ChainRoot)
	if err != nil {
		t.Fatalf("RevokeChain failed: %v", err)
	}
	if revoked != 1 {
		t.Fatalf("revoked = %d, want 1 (only the live record)", revoked)
	}

	live, err := store.Get(ctx, next.ID)
	if err != nil {
		t.Fatalf("Get successor failed: %v", err)
	}
	if live.State != StateRevoked {
		t.Fatalf("successor state = %v, want revoked", live.State)
	}

	old, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get prior failed: %v", err)
	}
	if old.State != StateRotated {
		t.Fatalf("rotated history state = %v, must stay rotated", old.State)
	}
}

func TestRevokeAllForAccount(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := byte(1); i <= 3; i++ {
		rec := newActiveRecord("acct-1", hashOf(i))
		if err := store.Save(ctx, rec, time.Hour); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	other := newActiveRecord("acct-2", hashOf(9))
	if err := store.Save(ctx, other, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	revoked, err := store.RevokeAllForAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("RevokeAllForAccount failed: %v", err)
	}
	if revoked != 3 {
		t.Fatalf("revoked = %d, want 3", revoked)
	}

	untouched, err := store.Get(ctx, other.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if untouched.State != StateActive {
		t.Fatal("other account's credential must stay active")
	}

	count, err := store.ActiveCredentialCount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("ActiveCredentialCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("active count = %d after revoke-all, want 0", count)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := newActiveRecord("acct-1", hashOf(1))
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.Revoke(ctx, rec.ID); err != nil {
			t.Fatalf("Revoke #%d failed: %v", i+1, err)
		}
	}
	if err := store.Revoke(ctx, uuid.NewString()); err != nil {
		t.Fatalf("Revoke of missing record must succeed, got %v", err)
	}

	stored, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.State != StateRevoked {
		t.Fatalf("state = %v, want revoked", stored.State)
	}
}

func TestRecordsExpireOut(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	rec := newActiveRecord("acct-1", hashOf(1))
	if err := store.Save(ctx, rec, time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}
}
