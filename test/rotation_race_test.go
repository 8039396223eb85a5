//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/authmint/authmint/credential"
)

func TestRotationRaceSingleWinner(t *testing.T) {
	ctx := context.Background()
	store, _ := newIntegrationStore(t)

	secret := hashByte(1)
	root := makeChainRoot("acct-race", secret)
	if err := store.Save(ctx, root, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		next := makeSuccessor(root, hashByte(byte(i+2)))
		go func(next *credential.Record) {
			defer wg.Done()
			<-start
			_, err := store.Rotate(ctx, root.ID, secret, next, time.Hour)
			results <- err
		}(next)
	}

	close(start)
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, credential.ErrNotActive):
		default:
			t.Fatalf("unexpected rotate error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	// The loser path at the engine level revokes the chain; at the store
	// level the root must be rotated exactly once with a live successor.
	stored, err := store.Get(ctx, root.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.State != credential.StateRotated {
		t.Fatalf("root state = %v, want rotated", stored.State)
	}
	successor, err := store.Get(ctx, stored.Successor)
	if err != nil {
		t.Fatalf("Get successor failed: %v", err)
	}
	if successor.State != credential.StateActive {
		t.Fatalf("successor state = %v, want active", successor.State)
	}
}

func TestChainWalkAfterManyRotations(t *testing.T) {
	ctx := context.Background()
	store, _ := newIntegrationStore(t)

	secret := hashByte(1)
	current := makeChainRoot("acct-walk", secret)
	if err := store.Save(ctx, current, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	const rotations = 5
	for i := 0; i < rotations; i++ {
		nextSecret := hashByte(byte(i + 2))
		next := makeSuccessor(current, nextSecret)
		if _, err := store.Rotate(ctx, current.ID, secret, next, time.Hour); err != nil {
			t.Fatalf("rotation %d failed: %v", i, err)
		}
		secret = nextSecret
		current = next
	}

	// Walk the chain from the root via successor links.
	root, err := store.Get(ctx, current.ChainRoot)
	if err != nil {
		t.Fatalf("Get root failed: %v", err)
	}

	hops := 0
	node := root
	for node.Successor != credential.NilID {
		if node.State != credential.StateRotated {
			t.Fatalf("intermediate node %s state = %v, want rotated", node.ID, node.State)
		}
		node, err = store.Get(ctx, node.Successor)
		if err != nil {
			t.Fatalf("walk failed at hop %d: %v", hops, err)
		}
		hops++
	}
	if hops != rotations {
		t.Fatalf("chain length = %d, want %d", hops, rotations)
	}
	if node.State != credential.StateActive {
		t.Fatalf("tail state = %v, want active", node.State)
	}

	// Reuse anywhere in the history kills the whole chain.
	if _, err := store.Rotate(ctx, root.ID, root.SecretHash, makeSuccessor(root, hashByte(99)), time.Hour); !errors.Is(err, credential.ErrNotActive) {
		t.Fatalf("expected ErrNotActive on history replay, got %v", err)
	}
	if revoked, err := store.RevokeChain(ctx, root.ChainRoot); err != nil || revoked != 1 {
		t.Fatalf("RevokeChain = (%d, %v), want (1, nil)", revoked, err)
	}
}
