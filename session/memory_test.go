package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func hashOf(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

func seedRecord(t *testing.T, store Store, clock *testClock, token, familyID string) *Record {
	t.Helper()

	now := clock.Now()
	rec := &Record{
		TokenHash: hashOf(token),
		UserID:    "u1",
		Email:     "alice@example.com",
		Role:      "admin",
		FamilyID:  familyID,
		UserAgent: "ua",
		IPAddress: "203.0.113.7",
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}
	fam := &Family{
		FamilyID:  familyID,
		UserID:    "u1",
		CreatedAt: now.Unix(),
		LastUsed:  now.Unix(),
	}
	if err := store.Save(context.Background(), rec, fam); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return rec
}

func newMemory(clock *testClock) *MemoryStore {
	return NewMemoryStore(time.Hour+2*time.Minute, clock.Now)
}

func TestMemoryRotateHappyPath(t *testing.T) {
	clock := newTestClock()
	store := newMemory(clock)
	ctx := context.Background()

	seedRecord(t, store, clock, "t0", "fam-1")

	succ, err := store.Rotate(ctx, hashOf("t0"), hashOf("t1"), time.Hour, RotateMeta{UserAgent: "ua2", IPAddress: "198.51.100.1"})
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if succ.TokenHash != hashOf("t1") {
		t.Fatal("successor carries wrong hash")
	}
	if succ.RotationCount != 1 {
		t.Fatalf("expected rotation count 1, got %d", succ.RotationCount)
	}
	if succ.UserAgent != "ua2" || succ.IPAddress != "198.51.100.1" {
		t.Fatalf("successor metadata not updated: %+v", succ)
	}
	if succ.UserID != "u1" || succ.Email != "alice@example.com" || succ.Role != "admin" {
		t.Fatalf("identity tuple lost in rotation: %+v", succ)
	}

	fam, err := store.GetFamily(ctx, "fam-1")
	if err != nil {
		t.Fatalf("GetFamily failed: %v", err)
	}
	if fam.RotationCount != 1 || fam.Compromised {
		t.Fatalf("unexpected family state: %+v", fam)
	}
}

func TestMemoryRotateUnknownHash(t *testing.T) {
	clock := newTestClock()
	store := newMemory(clock)

	_, err := store.Rotate(context.Background(), hashOf("missing"), hashOf("next"), time.Hour, RotateMeta{})
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestMemoryRotateReuseCascades(t *testing.T) {
	clock := newTestClock()
	store := newMemory(clock)
	ctx := context.Background()

	seedRecord(t, store, clock, "t0", "fam-1")

	if _, err := store.Rotate(ctx, hashOf("t0"), hashOf("t1"), time.Hour, RotateMeta{}); err != nil {
		t.Fatalf("first rotation failed: %v", err)
	}

	_, err := store.Rotate(ctx, hashOf("t0"), hashOf("t2"), time.Hour, RotateMeta{})
	if !errors.Is(err, ErrReuseDetected) {
		t.Fatalf("expected ErrReuseDetected, got %v", err)
	}

	// The error names the cascaded lineage for the audit trail.
	var conflict *FamilyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected FamilyConflictError, got %T", err)
	}
	if conflict.FamilyID != "fam-1" || conflict.UserID != "u1" {
		t.Fatalf("conflict misidentifies the family: %+v", conflict)
	}

	// Cascade tombstones the family and kills the successor.
	fam, err := store.GetFamily(ctx, "fam-1")
	if err != nil {
		t.Fatalf("GetFamily failed: %v", err)
	}
	if !fam.Compromised {
		t.Fatal("expected family to be marked compromised")
	}

	_, err = store.Rotate(ctx, hashOf("t1"), hashOf("t3"), time.Hour, RotateMeta{})
	if !errors.Is(err, ErrReuseDetected) && !errors.Is(err, ErrFamilyCompromised) {
		t.Fatalf("expected cascaded successor to fail, got %v", err)
	}

	records, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no live records after cascade, got %d", len(records))
	}
}

func TestMemoryRotateExpired(t *testing.T) {
	clock := newTestClock()
	store := newMemory(clock)
	ctx := context.Background()

	seedRecord(t, store, clock, "t0", "fam-1")

	clock.Advance(2 * time.Hour)

	_, err := store.Rotate(ctx, hashOf("t0"), hashOf("t1"), time.Hour, RotateMeta{})
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// Expiry consumes without blacklisting: a second attempt is not-found,
	// not reuse.
	_, err = store.Rotate(ctx, hashOf("t0"), hashOf("t1"), time.Hour, RotateMeta{})
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after expiry consume, got %v", err)
	}

	fam, err := store.GetFamily(ctx, "fam-1")
	if err != nil {
		t.Fatalf("GetFamily failed: %v", err)
	}
	if fam.Compromised {
		t.Fatal("expiry must not compromise the family")
	}
}

func TestMemoryRotateCompromisedFamilyFailsClosed(t *testing.T) {
	clock := newTestClock()
	store := newMemory(clock)
	ctx := context.Background()

	seedRecord(t, store, clock, "t0", "fam-1")

	if err := store.InvalidateFamily(ctx, "fam-1"); err != nil {
		t.Fatalf("InvalidateFamily failed: %v", err)
	}

	_, err := store.Rotate(ctx, hashOf("t0"), hashOf("t1"), time.Hour, RotateMeta{})
	if !errors.Is(err, ErrReuseDetected) && !errors.Is(err, ErrFamilyCompromised) {
		t.Fatalf("expected compromised-family rotation to fail, got %v", err)
	}
}

func TestMemoryRevoke(t *testing.T) {
	clock := newTestClock()
	store := newMemory(clock)
	ctx := context.Background()

	seedRecord(t, store, clock, "t0", "fam-1")

	revoked, err := store.Revoke(ctx, hashOf("t0"))
	if err != nil || !revoked {
		t.Fatalf("expected revocation, got revoked=%v err=%v", revoked, err)
	}

	revoked, err = store.Revoke(ctx, hashOf("t0"))
	if err != nil || revoked {
		t.Fatalf("expected idempotent false, got revoked=%v err=%v", revoked, err)
	}

	// The revoked hash is blacklisted: replay reads as reuse.
	_, err = store.Rotate(ctx, hashOf("t0"), hashOf("t1"), time.Hour, RotateMeta{})
	if !errors.Is(err, ErrReuseDetected) {
		t.Fatalf("expected ErrReuseDetected on revoked hash, got %v", err)
	}
}

func TestMemoryRevokeAllForUser(t *testing.T) {
	clock := newTestClock()
	store := newMemory(clock)
	ctx := context.Background()

	seedRecord(t, store, clock, "t0", "fam-1")
	seedRecord(t, store, clock, "t1", "fam-2")

	if err := store.RevokeAllForUser(ctx, "u1"); err != nil {
		t.Fatalf("RevokeAllForUser failed: %v", err)
	}

	records, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}

	for _, token := range []string{"t0", "t1"} {
		if _, err := store.Rotate(ctx, hashOf(token), hashOf(token+"n"), time.Hour, RotateMeta{}); err == nil {
			t.Fatalf("expected %s to be dead after bulk revocation", token)
		}
	}
}

func TestMemoryListByUserSkipsExpired(t *testing.T) {
	clock := newTestClock()
	store := newMemory(clock)
	ctx := context.Background()

	seedRecord(t, store, clock, "t0", "fam-1")

	clock.Advance(30 * time.Minute)
	seedRecord(t, store, clock, "t1", "fam-2")

	clock.Advance(45 * time.Minute) // t0 is now past its 1h expiry

	records, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 live record, got %d", len(records))
	}
	if records[0].FamilyID != "fam-2" {
		t.Fatalf("wrong survivor: %+v", records[0])
	}
}

func TestMemoryPruneExpired(t *testing.T) {
	clock := newTestClock()
	store := newMemory(clock)
	ctx := context.Background()

	seedRecord(t, store, clock, "t0", "fam-1")
	if _, err := store.Rotate(ctx, hashOf("t0"), hashOf("t1"), time.Hour, RotateMeta{}); err != nil {
		t.Fatalf("rotation failed: %v", err)
	}

	// Past both record expiry and blacklist retention.
	clock.Advance(3 * time.Hour)

	removed, err := store.PruneExpired(ctx)
	if err != nil {
		t.Fatalf("PruneExpired failed: %v", err)
	}
	if removed == 0 {
		t.Fatal("expected pruned entries")
	}

	// Everything about the chain is gone, including the family.
	if _, err := store.GetFamily(ctx, "fam-1"); !errors.Is(err, ErrFamilyNotFound) {
		t.Fatalf("expected family to be pruned, got %v", err)
	}

	// The blacklist entry aged out too: the old hash reads as not-found.
	_, err = store.Rotate(ctx, hashOf("t0"), hashOf("t2"), time.Hour, RotateMeta{})
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after blacklist expiry, got %v", err)
	}
}

func TestMemoryRotateConcurrentSingleWinner(t *testing.T) {
	clock := newTestClock()
	store := newMemory(clock)
	ctx := context.Background()

	seedRecord(t, store, clock, "t0", "fam-1")

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)

	for i := 0; i < n; i++ {
		next := hashOf("winner")
		go func() {
			defer wg.Done()
			_, err := store.Rotate(ctx, hashOf("t0"), next, time.Hour, RotateMeta{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one winner, got %d", success)
	}
}
