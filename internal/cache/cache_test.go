package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := New("redis://"+s.Addr(), time.Minute, 30*time.Second)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c, s
}

func TestSyncLockIsExclusive(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()

	ok, err := c.AcquireSyncLock(ctx)
	if err != nil {
		t.Fatalf("AcquireSyncLock failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	ok, err = c.AcquireSyncLock(ctx)
	if err != nil {
		t.Fatalf("second AcquireSyncLock failed: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to be rejected while lock held")
	}

	if err := c.ReleaseSyncLock(ctx); err != nil {
		t.Fatalf("ReleaseSyncLock failed: %v", err)
	}

	ok, err = c.AcquireSyncLock(ctx)
	if err != nil {
		t.Fatalf("AcquireSyncLock after release failed: %v", err)
	}
	if !ok {
		t.Fatal("expected acquire to succeed after release")
	}
}

func TestSyncLockExpires(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	c, err := New("redis://"+s.Addr(), time.Minute, 30*time.Second)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if ok, _ := c.AcquireSyncLock(ctx); !ok {
		t.Fatal("expected acquire to succeed")
	}

	// A crashed holder never releases; the TTL must free the lock.
	s.FastForward(2 * time.Minute)

	ok, err := c.AcquireSyncLock(ctx)
	if err != nil {
		t.Fatalf("AcquireSyncLock after expiry failed: %v", err)
	}
	if !ok {
		t.Fatal("expected lock to expire")
	}
}

func TestFullDataCacheRoundTrip(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()

	if _, ok := c.GetFullData(ctx); ok {
		t.Fatal("expected miss on empty cache")
	}

	payload := []byte(`{"team":[]}`)
	if err := c.SetFullData(ctx, payload); err != nil {
		t.Fatalf("SetFullData failed: %v", err)
	}

	got, ok := c.GetFullData(ctx)
	if !ok {
		t.Fatal("expected hit after set")
	}
	if string(got) != string(payload) {
		t.Fatalf("unexpected payload: %s", got)
	}

	if err := c.InvalidateFullData(ctx); err != nil {
		t.Fatalf("InvalidateFullData failed: %v", err)
	}
	if _, ok := c.GetFullData(ctx); ok {
		t.Fatal("expected miss after invalidation")
	}
}

func TestFullDataCacheExpires(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.SetFullData(ctx, []byte(`{}`)); err != nil {
		t.Fatalf("SetFullData failed: %v", err)
	}

	s.FastForward(time.Minute)

	if _, ok := c.GetFullData(ctx); ok {
		t.Fatal("expected payload to expire")
	}
}
