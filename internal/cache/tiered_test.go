package cache

import (
	"context"
	"testing"
	"time"
)

func newTestTiered(t *testing.T, l1TTL time.Duration) (*TieredCache, *InMemoryCache, *InMemoryCache) {
	t.Helper()
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()
	tc := NewTieredCache(l1, l2, l1TTL)
	t.Cleanup(func() { tc.Close() })
	return tc, l1, l2
}

func TestTieredCacheServesFromL1(t *testing.T) {
	tc, _, _ := newTestTiered(t, 10*time.Second)
	ctx := context.Background()

	if err := tc.Set(ctx, "session:abc", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := tc.Get(ctx, "session:abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "v1" {
		t.Fatalf("got %q", string(val))
	}
}

func TestTieredCacheFallsThroughAndWarmsL1(t *testing.T) {
	tc, l1, l2 := newTestTiered(t, 10*time.Second)
	ctx := context.Background()

	// Seed only the shared layer, as if another instance wrote the entry.
	if err := l2.Set(ctx, "session:peer", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("L2 Set failed: %v", err)
	}

	val, err := tc.Get(ctx, "session:peer")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "v2" {
		t.Fatalf("got %q", string(val))
	}

	if _, err := l1.Get(ctx, "session:peer"); err != nil {
		t.Fatalf("expected L1 warmed after fallthrough, got: %v", err)
	}
}

func TestTieredCacheBothLayersMiss(t *testing.T) {
	tc, _, _ := newTestTiered(t, 10*time.Second)

	if _, err := tc.Get(context.Background(), "session:unknown"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestTieredCacheDeleteClearsBothLayers(t *testing.T) {
	tc, l1, l2 := newTestTiered(t, 10*time.Second)
	ctx := context.Background()

	tc.Set(ctx, "session:revoked", []byte("v"), time.Minute)

	if err := tc.Delete(ctx, "session:revoked"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := l1.Get(ctx, "session:revoked"); err != ErrNotFound {
		t.Fatalf("expected L1 cleared, got: %v", err)
	}
	if _, err := l2.Get(ctx, "session:revoked"); err != ErrNotFound {
		t.Fatalf("expected L2 cleared, got: %v", err)
	}
}

func TestTieredCacheL1StalenessIsBounded(t *testing.T) {
	tc, l1, _ := newTestTiered(t, 10*time.Millisecond)
	ctx := context.Background()

	// The caller asks for a long TTL, but the local copy must still expire
	// on the L1 schedule.
	tc.Set(ctx, "session:abc", []byte("v"), time.Hour)

	if _, err := l1.Get(ctx, "session:abc"); err != nil {
		t.Fatalf("expected fresh L1 copy, got: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := l1.Get(ctx, "session:abc"); err != ErrNotFound {
		t.Fatalf("expected L1 copy expired, got: %v", err)
	}
	// The shared layer still has it, so the tiered read succeeds and
	// rewarms L1.
	if _, err := tc.Get(ctx, "session:abc"); err != nil {
		t.Fatalf("expected L2 to back the read, got: %v", err)
	}
}

func TestTieredCacheDefaultL1TTL(t *testing.T) {
	tc, _, _ := newTestTiered(t, 0)
	ctx := context.Background()

	tc.Set(ctx, "session:abc", []byte("v"), time.Minute)

	val, err := tc.Get(ctx, "session:abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "v" {
		t.Fatalf("got %q", string(val))
	}
}
