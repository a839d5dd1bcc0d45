package cache

import (
	"context"
	"time"
)

// DefaultL1TTL bounds how stale the local layer may serve an entry relative
// to the shared one.
const DefaultL1TTL = 10 * time.Second

// TieredCache layers a process-local L1 over a shared L2, Redis in
// production. Session validation reads L1 first so steady-state requests
// never leave the process; misses fall through to L2 and warm L1 on the
// way back. The short L1 TTL together with Pub/Sub invalidation keeps a
// revoked session from outliving its revocation on other instances.
type TieredCache struct {
	l1    Cache
	l2    Cache
	l1TTL time.Duration
}

// NewTieredCache creates a two-level cache. l1TTL bounds L1 staleness and
// defaults to DefaultL1TTL when zero.
func NewTieredCache(l1, l2 Cache, l1TTL time.Duration) *TieredCache {
	if l1TTL <= 0 {
		l1TTL = DefaultL1TTL
	}
	return &TieredCache{l1: l1, l2: l2, l1TTL: l1TTL}
}

func (t *TieredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if val, err := t.l1.Get(ctx, key); err == nil {
		return val, nil
	}

	val, err := t.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	// Warm the local layer so the next lookup stays in-process.
	_ = t.l1.Set(ctx, key, val, t.l1TTL)
	return val, nil
}

// Set writes both layers. The L1 copy carries the short local TTL rather
// than the caller's, so an instance cannot serve the entry past l1TTL
// without reconfirming against L2.
func (t *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = t.l1.Set(ctx, key, value, t.l1TTL)
	return t.l2.Set(ctx, key, value, ttl)
}

// Delete removes the key from both layers. The L2 delete is the one that
// matters for correctness; peers drop their L1 copies via the invalidator.
func (t *TieredCache) Delete(ctx context.Context, key string) error {
	_ = t.l1.Delete(ctx, key)
	return t.l2.Delete(ctx, key)
}

// Ping checks the shared layer. L1 is process memory and cannot fail.
func (t *TieredCache) Ping(ctx context.Context) error {
	return t.l2.Ping(ctx)
}

func (t *TieredCache) Close() error {
	_ = t.l1.Close()
	return t.l2.Close()
}
