package ratelimit

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parleyhq/parley/internal/logging"
)

const (
	// probeInterval is the minimum gap between recovery probes of the primary.
	probeInterval = 5 * time.Second

	// probeTimeout bounds a single recovery probe.
	probeTimeout = 2 * time.Second
)

// FallbackBackend fronts the shared Redis backend with per-process token
// buckets. When the primary errors, checks degrade to the local buckets
// instead of failing open, and background probes restore distributed mode
// once the primary answers again.
type FallbackBackend struct {
	primary   Backend
	local     *LocalTokenBucketBackend
	degraded  atomic.Bool
	probeMu   sync.Mutex
	lastProbe atomic.Int64 // unix nanos of the most recent probe
}

// NewFallbackBackend wraps primary, typically a RedisBackend, with a local
// in-memory fallback.
func NewFallbackBackend(primary Backend) *FallbackBackend {
	return &FallbackBackend{
		primary: primary,
		local:   NewLocalTokenBucketBackend(),
	}
}

func (f *FallbackBackend) CheckRateLimit(ctx context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error) {
	if f.degraded.Load() {
		if time.Since(time.Unix(0, f.lastProbe.Load())) > probeInterval {
			go f.probeAndRecover(ctx)
		}
		return f.local.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	}

	allowed, remaining, err := f.primary.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	if err != nil {
		logging.Op().Warn("rate-limit primary backend error, degrading to local", "error", err)
		f.degraded.Store(true)
		f.lastProbe.Store(time.Now().UnixNano())
		return f.local.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	}
	return allowed, remaining, nil
}

// probeAndRecover checks whether the primary has come back. A zero requested
// count leaves the probed bucket untouched. The probe detaches from the
// request's cancellation so it can outlive the request that triggered it.
func (f *FallbackBackend) probeAndRecover(ctx context.Context) {
	if !f.probeMu.TryLock() {
		return // another goroutine is already probing
	}
	defer f.probeMu.Unlock()

	f.lastProbe.Store(time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
	defer cancel()

	if _, _, err := f.primary.CheckRateLimit(ctx, "probe:health", 1000, 1000, 0); err == nil {
		logging.Op().Info("rate-limit primary backend recovered, resuming distributed mode")
		f.degraded.Store(false)
	}
}

// Degraded reports whether checks are currently served from local buckets.
func (f *FallbackBackend) Degraded() bool {
	return f.degraded.Load()
}

// localSweepInterval bounds how often refilled buckets are pruned.
const localSweepInterval = time.Minute

// LocalTokenBucketBackend implements Backend with in-memory buckets. Limits
// enforced here are per process, so a cluster of N daemons running degraded
// admits up to N times the configured rate. Buckets that have refilled
// completely are pruned so per-IP keys cannot grow the map without bound.
type LocalTokenBucketBackend struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
}

type localBucket struct {
	tokens     float64
	lastRefill time.Time
	fullAt     time.Time
}

// NewLocalTokenBucketBackend creates an empty local token bucket backend.
func NewLocalTokenBucketBackend() *LocalTokenBucketBackend {
	return &LocalTokenBucketBackend{
		buckets:   make(map[string]*localBucket),
		lastSweep: time.Now(),
	}
}

func (l *LocalTokenBucketBackend) CheckRateLimit(_ context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{
			tokens:     float64(maxTokens),
			lastRefill: now,
		}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(maxTokens), b.tokens+elapsed*refillRate)
		b.lastRefill = now
	}

	allowed := b.tokens >= float64(requested)
	if allowed {
		b.tokens -= float64(requested)
	}
	b.fullAt = fullAgainAt(now, float64(maxTokens)-b.tokens, refillRate)
	return allowed, int(b.tokens), nil
}

// fullAgainAt computes when a bucket missing the given tokens refills. A full
// bucket carries the same state as an absent one, so it is safe to prune.
func fullAgainAt(now time.Time, missing, refillRate float64) time.Time {
	if missing <= 0 {
		return now
	}
	if refillRate <= 0 {
		// Never refills on its own; hold it for an hour so repeat
		// offenders stay limited.
		return now.Add(time.Hour)
	}
	return now.Add(time.Duration(missing / refillRate * float64(time.Second)))
}

// sweep drops refilled buckets. Callers must hold l.mu.
func (l *LocalTokenBucketBackend) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < localSweepInterval {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if !b.fullAt.After(now) {
			delete(l.buckets, key)
		}
	}
}
