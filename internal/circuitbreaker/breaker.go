// Package circuitbreaker implements the breaker that shields the event
// relay from a failing message broker.
//
// # State machine
//
//	Closed ──(error rate ≥ threshold)──► Open ──(OpenDuration elapsed)──► HalfOpen
//	  ▲                                                                        │
//	  └──────────────(all probes succeed)───────────────────────────────────────┘
//	                  (any probe fails) ──────────────────────────────────► Open
//
// While open, publishes fail immediately instead of each relay worker
// burning a dial timeout against a broker that is known to be down; the
// outbox rows stay leased for retry, so nothing is lost.
//
// # Why sliding window, not counters
//
// A fixed counter resets on schedule regardless of traffic volume, so a
// burst of errors just before a reset is silently lost. A sliding window
// always reflects the last WindowDuration of publishes, keeping the error
// rate meaningful when the outbox drains in bursts.
//
// # Concurrency
//
// All public methods are safe for concurrent use by the relay workers.
package circuitbreaker

import (
	"sync"
	"time"
)

// State identifies the breaker position.
type State int

const (
	StateClosed   State = iota // publishes pass through
	StateOpen                  // publishes are rejected
	StateHalfOpen              // a limited number of probe publishes go through
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes a Breaker.
type Config struct {
	ErrorPct       float64       // error percentage that trips the breaker (0-100)
	WindowDuration time.Duration // sliding window for the error rate
	OpenDuration   time.Duration // time spent open before probing
	HalfOpenProbes int           // probe publishes admitted while half-open
}

// outcome is one publish attempt inside the sliding window.
type outcome struct {
	at time.Time
	ok bool
}

// maxWindowEntries caps the outcome window so a publish flood cannot grow
// it without bound.
const maxWindowEntries = 10000

// Breaker guards one downstream dependency.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	window   []outcome // outcomes within WindowDuration, oldest first
	openedAt time.Time
	probes   int // probe publishes dispatched while half-open
	probesOK int // probe publishes that succeeded
}

// New creates a breaker in the closed state.
func New(cfg Config) *Breaker {
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	return &Breaker{cfg: cfg}
}

// Allow reports whether a publish may proceed. An open breaker rejects
// everything until OpenDuration has elapsed, then admits up to
// HalfOpenProbes probes.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) < b.cfg.OpenDuration {
			return false
		}
		b.toHalfOpen()
		fallthrough
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenProbes {
			return false
		}
		b.probes++
		return true
	default:
		return true
	}
}

// RecordSuccess records an admitted publish that went through. Once every
// half-open probe has succeeded the breaker closes and the window resets.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.observe(outcome{at: time.Now(), ok: true})
	case StateHalfOpen:
		b.probesOK++
		if b.probesOK >= b.cfg.HalfOpenProbes {
			b.state = StateClosed
			b.window = b.window[:0]
		}
	}
}

// RecordFailure records an admitted publish that failed. A failed probe
// reopens the breaker immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.state {
	case StateClosed:
		b.observe(outcome{at: now})
		if b.errorPct() >= b.cfg.ErrorPct {
			b.state = StateOpen
			b.openedAt = now
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = now
	}
}

// State reports the current position, applying the open to half-open
// transition when OpenDuration has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.OpenDuration {
		b.toHalfOpen()
	}
	return b.state
}

// toHalfOpen resets probe accounting for the open to half-open transition.
// Callers must hold b.mu.
func (b *Breaker) toHalfOpen() {
	b.state = StateHalfOpen
	b.probes = 0
	b.probesOK = 0
}

// observe appends one outcome and drops entries older than WindowDuration.
// Callers must hold b.mu.
func (b *Breaker) observe(o outcome) {
	b.window = append(b.window, o)

	cutoff := o.at.Add(-b.cfg.WindowDuration)
	stale := 0
	for stale < len(b.window) && b.window[stale].at.Before(cutoff) {
		stale++
	}
	if stale > 0 {
		b.window = b.window[:copy(b.window, b.window[stale:])]
	}
	if len(b.window) > maxWindowEntries {
		b.window = b.window[:copy(b.window, b.window[len(b.window)-maxWindowEntries:])]
	}
}

// errorPct is the failure share of the live window, 0 when empty. Callers
// must hold b.mu.
func (b *Breaker) errorPct() float64 {
	if len(b.window) == 0 {
		return 0
	}
	failed := 0
	for _, o := range b.window {
		if !o.ok {
			failed++
		}
	}
	return float64(failed) / float64(len(b.window)) * 100
}
