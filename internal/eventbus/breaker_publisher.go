package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/circuitbreaker"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/metrics"
)

// ErrCircuitOpen reports that the breaker is rejecting publishes. The relay
// treats it like any other publish error and marks the row for retry with
// backoff, so an open circuit delays delivery but never drops events.
var ErrCircuitOpen = errors.New("broker circuit open")

// DefaultBreakerConfig returns the breaker settings used for the broker
// publisher. Half the window failing trips the breaker; after ten seconds a
// single probe decides whether to close it again.
func DefaultBreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		ErrorPct:       50,
		WindowDuration: 30 * time.Second,
		OpenDuration:   10 * time.Second,
		HalfOpenProbes: 1,
	}
}

// BreakerPublisher wraps a Publisher with a circuit breaker. When the broker
// fails repeatedly the breaker opens and publishes fail immediately instead
// of each relay worker burning the full publish timeout against a broker
// that is known to be down.
type BreakerPublisher struct {
	inner   Publisher
	breaker *circuitbreaker.Breaker

	mu   sync.Mutex
	last circuitbreaker.State
}

// NewBreakerPublisher wraps inner with a breaker built from cfg.
func NewBreakerPublisher(inner Publisher, cfg circuitbreaker.Config) *BreakerPublisher {
	return &BreakerPublisher{
		inner:   inner,
		breaker: circuitbreaker.New(cfg),
	}
}

func (p *BreakerPublisher) Publish(ctx context.Context, routingKey string, env Envelope) error {
	if !p.breaker.Allow() {
		p.observeState()
		return fmt.Errorf("publish %s: %w", routingKey, ErrCircuitOpen)
	}

	err := p.inner.Publish(ctx, routingKey, env)
	if err != nil {
		p.breaker.RecordFailure()
	} else {
		p.breaker.RecordSuccess()
	}
	p.observeState()
	return err
}

func (p *BreakerPublisher) Close() error {
	return p.inner.Close()
}

// observeState keeps the state gauge current and logs transitions. Relay
// workers call Publish concurrently, so the last-seen state has its own lock
// rather than piggybacking on the breaker's.
func (p *BreakerPublisher) observeState() {
	state := p.breaker.State()
	metrics.SetBrokerCircuitState(int(state))

	p.mu.Lock()
	changed := state != p.last
	p.last = state
	p.mu.Unlock()
	if !changed {
		return
	}

	switch state {
	case circuitbreaker.StateOpen:
		logging.Op().Warn("broker circuit opened", "state", state.String())
	case circuitbreaker.StateHalfOpen:
		logging.Op().Info("broker circuit probing", "state", state.String())
	case circuitbreaker.StateClosed:
		logging.Op().Info("broker circuit closed", "state", state.String())
	}
}
