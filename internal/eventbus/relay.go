package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/internal/store"
)

const (
	// DefaultBackoffBaseMS and DefaultBackoffMaxMS bound the retry schedule
	// when the config leaves them unset.
	DefaultBackoffBaseMS = 500
	DefaultBackoffMaxMS  = 60_000

	publishTimeout  = 10 * time.Second
	backlogInterval = 15 * time.Second
)

// RelayStore is the outbox surface the relay drains.
type RelayStore interface {
	AcquireDueOutboxEvent(ctx context.Context, workerID string, leaseDuration time.Duration) (*store.OutboxEvent, error)
	MarkOutboxEventPublished(ctx context.Context, id string) error
	MarkOutboxEventForRetry(ctx context.Context, id, lastError string, nextRunAt time.Time) error
	MarkOutboxEventFailed(ctx context.Context, id, lastError string) error
	CountPendingOutboxEvents(ctx context.Context) (int64, error)
}

// OutboxRelayConfig configures outbox relay workers.
type OutboxRelayConfig struct {
	Workers       int
	PollInterval  time.Duration
	LeaseDuration time.Duration
	MaxAttempts   int
	BackoffBaseMS int
	BackoffMaxMS  int
	Producer      string
}

// OutboxRelay drains the event outbox into the publisher. Multiple daemon
// instances can run relays against the same table; the lease on each row
// keeps them from double-publishing within a lease window.
type OutboxRelay struct {
	store     RelayStore
	publisher Publisher
	cfg       OutboxRelayConfig
	stopCh    chan struct{}
	started   bool
	mu        sync.Mutex
	wg        sync.WaitGroup
}

// NewOutboxRelay creates a relay worker pool over the given outbox store and
// publisher.
func NewOutboxRelay(s RelayStore, p Publisher, cfg OutboxRelayConfig) *OutboxRelay {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = store.DefaultOutboxLeaseTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Producer == "" {
		cfg.Producer = "parley"
	}
	return &OutboxRelay{
		store:     s,
		publisher: p,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
	}
}

// Start launches relay workers and the backlog monitor.
func (r *OutboxRelay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.backlogMonitor()
	logging.Op().Info("event outbox relay started", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)
}

// Stop gracefully stops relay workers. In-flight publishes finish; leased
// rows that were not marked in time become due again when the lease expires.
func (r *OutboxRelay) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	logging.Op().Info("event outbox relay stopped")
}

func (r *OutboxRelay) worker(id int) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	workerID := fmt.Sprintf("outbox-relay-%d", id)
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.poll(workerID)
		}
	}
}

func (r *OutboxRelay) poll(workerID string) {
	job, err := r.store.AcquireDueOutboxEvent(context.Background(), workerID, r.cfg.LeaseDuration)
	if err != nil {
		logging.Op().Error("acquire outbox event failed", "worker", workerID, "error", err)
		return
	}
	if job == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	ctx, span := observability.StartProducerSpan(ctx, "outbox.publish",
		observability.AttrRoutingKey.String(job.RoutingKey),
		observability.AttrOutboxID.String(job.ID),
	)
	err = r.publisher.Publish(ctx, job.RoutingKey, r.envelopeFor(job))
	if err != nil {
		observability.SetSpanError(span, err)
	} else {
		observability.SetSpanOK(span)
	}
	span.End()
	cancel()

	if err == nil {
		if err := r.store.MarkOutboxEventPublished(context.Background(), job.ID); err != nil {
			logging.Op().Error("mark outbox event published failed", "outbox", job.ID, "error", err)
			return
		}
		metrics.RecordOutboxEvent("published")
		logging.Op().Debug("outbox event published", "outbox", job.ID, "routing_key", job.RoutingKey, "attempt", job.Attempt)
		return
	}

	errMsg := err.Error()
	if job.Attempt >= r.cfg.MaxAttempts {
		if markErr := r.store.MarkOutboxEventFailed(context.Background(), job.ID, errMsg); markErr != nil {
			logging.Op().Error("mark outbox event failed status failed", "outbox", job.ID, "error", markErr)
			return
		}
		metrics.RecordOutboxEvent("failed")
		logging.Op().Warn("outbox event moved to failed", "outbox", job.ID, "routing_key", job.RoutingKey, "attempt", job.Attempt, "max_attempts", r.cfg.MaxAttempts, "error", errMsg)
		return
	}

	backoff := calcBackoff(job.Attempt, r.cfg.BackoffBaseMS, r.cfg.BackoffMaxMS)
	nextRun := time.Now().UTC().Add(backoff)
	if markErr := r.store.MarkOutboxEventForRetry(context.Background(), job.ID, errMsg, nextRun); markErr != nil {
		logging.Op().Error("mark outbox event retry failed", "outbox", job.ID, "error", markErr)
		return
	}
	metrics.RecordOutboxEvent("retried")
	logging.Op().Warn("outbox event retry scheduled", "outbox", job.ID, "routing_key", job.RoutingKey, "attempt", job.Attempt, "next_run_at", nextRun, "error", errMsg)
}

// envelopeFor wraps an outbox row for the wire. The envelope id is the
// outbox row id, so a row published twice across lease expiries carries the
// same id both times.
func (r *OutboxRelay) envelopeFor(job *store.OutboxEvent) Envelope {
	var ref struct {
		ConversationID string `json:"conversation_id"`
	}
	_ = json.Unmarshal(job.Payload, &ref)

	return Envelope{
		Meta: Meta{
			ID:            job.ID,
			Type:          job.RoutingKey,
			Producer:      r.cfg.Producer,
			CorrelationID: ref.ConversationID,
			Time:          job.CreatedAt,
		},
		Data: job.Payload,
	}
}

func (r *OutboxRelay) backlogMonitor() {
	defer r.wg.Done()
	ticker := time.NewTicker(backlogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			n, err := r.store.CountPendingOutboxEvents(context.Background())
			if err != nil {
				logging.Op().Error("count outbox backlog failed", "error", err)
				continue
			}
			metrics.SetOutboxBacklog(n)
		}
	}
}

func calcBackoff(attempt, baseMS, maxMS int) time.Duration {
	if baseMS <= 0 {
		baseMS = DefaultBackoffBaseMS
	}
	if maxMS <= 0 {
		maxMS = DefaultBackoffMaxMS
	}
	if maxMS < baseMS {
		maxMS = baseMS
	}
	if attempt < 1 {
		attempt = 1
	}

	ms := float64(baseMS) * math.Pow(2, float64(attempt-1))
	if ms > float64(maxMS) {
		ms = float64(maxMS)
	}
	return time.Duration(ms) * time.Millisecond
}
