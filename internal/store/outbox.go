package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parleyhq/parley/internal/domain"
)

// Outbox status values.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusPublishing OutboxStatus = "publishing"
	OutboxStatusPublished  OutboxStatus = "published"
	OutboxStatusFailed     OutboxStatus = "failed"
)

const DefaultOutboxLeaseTimeout = 30 * time.Second

// Routing keys for assignment events. Consumers bind on these.
const (
	RoutingKeyConversationAssigned = "conversation.assigned.v1"
	RoutingKeyConversationReleased = "conversation.released.v1"
)

// OutboxEvent is a durable record of a domain event awaiting publication.
// Rows are written in the same transaction as the state change they
// describe and relayed to the broker afterwards, so a broker outage can
// never roll back an assignment.
type OutboxEvent struct {
	ID          string          `json:"id"`
	RoutingKey  string          `json:"routing_key"`
	Payload     json.RawMessage `json:"payload"`
	Status      OutboxStatus    `json:"status"`
	Attempt     int             `json:"attempt"`
	LockedBy    string          `json:"locked_by,omitempty"`
	LockedUntil *time.Time      `json:"locked_until,omitempty"`
	NextRunAt   time.Time       `json:"next_run_at"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

func enqueueAssignmentOutboxTx(ctx context.Context, exec rowExecutor, ev *domain.AssignmentEvent) error {
	routingKey := RoutingKeyConversationAssigned
	if ev.Kind == domain.AssignmentRelease {
		routingKey = RoutingKeyConversationReleased
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	now := time.Now().UTC()
	_, err = exec.Exec(ctx, `
		INSERT INTO event_outbox (id, routing_key, payload, status, attempt, next_run_at, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
	`, uuid.New().String(), routingKey, payload, string(OutboxStatusPending), now)
	if err != nil {
		return fmt.Errorf("enqueue outbox event: %w", err)
	}
	return nil
}

// AcquireDueOutboxEvent atomically leases one event that is due for
// publication, including events whose previous lease expired mid-publish.
// Returns (nil, nil) when nothing is due.
func (s *PostgresStore) AcquireDueOutboxEvent(ctx context.Context, workerID string, leaseDuration time.Duration) (*OutboxEvent, error) {
	if workerID == "" {
		workerID = "outbox-relay"
	}
	if leaseDuration <= 0 {
		leaseDuration = DefaultOutboxLeaseTimeout
	}

	now := time.Now().UTC()
	leaseUntil := now.Add(leaseDuration)
	ev, err := scanOutboxEvent(s.pool.QueryRow(ctx, `
		UPDATE event_outbox SET
			status = 'publishing',
			attempt = attempt + 1,
			locked_by = $1,
			locked_until = $2
		WHERE id = (
			SELECT id FROM event_outbox
			WHERE ((status = 'pending' AND next_run_at <= $3) OR (status = 'publishing' AND locked_until < $3))
			ORDER BY next_run_at ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, routing_key, payload, status, attempt, locked_by, locked_until, next_run_at, last_error, created_at, published_at
	`, workerID, leaseUntil, now))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire outbox event: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) MarkOutboxEventPublished(ctx context.Context, id string) error {
	now := time.Now().UTC()
	ct, err := s.pool.Exec(ctx, `
		UPDATE event_outbox SET
			status = 'published',
			last_error = NULL,
			locked_by = NULL,
			locked_until = NULL,
			published_at = $2
		WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("mark outbox event published: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: outbox event %s", domain.ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) MarkOutboxEventForRetry(ctx context.Context, id, lastError string, nextRunAt time.Time) error {
	if nextRunAt.IsZero() {
		nextRunAt = time.Now().UTC()
	}
	ct, err := s.pool.Exec(ctx, `
		UPDATE event_outbox SET
			status = 'pending',
			last_error = $2,
			next_run_at = $3,
			locked_by = NULL,
			locked_until = NULL
		WHERE id = $1
	`, id, nullIfEmpty(lastError), nextRunAt)
	if err != nil {
		return fmt.Errorf("mark outbox event retry: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: outbox event %s", domain.ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) MarkOutboxEventFailed(ctx context.Context, id, lastError string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE event_outbox SET
			status = 'failed',
			last_error = $2,
			locked_by = NULL,
			locked_until = NULL
		WHERE id = $1
	`, id, nullIfEmpty(lastError))
	if err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: outbox event %s", domain.ErrNotFound, id)
	}
	return nil
}

// CountPendingOutboxEvents reports the publication backlog for metrics.
func (s *PostgresStore) CountPendingOutboxEvents(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM event_outbox WHERE status IN ('pending', 'publishing')
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending outbox events: %w", err)
	}
	return n, nil
}

func scanOutboxEvent(scanner rowScanner) (*OutboxEvent, error) {
	var ev OutboxEvent
	var status string
	var payload []byte
	var lockedBy *string
	var lastError *string

	err := scanner.Scan(
		&ev.ID,
		&ev.RoutingKey,
		&payload,
		&status,
		&ev.Attempt,
		&lockedBy,
		&ev.LockedUntil,
		&ev.NextRunAt,
		&lastError,
		&ev.CreatedAt,
		&ev.PublishedAt,
	)
	if err != nil {
		return nil, err
	}
	ev.Payload = payload
	ev.Status = OutboxStatus(status)
	if lockedBy != nil {
		ev.LockedBy = *lockedBy
	}
	if lastError != nil {
		ev.LastError = *lastError
	}
	return &ev, nil
}
