package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/observability"
)

// Publisher delivers one envelope to the broker. Implementations are used by
// the outbox relay, which handles retries; Publish should fail fast rather
// than retry internally.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, env Envelope) error
	Close() error
}

// AMQPConfig configures the RabbitMQ publisher.
type AMQPConfig struct {
	URL          string
	Exchange     string
	DialAttempts int
	DialDelay    time.Duration
}

// AMQPPublisher publishes envelopes to a durable topic exchange. A fresh
// channel per publish keeps one poisoned channel from wedging the relay.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
}

const maxDialDelay = 60 * time.Second

// NewAMQPPublisher dials the broker with exponential backoff and declares
// the exchange. The context bounds the whole dial loop so startup can be
// cancelled.
func NewAMQPPublisher(ctx context.Context, cfg AMQPConfig) (*AMQPPublisher, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = "parley.events"
	}
	if cfg.DialAttempts <= 0 {
		cfg.DialAttempts = 5
	}
	if cfg.DialDelay <= 0 {
		cfg.DialDelay = time.Second
	}

	conn, err := dialWithRetry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	return &AMQPPublisher{conn: conn, exchange: cfg.Exchange}, nil
}

func dialWithRetry(ctx context.Context, cfg AMQPConfig) (*amqp091.Connection, error) {
	var lastErr error
	for i := 1; i <= cfg.DialAttempts; i++ {
		conn, err := amqp091.Dial(cfg.URL)
		if err == nil {
			if i > 1 {
				logging.Op().Info("broker connected", "attempt", i)
			}
			return conn, nil
		}
		lastErr = err

		sleep := cfg.DialDelay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		logging.Op().Warn("broker dial failed", "attempt", i, "sleep", sleep, "error", err)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("broker dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("connect to broker after %d attempts: %w", cfg.DialAttempts, lastErr)
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, env Envelope) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	var headers amqp091.Table
	if tc := observability.ExtractTraceContext(ctx); tc.TraceParent != "" {
		headers = amqp091.Table{"traceparent": tc.TraceParent}
		if tc.TraceState != "" {
			headers["tracestate"] = tc.TraceState
		}
	}

	err = ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Timestamp:     env.Meta.Time,
		Headers:       headers,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

// LogPublisher writes events to the operational log instead of a broker.
// It stands in when no broker is configured so the outbox still drains and
// single-node deployments see their events somewhere.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, routingKey string, env Envelope) error {
	logging.Op().Info("event published to log",
		"routing_key", routingKey,
		"event_id", env.Meta.ID,
		"correlation_id", env.Meta.CorrelationID,
	)
	return nil
}

func (LogPublisher) Close() error { return nil }
