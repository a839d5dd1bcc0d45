package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span with the given name and attributes
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartProducerSpan creates a producer span for outgoing bus messages.
func StartProducerSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindProducer),
	)
}

// SetSpanError marks the span as errored
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Common attribute keys for Parley spans
var (
	AttrAccountID      = attribute.Key("parley.account.id")
	AttrAgentID        = attribute.Key("parley.agent.id")
	AttrConversationID = attribute.Key("parley.conversation.id")
	AttrInboxID        = attribute.Key("parley.inbox.id")
	AttrAssignmentKind = attribute.Key("parley.assignment.kind")
	AttrRoutingKey     = attribute.Key("parley.routing_key")
	AttrOutboxID       = attribute.Key("parley.outbox.id")
)
