package logging

import (
	"log/slog"
	"os"
)

// InitStructured reconfigures the operational logger from config. Format
// "json" is the default and what log pipelines ingest; "text" reads better
// on a dev terminal. Level is one of "debug", "info", "warn", "error".
func InitStructured(format, level string) {
	SetLevelFromString(level)

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	opLogger.Store(slog.New(handler))
}

// OpWithTrace returns the operational logger carrying trace correlation
// fields. Assignment decisions log through this so a pickup or transfer
// line can be joined to its span; with tracing disabled the ids are empty
// and the plain logger comes back.
func OpWithTrace(traceID, spanID string) *slog.Logger {
	l := opLogger.Load()
	if traceID == "" {
		return l
	}
	args := []any{"trace_id", traceID}
	if spanID != "" {
		args = append(args, "span_id", spanID)
	}
	return l.With(args...)
}
