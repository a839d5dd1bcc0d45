// Package metrics collects operational counters for the daemon. Prometheus
// collectors back the /metrics endpoint; a lightweight atomic snapshot backs
// the JSON stats endpoint and is always on, even when Prometheus is not
// initialized.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Assignment outcomes recorded by the service layer.
const (
	OutcomeOK              = "ok"
	OutcomeConflict        = "conflict"
	OutcomeDenied          = "denied"
	OutcomeNotFound        = "not_found"
	OutcomeTargetNotMember = "target_not_member"
	OutcomeError           = "error"
)

// Metrics collects daemon counters with atomic snapshots.
type Metrics struct {
	// Assignment engine
	Pickups          atomic.Int64
	Transfers        atomic.Int64
	Releases         atomic.Int64
	PickupConflicts  atomic.Int64
	AssignmentErrors atomic.Int64

	// Authorization
	CrossAccountBlocks atomic.Int64
	PermissionDenials  atomic.Int64

	// Session cache
	SessionCacheHits   atomic.Int64
	SessionCacheMisses atomic.Int64

	// Outbox
	OutboxPublished atomic.Int64
	OutboxFailed    atomic.Int64

	startTime time.Time
}

// Global metrics instance
var global = &Metrics{startTime: time.Now()}

// Global returns the global metrics instance
func Global() *Metrics {
	return global
}

// StartTime returns the time when the metrics system was initialized
func StartTime() time.Time {
	return global.startTime
}

// RecordAssignment records an assignment operation and its outcome.
// kind: pickup, transfer, release.
func RecordAssignment(kind, outcome string) {
	m := global
	if outcome == OutcomeOK {
		switch kind {
		case "pickup":
			m.Pickups.Add(1)
		case "transfer":
			m.Transfers.Add(1)
		case "release":
			m.Releases.Add(1)
		}
	} else if kind == "pickup" && outcome == OutcomeConflict {
		m.PickupConflicts.Add(1)
	} else if outcome == OutcomeError {
		m.AssignmentErrors.Add(1)
	}
	RecordPrometheusAssignment(kind, outcome)
}

// RecordCrossAccountBlock records a request stopped by the account guard.
func RecordCrossAccountBlock() {
	global.CrossAccountBlocks.Add(1)
	RecordAuthzDenial("cross_account")
}

// RecordPermissionDenial records a request stopped by the permission check.
func RecordPermissionDenial() {
	global.PermissionDenials.Add(1)
	RecordAuthzDenial("permission")
}

// RecordSessionCache records a session cache lookup result.
func RecordSessionCache(hit bool) {
	if hit {
		global.SessionCacheHits.Add(1)
	} else {
		global.SessionCacheMisses.Add(1)
	}
	RecordPrometheusSessionCache(hit)
}

// RecordOutboxEvent records an outbox relay outcome.
// result: published, retried, failed.
func RecordOutboxEvent(result string) {
	switch result {
	case "published":
		global.OutboxPublished.Add(1)
	case "failed":
		global.OutboxFailed.Add(1)
	}
	RecordPrometheusOutboxEvent(result)
}

// Snapshot returns a point-in-time snapshot of all counters.
func (m *Metrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"assignments": map[string]interface{}{
			"pickups":          m.Pickups.Load(),
			"transfers":        m.Transfers.Load(),
			"releases":         m.Releases.Load(),
			"pickup_conflicts": m.PickupConflicts.Load(),
			"errors":           m.AssignmentErrors.Load(),
		},
		"authz": map[string]interface{}{
			"cross_account_blocks": m.CrossAccountBlocks.Load(),
			"permission_denials":   m.PermissionDenials.Load(),
		},
		"session_cache": map[string]interface{}{
			"hits":   m.SessionCacheHits.Load(),
			"misses": m.SessionCacheMisses.Load(),
		},
		"outbox": map[string]interface{}{
			"published": m.OutboxPublished.Load(),
			"failed":    m.OutboxFailed.Load(),
		},
	}
}

// JSONHandler returns an HTTP handler that exposes metrics in JSON format
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Snapshot())
	})
}
