// Package api assembles the HTTP surface: the control plane (directory and
// account administration) and the data plane (conversation flow), wrapped in
// the shared middleware chain. Requests pass metrics, authentication, rate
// limiting, and the permission gate before any handler runs; handlers only
// parse, delegate to the service layer, and encode.
package api

import (
	"net/http"
	"time"

	"github.com/parleyhq/parley/internal/api/controlplane"
	"github.com/parleyhq/parley/internal/api/dataplane"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/authz"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/internal/ratelimit"
)

// PublicPaths are served without a session: health probes for orchestrators
// and the Prometheus scrape endpoint. Everything else requires a bearer
// token.
var PublicPaths = []string{"/health", "/health/*", "/metrics"}

// ServerConfig carries the wired dependencies for the HTTP server.
type ServerConfig struct {
	Conversations dataplane.ConversationService
	Assignments   dataplane.AssignmentService
	Availability  dataplane.AvailabilityService
	Directory     controlplane.DirectoryService
	Audit         controlplane.AuditLog

	Authenticators []auth.Authenticator
	Authorizer     *authz.Authorizer

	RateLimitBackend ratelimit.Backend
	RateLimitCfg     config.RateLimitConfig

	// DB and Cache back the readiness probe. Cache may be nil when the
	// deployment runs without one.
	DB    dataplane.Pinger
	Cache dataplane.Pinger
}

// NewHandler builds the full request pipeline. The order matters: metrics
// see every request including rejected ones, authentication runs before the
// rate limiter so buckets are keyed per identity, and the permission gate
// runs last so it always sees an identity.
func NewHandler(cfg ServerConfig) http.Handler {
	mux := http.NewServeMux()

	dpHandler := &dataplane.Handler{
		Conversations: cfg.Conversations,
		Assignments:   cfg.Assignments,
		Availability:  cfg.Availability,
		DB:            cfg.DB,
		Cache:         cfg.Cache,
	}
	dpHandler.RegisterRoutes(mux)

	cpHandler := &controlplane.Handler{
		Directory: cfg.Directory,
		Audit:     cfg.Audit,
	}
	cpHandler.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = observability.HTTPMiddleware(handler)

	if cfg.Authorizer != nil {
		handler = authz.Middleware(cfg.Authorizer)(handler)
	}

	if cfg.RateLimitCfg.Enabled && cfg.RateLimitBackend != nil {
		handler = ratelimit.Middleware(cfg.RateLimitBackend, cfg.RateLimitCfg, PublicPaths)(handler)
		logging.Op().Info("rate limiting enabled",
			"requests_per_second", cfg.RateLimitCfg.RequestsPerSecond,
			"burst", cfg.RateLimitCfg.Burst,
		)
	}

	if len(cfg.Authenticators) > 0 {
		handler = auth.Middleware(cfg.Authenticators, PublicPaths)(handler)
	}

	return metricsMiddleware(mux)(handler)
}

// StartHTTPServer creates the server and begins serving in a goroutine.
// Shutdown is the caller's responsibility.
func StartHTTPServer(addr string, cfg ServerConfig) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("HTTP server error", "error", err)
		}
	}()

	return server
}

// metricsMiddleware records every request against the route pattern rather
// than the raw path, keeping label cardinality bounded.
func metricsMiddleware(mux *http.ServeMux) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			metrics.IncActiveRequests()
			defer metrics.DecActiveRequests()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := "unmatched"
			if _, pattern := mux.Handler(r); pattern != "" {
				route = pattern
			}
			metrics.RecordPrometheusHTTPRequest(r.Method, route, rec.status, float64(time.Since(start).Milliseconds()))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
