package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/domain"
)

// Identity is an authenticated caller: the agent, the account it belongs
// to, and the tenant that account lives in. Every authorization decision
// downstream starts from these three ids.
type Identity struct {
	AgentID   string
	AccountID string
	TenantID  string
	Role      domain.Role
	// RealAdminID is set when this identity was minted by the external
	// superadmin elevation service. Such identities pass the same tenant
	// guard as everyone else; the field only feeds the audit trail.
	RealAdminID string
}

// Subject returns a stable identifier for logs and rate-limit keys.
func (id *Identity) Subject() string {
	if id.RealAdminID != "" {
		return "admin:" + id.RealAdminID
	}
	return "agent:" + id.AgentID
}

// Impersonating reports whether this identity acts on behalf of a
// superadmin rather than a real agent of the account.
func (id *Identity) Impersonating() bool {
	return id.RealAdminID != ""
}

// ActingAs builds the identity a superadmin operates under inside a
// customer account. The elevation mechanism that authorizes it lives
// outside this service. The synthetic agent id never matches an agents row,
// so an impersonator can manage resources but can never become an assignee.
func ActingAs(realAdminID, accountID, tenantID string) *Identity {
	return &Identity{
		AgentID:     "admin:" + realAdminID,
		AccountID:   accountID,
		TenantID:    tenantID,
		Role:        domain.BuiltinRoleOf(domain.RoleAdministrator),
		RealAdminID: realAdminID,
	}
}

// contextKey is used for storing Identity in context
type contextKey struct{}

// identityKey is the context key for Identity
var identityKey = contextKey{}

// WithIdentity adds an Identity to the context
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity retrieves the Identity from context
func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey).(*Identity); ok {
		return id
	}
	return nil
}

// Authenticator is the interface for authentication providers
type Authenticator interface {
	// Authenticate attempts to authenticate the request
	// Returns an Identity if successful, nil otherwise
	Authenticate(r *http.Request) *Identity
}

// Middleware creates an HTTP middleware that requires authentication.
// Missing, malformed, and expired credentials all produce the same 401.
func Middleware(authenticators []Authenticator, publicPaths []string) func(http.Handler) http.Handler {
	// Build a set of public paths for fast lookup
	publicSet := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		publicSet[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check if path is public
			if isPublicPath(r.URL.Path, publicSet) {
				next.ServeHTTP(w, r)
				return
			}

			// Try each authenticator in order
			for _, auth := range authenticators {
				if id := auth.Authenticate(r); id != nil {
					ctx := WithIdentity(r.Context(), id)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			// No authenticator succeeded
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="parley"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
		})
	}
}

// isPublicPath checks if the given path should skip authentication
func isPublicPath(path string, publicSet map[string]bool) bool {
	// Exact match
	if publicSet[path] {
		return true
	}

	// Check for prefix matches (paths ending with /*)
	for p := range publicSet {
		if strings.HasSuffix(p, "/*") {
			prefix := strings.TrimSuffix(p, "*")
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
	}

	return false
}
