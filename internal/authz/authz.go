// Package authz holds the checks every request must pass after
// authentication: the role permission gate and the account isolation
// guard. Handlers never compare account ids or permission sets inline;
// they go through here so the rules live in exactly one place.
package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/metrics"
)

// RoleStore resolves custom role records. Lookups are never cached: an
// edit to a custom role's permission set must bind on the next request.
type RoleStore interface {
	GetCustomRole(ctx context.Context, id string) (*domain.CustomRole, error)
}

// Authorizer answers permission questions for authenticated identities.
type Authorizer struct {
	store RoleStore
}

// New creates an Authorizer backed by the given role store.
func New(store RoleStore) *Authorizer {
	return &Authorizer{store: store}
}

// Permissions resolves the full permission set for the identity's role.
func (a *Authorizer) Permissions(ctx context.Context, id *auth.Identity) ([]domain.Permission, error) {
	return domain.ResolvePermissions(id.Role, a.lookup(ctx, id.AccountID))
}

// lookup returns a custom role resolver scoped to one account. A custom
// role belonging to a different account resolves as not found.
func (a *Authorizer) lookup(ctx context.Context, accountID string) domain.CustomRoleLookup {
	return func(roleID string) ([]domain.Permission, error) {
		role, err := a.store.GetCustomRole(ctx, roleID)
		if err != nil {
			return nil, err
		}
		if role.AccountID != accountID {
			return nil, fmt.Errorf("%w: custom role %s", domain.ErrNotFound, roleID)
		}
		return role.Permissions, nil
	}
}

// Can returns nil when the identity holds perm and ErrAccessDenied when it
// does not. An agent whose custom role record no longer exists holds no
// permissions at all.
func (a *Authorizer) Can(ctx context.Context, id *auth.Identity, perm domain.Permission) error {
	perms, err := a.Permissions(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		perms = nil
	}
	if !domain.HasPermission(perms, perm) {
		return fmt.Errorf("%w: %s", domain.ErrAccessDenied, perm)
	}
	return nil
}

// GuardAccount enforces the account boundary. Every code path that loads a
// resource by an id the client supplied must pass the loaded row's account
// through here before acting on it.
//
// A mismatch reports ErrNotFound, not ErrAccessDenied: the response must
// not reveal whether the id exists in another account. The attempt is
// still recorded at WARN for security review.
func GuardAccount(id *auth.Identity, targetAccountID, targetID, endpoint string) error {
	if id.AccountID == targetAccountID {
		return nil
	}
	logging.Op().Warn("cross-account access blocked",
		"caller_id", id.AgentID,
		"caller_account", id.AccountID,
		"target_id", targetID,
		"target_account", targetAccountID,
		"endpoint", endpoint,
	)
	metrics.RecordCrossAccountBlock()
	return fmt.Errorf("%w: %s", domain.ErrNotFound, targetID)
}

// routePermission maps an HTTP method + path pattern to a required permission.
type routePermission struct {
	method     string
	prefix     string
	permission domain.Permission
}

var routeTable = []routePermission{
	// Conversations
	{"POST", "/conversations", domain.PermConversationCreate},
	{"GET", "/conversations", domain.PermConversationRead},
	{"GET", "/conversations/", domain.PermConversationRead},

	// Inboxes
	{"GET", "/inboxes", domain.PermInboxRead},
	{"GET", "/inboxes/", domain.PermInboxRead},
	{"POST", "/inboxes", domain.PermInboxManage},
	{"PATCH", "/inboxes/", domain.PermInboxManage},
	{"POST", "/inboxes/", domain.PermInboxManage},   // membership add
	{"DELETE", "/inboxes/", domain.PermInboxManage}, // membership removal

	// Agents
	{"GET", "/agents", domain.PermAgentRead},
	{"GET", "/agents/", domain.PermAgentRead},
	{"POST", "/agents", domain.PermAgentManage},
	{"PATCH", "/agents/", domain.PermAgentManage},
	{"DELETE", "/agents/", domain.PermAgentManage},

	// Teams
	{"GET", "/teams", domain.PermTeamRead},
	{"GET", "/teams/", domain.PermTeamRead},
	{"POST", "/teams", domain.PermTeamManage},
	{"POST", "/teams/", domain.PermTeamManage},
	{"DELETE", "/teams/", domain.PermTeamManage},

	// Custom roles
	{"GET", "/custom-roles", domain.PermAgentRead},
	{"GET", "/custom-roles/", domain.PermAgentRead},
	{"POST", "/custom-roles", domain.PermAccountManage},

	// Audit trail and operational stats
	{"GET", "/assignment-events", domain.PermAuditRead},
	{"GET", "/stats", domain.PermAuditRead},
}

// resolvePermission determines the required permission for a request.
// The second return is false for self-service routes open to every
// authenticated agent.
func resolvePermission(method, path string) (domain.Permission, bool) {
	// Any agent may set their own availability.
	if method == http.MethodPut && path == "/agents/availability" {
		return "", false
	}

	// Conversation assignment actions
	if method == http.MethodPost && strings.HasPrefix(path, "/conversations/") {
		switch {
		case strings.HasSuffix(path, "/pickup"):
			return domain.PermConversationPickup, true
		case strings.HasSuffix(path, "/transfer"):
			return domain.PermConversationTransfer, true
		case strings.HasSuffix(path, "/release"):
			return domain.PermConversationRelease, true
		}
	}
	// Listing transfer candidates is part of the transfer flow.
	if method == http.MethodGet && strings.HasSuffix(path, "/transferable-agents") {
		return domain.PermConversationTransfer, true
	}

	for _, rp := range routeTable {
		if rp.method != method {
			continue
		}
		if strings.HasSuffix(rp.prefix, "/") {
			if strings.HasPrefix(path, rp.prefix) {
				return rp.permission, true
			}
		} else {
			if path == rp.prefix {
				return rp.permission, true
			}
		}
	}

	// Default: read for GET, account administration for everything else.
	if method == http.MethodGet || method == http.MethodHead {
		return domain.PermConversationRead, true
	}
	return domain.PermAccountManage, true
}

// Middleware returns an HTTP middleware that enforces route permissions.
func Middleware(authorizer *Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.GetIdentity(r.Context())
			if identity == nil {
				// No identity means auth middleware already passed (public path)
				next.ServeHTTP(w, r)
				return
			}

			perm, required := resolvePermission(r.Method, r.URL.Path)
			if !required {
				next.ServeHTTP(w, r)
				return
			}

			if err := authorizer.Can(r.Context(), identity, perm); err != nil {
				if !errors.Is(err, domain.ErrAccessDenied) {
					logging.Op().Error("authorization check failed",
						"subject", identity.Subject(),
						"error", err,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error":   "internal",
						"message": "authorization check failed",
					})
					return
				}
				logging.Op().Warn("authorization denied",
					"subject", identity.Subject(),
					"account_id", identity.AccountID,
					"permission", string(perm),
					"path", r.URL.Path,
					"method", r.Method,
				)
				metrics.RecordPermissionDenial()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "forbidden",
					"message": "insufficient permissions for this operation",
				})
				return
			}

			logging.Op().Debug("authorization granted",
				"subject", identity.Subject(),
				"permission", string(perm),
				"path", r.URL.Path,
				"method", r.Method,
			)
			next.ServeHTTP(w, r)
		})
	}
}
