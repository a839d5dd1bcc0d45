package authz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
)

type stubRoleStore struct {
	roles map[string]*domain.CustomRole
	err   error
}

func (s *stubRoleStore) GetCustomRole(_ context.Context, id string) (*domain.CustomRole, error) {
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.roles[id]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound
}

func identityWithRole(role domain.Role) *auth.Identity {
	return &auth.Identity{
		AgentID:   "agent-1",
		AccountID: "acct-1",
		TenantID:  "tenant-1",
		Role:      role,
	}
}

func TestCanBuiltinRoles(t *testing.T) {
	az := New(&stubRoleStore{})

	tests := []struct {
		name    string
		role    domain.BuiltinRole
		perm    domain.Permission
		wantErr bool
	}{
		{"owner manages account", domain.RoleOwner, domain.PermAccountManage, false},
		{"administrator cannot manage account", domain.RoleAdministrator, domain.PermAccountManage, true},
		{"administrator manages inboxes", domain.RoleAdministrator, domain.PermInboxManage, false},
		{"agent picks up conversations", domain.RoleAgent, domain.PermConversationPickup, false},
		{"agent cannot manage agents", domain.RoleAgent, domain.PermAgentManage, true},
		{"viewer reads conversations", domain.RoleViewer, domain.PermConversationRead, false},
		{"viewer cannot pick up", domain.RoleViewer, domain.PermConversationPickup, true},
		{"viewer cannot read audit trail", domain.RoleViewer, domain.PermAuditRead, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := identityWithRole(domain.BuiltinRoleOf(tt.role))
			err := az.Can(context.Background(), id, tt.perm)
			if (err != nil) != tt.wantErr {
				t.Errorf("Can() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrAccessDenied) {
				t.Errorf("expected ErrAccessDenied, got %v", err)
			}
		})
	}
}

func TestCanCustomRole(t *testing.T) {
	store := &stubRoleStore{
		roles: map[string]*domain.CustomRole{
			"role-triage": {
				ID:          "role-triage",
				AccountID:   "acct-1",
				Name:        "triage",
				Permissions: []domain.Permission{domain.PermConversationRead, domain.PermConversationPickup},
			},
			"role-foreign": {
				ID:          "role-foreign",
				AccountID:   "acct-2",
				Name:        "foreign",
				Permissions: []domain.Permission{domain.PermAccountManage},
			},
		},
	}
	az := New(store)

	id := identityWithRole(domain.CustomRoleOf("role-triage"))
	if err := az.Can(context.Background(), id, domain.PermConversationPickup); err != nil {
		t.Fatalf("expected pickup allowed for custom role, got %v", err)
	}
	if err := az.Can(context.Background(), id, domain.PermConversationTransfer); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected transfer denied for custom role, got %v", err)
	}

	// A custom role from another account must grant nothing.
	foreign := identityWithRole(domain.CustomRoleOf("role-foreign"))
	if err := az.Can(context.Background(), foreign, domain.PermAccountManage); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected cross-account custom role denied, got %v", err)
	}

	// A dangling custom role reference must grant nothing.
	dangling := identityWithRole(domain.CustomRoleOf("role-gone"))
	if err := az.Can(context.Background(), dangling, domain.PermConversationRead); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected dangling custom role denied, got %v", err)
	}
}

func TestCanStoreFailure(t *testing.T) {
	az := New(&stubRoleStore{err: errors.New("connection refused")})
	id := identityWithRole(domain.CustomRoleOf("role-any"))

	err := az.Can(context.Background(), id, domain.PermConversationRead)
	if err == nil {
		t.Fatal("expected error when role store is unavailable")
	}
	if errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("store failure must not masquerade as a denial: %v", err)
	}
}

func TestGuardAccount(t *testing.T) {
	id := identityWithRole(domain.BuiltinRoleOf(domain.RoleAgent))

	if err := GuardAccount(id, "acct-1", "conv-1", "POST /conversations/{id}/pickup"); err != nil {
		t.Fatalf("same-account access must pass, got %v", err)
	}

	err := GuardAccount(id, "acct-2", "conv-2", "POST /conversations/{id}/pickup")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-account access must report not found, got %v", err)
	}
}

func TestResolvePermission(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		want     domain.Permission
		required bool
	}{
		{"POST", "/conversations/c1/pickup", domain.PermConversationPickup, true},
		{"POST", "/conversations/c1/transfer", domain.PermConversationTransfer, true},
		{"POST", "/conversations/c1/release", domain.PermConversationRelease, true},
		{"GET", "/conversations/c1/transferable-agents", domain.PermConversationTransfer, true},
		{"GET", "/conversations/c1", domain.PermConversationRead, true},
		{"GET", "/conversations", domain.PermConversationRead, true},
		{"POST", "/conversations", domain.PermConversationCreate, true},
		{"PUT", "/agents/availability", "", false},
		{"POST", "/inboxes", domain.PermInboxManage, true},
		{"PATCH", "/inboxes/i1", domain.PermInboxManage, true},
		{"POST", "/inboxes/i1/members", domain.PermInboxManage, true},
		{"DELETE", "/inboxes/i1/members/a1", domain.PermInboxManage, true},
		{"GET", "/inboxes", domain.PermInboxRead, true},
		{"POST", "/agents", domain.PermAgentManage, true},
		{"PATCH", "/agents/a1", domain.PermAgentManage, true},
		{"DELETE", "/agents/a1", domain.PermAgentManage, true},
		{"GET", "/teams", domain.PermTeamRead, true},
		{"POST", "/teams/t1/members", domain.PermTeamManage, true},
		{"POST", "/custom-roles", domain.PermAccountManage, true},
		{"GET", "/assignment-events", domain.PermAuditRead, true},
		{"PATCH", "/unknown", domain.PermAccountManage, true},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got, required := resolvePermission(tt.method, tt.path)
			if got != tt.want || required != tt.required {
				t.Errorf("resolvePermission(%q, %q) = (%q, %v), want (%q, %v)",
					tt.method, tt.path, got, required, tt.want, tt.required)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	az := New(&stubRoleStore{})
	handler := Middleware(az)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		method   string
		path     string
		identity *auth.Identity
		want     int
	}{
		{
			name:   "public path without identity passes",
			method: "GET", path: "/health",
			want: http.StatusOK,
		},
		{
			name:   "viewer denied inbox creation",
			method: "POST", path: "/inboxes",
			identity: identityWithRole(domain.BuiltinRoleOf(domain.RoleViewer)),
			want:     http.StatusForbidden,
		},
		{
			name:   "administrator creates inbox",
			method: "POST", path: "/inboxes",
			identity: identityWithRole(domain.BuiltinRoleOf(domain.RoleAdministrator)),
			want:     http.StatusOK,
		},
		{
			name:   "viewer sets own availability",
			method: "PUT", path: "/agents/availability",
			identity: identityWithRole(domain.BuiltinRoleOf(domain.RoleViewer)),
			want:     http.StatusOK,
		},
		{
			name:   "agent picks up",
			method: "POST", path: "/conversations/c1/pickup",
			identity: identityWithRole(domain.BuiltinRoleOf(domain.RoleAgent)),
			want:     http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.identity != nil {
				req = req.WithContext(auth.WithIdentity(req.Context(), tt.identity))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, rec.Code)
			}
			if tt.want == http.StatusForbidden && !strings.Contains(rec.Body.String(), `"error":"forbidden"`) {
				t.Errorf("unexpected body: %s", rec.Body.String())
			}
		})
	}
}
