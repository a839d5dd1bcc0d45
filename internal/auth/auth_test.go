package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parleyhq/parley/internal/domain"
)

type stubAuthenticator struct {
	identity *Identity
}

func (s *stubAuthenticator) Authenticate(*http.Request) *Identity {
	return s.identity
}

func TestMiddlewareRejectsUnauthenticated(t *testing.T) {
	mw := Middleware([]Authenticator{&stubAuthenticator{}}, nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run without an identity")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.Contains(got, `Bearer realm="parley"`) {
		t.Fatalf("unexpected WWW-Authenticate header: %q", got)
	}
	if !strings.Contains(rec.Body.String(), `"error":"unauthorized"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestMiddlewarePublicPaths(t *testing.T) {
	mw := Middleware([]Authenticator{&stubAuthenticator{}}, []string{"/health", "/health/*", "/metrics"})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/health/ready", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/conversations", http.StatusUnauthorized},
		{"/healthcheck", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, rec.Code)
		}
	}
}

func TestMiddlewarePutsIdentityInContext(t *testing.T) {
	want := &Identity{
		AgentID:   "agent-1",
		AccountID: "acct-1",
		TenantID:  "tenant-1",
		Role:      domain.BuiltinRoleOf(domain.RoleAgent),
	}
	mw := Middleware([]Authenticator{
		&stubAuthenticator{},
		&stubAuthenticator{identity: want},
	}, nil)

	var got *Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got != want {
		t.Fatalf("expected identity from second authenticator, got %+v", got)
	}
}

func TestGetIdentityWithoutValue(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetIdentity(r.Context()); id != nil {
		t.Fatalf("expected nil identity, got %+v", id)
	}
}

func TestActingAsIdentity(t *testing.T) {
	id := ActingAs("root-7", "acct-1", "tenant-1")

	if !id.Impersonating() {
		t.Fatal("expected impersonation identity")
	}
	if id.AgentID != "admin:root-7" {
		t.Fatalf("unexpected synthetic agent id: %s", id.AgentID)
	}
	if id.Subject() != "admin:root-7" {
		t.Fatalf("unexpected subject: %s", id.Subject())
	}
	if id.AccountID != "acct-1" || id.TenantID != "tenant-1" {
		t.Fatalf("unexpected scope: %+v", id)
	}
	if !id.Role.IsAccountManager() {
		t.Fatal("impersonation identity must carry manager role")
	}
}

func TestIdentitySubject(t *testing.T) {
	id := &Identity{AgentID: "agent-9"}
	if id.Subject() != "agent:agent-9" {
		t.Fatalf("unexpected subject: %s", id.Subject())
	}
}
