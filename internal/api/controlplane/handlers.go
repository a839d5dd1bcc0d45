package controlplane

import (
	"context"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/service"
)

// DirectoryService is the account administration surface the control plane
// exposes: inboxes, agents, teams, and custom roles.
type DirectoryService interface {
	CreateInbox(ctx context.Context, caller *auth.Identity, req service.CreateInboxRequest) (*domain.Inbox, error)
	GetInbox(ctx context.Context, caller *auth.Identity, id string) (*domain.Inbox, error)
	ListInboxes(ctx context.Context, caller *auth.Identity, limit, offset int) ([]*domain.Inbox, error)
	UpdateInbox(ctx context.Context, caller *auth.Identity, id string, req service.UpdateInboxRequest) (*domain.Inbox, error)
	ListInboxMembers(ctx context.Context, caller *auth.Identity, inboxID string) ([]*domain.MemberAgent, error)
	AddInboxMember(ctx context.Context, caller *auth.Identity, inboxID, agentID string) error
	RemoveInboxMember(ctx context.Context, caller *auth.Identity, inboxID, agentID string) error

	CreateAgent(ctx context.Context, caller *auth.Identity, req service.CreateAgentRequest) (*domain.Agent, error)
	GetAgent(ctx context.Context, caller *auth.Identity, id string) (*domain.Agent, error)
	ListAgents(ctx context.Context, caller *auth.Identity, limit, offset int) ([]*domain.Agent, error)
	UpdateAgent(ctx context.Context, caller *auth.Identity, id string, req service.UpdateAgentRequest) (*domain.Agent, error)
	DeactivateAgent(ctx context.Context, caller *auth.Identity, id string) (*domain.Agent, error)

	CreateTeam(ctx context.Context, caller *auth.Identity, req service.CreateTeamRequest) (*domain.Team, error)
	GetTeam(ctx context.Context, caller *auth.Identity, id string) (*domain.Team, error)
	ListTeams(ctx context.Context, caller *auth.Identity, limit, offset int) ([]*domain.Team, error)
	ListTeamMembers(ctx context.Context, caller *auth.Identity, teamID string) ([]*domain.MemberAgent, error)
	AddTeamMember(ctx context.Context, caller *auth.Identity, teamID, agentID string) error
	RemoveTeamMember(ctx context.Context, caller *auth.Identity, teamID, agentID string) error

	CreateCustomRole(ctx context.Context, caller *auth.Identity, req service.CreateCustomRoleRequest) (*domain.CustomRole, error)
	GetCustomRole(ctx context.Context, caller *auth.Identity, id string) (*domain.CustomRole, error)
	ListCustomRoles(ctx context.Context, caller *auth.Identity) ([]*domain.CustomRole, error)
}

// AuditLog reads the assignment audit trail.
type AuditLog interface {
	ListEvents(ctx context.Context, caller *auth.Identity, conversationID string, limit, offset int) ([]*domain.AssignmentEvent, error)
}

// Handler handles control plane HTTP requests (directory administration and
// the audit trail).
type Handler struct {
	Directory DirectoryService
	Audit     AuditLog
}

// RegisterRoutes registers all control plane routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Inboxes and memberships
	mux.HandleFunc("POST /inboxes", h.CreateInbox)
	mux.HandleFunc("GET /inboxes", h.ListInboxes)
	mux.HandleFunc("GET /inboxes/{id}", h.GetInbox)
	mux.HandleFunc("PATCH /inboxes/{id}", h.UpdateInbox)
	mux.HandleFunc("GET /inboxes/{id}/members", h.ListInboxMembers)
	mux.HandleFunc("POST /inboxes/{id}/members", h.AddInboxMember)
	mux.HandleFunc("DELETE /inboxes/{id}/members/{agentID}", h.RemoveInboxMember)

	// Agents
	mux.HandleFunc("POST /agents", h.CreateAgent)
	mux.HandleFunc("GET /agents", h.ListAgents)
	mux.HandleFunc("GET /agents/{id}", h.GetAgent)
	mux.HandleFunc("PATCH /agents/{id}", h.UpdateAgent)
	mux.HandleFunc("DELETE /agents/{id}", h.DeactivateAgent)

	// Teams
	mux.HandleFunc("POST /teams", h.CreateTeam)
	mux.HandleFunc("GET /teams", h.ListTeams)
	mux.HandleFunc("GET /teams/{id}", h.GetTeam)
	mux.HandleFunc("GET /teams/{id}/members", h.ListTeamMembers)
	mux.HandleFunc("POST /teams/{id}/members", h.AddTeamMember)
	mux.HandleFunc("DELETE /teams/{id}/members/{agentID}", h.RemoveTeamMember)

	// Custom roles
	mux.HandleFunc("POST /custom-roles", h.CreateCustomRole)
	mux.HandleFunc("GET /custom-roles", h.ListCustomRoles)
	mux.HandleFunc("GET /custom-roles/{id}", h.GetCustomRole)

	// Audit trail
	mux.HandleFunc("GET /assignment-events", h.ListAssignmentEvents)
}
