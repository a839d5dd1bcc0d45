package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/service"
)

// stubDirectory scripts only the methods a test exercises; everything else
// errors so route mixups fail loudly.
type stubDirectory struct {
	createInboxFn      func(ctx context.Context, caller *auth.Identity, req service.CreateInboxRequest) (*domain.Inbox, error)
	getInboxFn         func(ctx context.Context, caller *auth.Identity, id string) (*domain.Inbox, error)
	listInboxesFn      func(ctx context.Context, caller *auth.Identity, limit, offset int) ([]*domain.Inbox, error)
	updateInboxFn      func(ctx context.Context, caller *auth.Identity, id string, req service.UpdateInboxRequest) (*domain.Inbox, error)
	listInboxMembersFn func(ctx context.Context, caller *auth.Identity, inboxID string) ([]*domain.MemberAgent, error)
	addInboxMemberFn   func(ctx context.Context, caller *auth.Identity, inboxID, agentID string) error
	removeInboxMemFn   func(ctx context.Context, caller *auth.Identity, inboxID, agentID string) error

	createAgentFn     func(ctx context.Context, caller *auth.Identity, req service.CreateAgentRequest) (*domain.Agent, error)
	getAgentFn        func(ctx context.Context, caller *auth.Identity, id string) (*domain.Agent, error)
	listAgentsFn      func(ctx context.Context, caller *auth.Identity, limit, offset int) ([]*domain.Agent, error)
	updateAgentFn     func(ctx context.Context, caller *auth.Identity, id string, req service.UpdateAgentRequest) (*domain.Agent, error)
	deactivateAgentFn func(ctx context.Context, caller *auth.Identity, id string) (*domain.Agent, error)

	createTeamFn       func(ctx context.Context, caller *auth.Identity, req service.CreateTeamRequest) (*domain.Team, error)
	getTeamFn          func(ctx context.Context, caller *auth.Identity, id string) (*domain.Team, error)
	listTeamsFn        func(ctx context.Context, caller *auth.Identity, limit, offset int) ([]*domain.Team, error)
	listTeamMembersFn  func(ctx context.Context, caller *auth.Identity, teamID string) ([]*domain.MemberAgent, error)
	addTeamMemberFn    func(ctx context.Context, caller *auth.Identity, teamID, agentID string) error
	removeTeamMemberFn func(ctx context.Context, caller *auth.Identity, teamID, agentID string) error

	createCustomRoleFn func(ctx context.Context, caller *auth.Identity, req service.CreateCustomRoleRequest) (*domain.CustomRole, error)
	getCustomRoleFn    func(ctx context.Context, caller *auth.Identity, id string) (*domain.CustomRole, error)
	listCustomRolesFn  func(ctx context.Context, caller *auth.Identity) ([]*domain.CustomRole, error)
}

var errUnexpectedCall = errors.New("unexpected directory call")

func (s *stubDirectory) CreateInbox(ctx context.Context, caller *auth.Identity, req service.CreateInboxRequest) (*domain.Inbox, error) {
	if s.createInboxFn == nil {
		return nil, errUnexpectedCall
	}
	return s.createInboxFn(ctx, caller, req)
}

func (s *stubDirectory) GetInbox(ctx context.Context, caller *auth.Identity, id string) (*domain.Inbox, error) {
	if s.getInboxFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getInboxFn(ctx, caller, id)
}

func (s *stubDirectory) ListInboxes(ctx context.Context, caller *auth.Identity, limit, offset int) ([]*domain.Inbox, error) {
	if s.listInboxesFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listInboxesFn(ctx, caller, limit, offset)
}

func (s *stubDirectory) UpdateInbox(ctx context.Context, caller *auth.Identity, id string, req service.UpdateInboxRequest) (*domain.Inbox, error) {
	if s.updateInboxFn == nil {
		return nil, errUnexpectedCall
	}
	return s.updateInboxFn(ctx, caller, id, req)
}

func (s *stubDirectory) ListInboxMembers(ctx context.Context, caller *auth.Identity, inboxID string) ([]*domain.MemberAgent, error) {
	if s.listInboxMembersFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listInboxMembersFn(ctx, caller, inboxID)
}

func (s *stubDirectory) AddInboxMember(ctx context.Context, caller *auth.Identity, inboxID, agentID string) error {
	if s.addInboxMemberFn == nil {
		return errUnexpectedCall
	}
	return s.addInboxMemberFn(ctx, caller, inboxID, agentID)
}

func (s *stubDirectory) RemoveInboxMember(ctx context.Context, caller *auth.Identity, inboxID, agentID string) error {
	if s.removeInboxMemFn == nil {
		return errUnexpectedCall
	}
	return s.removeInboxMemFn(ctx, caller, inboxID, agentID)
}

func (s *stubDirectory) CreateAgent(ctx context.Context, caller *auth.Identity, req service.CreateAgentRequest) (*domain.Agent, error) {
	if s.createAgentFn == nil {
		return nil, errUnexpectedCall
	}
	return s.createAgentFn(ctx, caller, req)
}

func (s *stubDirectory) GetAgent(ctx context.Context, caller *auth.Identity, id string) (*domain.Agent, error) {
	if s.getAgentFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getAgentFn(ctx, caller, id)
}

func (s *stubDirectory) ListAgents(ctx context.Context, caller *auth.Identity, limit, offset int) ([]*domain.Agent, error) {
	if s.listAgentsFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listAgentsFn(ctx, caller, limit, offset)
}

func (s *stubDirectory) UpdateAgent(ctx context.Context, caller *auth.Identity, id string, req service.UpdateAgentRequest) (*domain.Agent, error) {
	if s.updateAgentFn == nil {
		return nil, errUnexpectedCall
	}
	return s.updateAgentFn(ctx, caller, id, req)
}

func (s *stubDirectory) DeactivateAgent(ctx context.Context, caller *auth.Identity, id string) (*domain.Agent, error) {
	if s.deactivateAgentFn == nil {
		return nil, errUnexpectedCall
	}
	return s.deactivateAgentFn(ctx, caller, id)
}

func (s *stubDirectory) CreateTeam(ctx context.Context, caller *auth.Identity, req service.CreateTeamRequest) (*domain.Team, error) {
	if s.createTeamFn == nil {
		return nil, errUnexpectedCall
	}
	return s.createTeamFn(ctx, caller, req)
}

func (s *stubDirectory) GetTeam(ctx context.Context, caller *auth.Identity, id string) (*domain.Team, error) {
	if s.getTeamFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getTeamFn(ctx, caller, id)
}

func (s *stubDirectory) ListTeams(ctx context.Context, caller *auth.Identity, limit, offset int) ([]*domain.Team, error) {
	if s.listTeamsFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listTeamsFn(ctx, caller, limit, offset)
}

func (s *stubDirectory) ListTeamMembers(ctx context.Context, caller *auth.Identity, teamID string) ([]*domain.MemberAgent, error) {
	if s.listTeamMembersFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listTeamMembersFn(ctx, caller, teamID)
}

func (s *stubDirectory) AddTeamMember(ctx context.Context, caller *auth.Identity, teamID, agentID string) error {
	if s.addTeamMemberFn == nil {
		return errUnexpectedCall
	}
	return s.addTeamMemberFn(ctx, caller, teamID, agentID)
}

func (s *stubDirectory) RemoveTeamMember(ctx context.Context, caller *auth.Identity, teamID, agentID string) error {
	if s.removeTeamMemberFn == nil {
		return errUnexpectedCall
	}
	return s.removeTeamMemberFn(ctx, caller, teamID, agentID)
}

func (s *stubDirectory) CreateCustomRole(ctx context.Context, caller *auth.Identity, req service.CreateCustomRoleRequest) (*domain.CustomRole, error) {
	if s.createCustomRoleFn == nil {
		return nil, errUnexpectedCall
	}
	return s.createCustomRoleFn(ctx, caller, req)
}

func (s *stubDirectory) GetCustomRole(ctx context.Context, caller *auth.Identity, id string) (*domain.CustomRole, error) {
	if s.getCustomRoleFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getCustomRoleFn(ctx, caller, id)
}

func (s *stubDirectory) ListCustomRoles(ctx context.Context, caller *auth.Identity) ([]*domain.CustomRole, error) {
	if s.listCustomRolesFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listCustomRolesFn(ctx, caller)
}

type stubAudit struct {
	listFn func(ctx context.Context, caller *auth.Identity, conversationID string, limit, offset int) ([]*domain.AssignmentEvent, error)
}

func (s *stubAudit) ListEvents(ctx context.Context, caller *auth.Identity, conversationID string, limit, offset int) ([]*domain.AssignmentEvent, error) {
	if s.listFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listFn(ctx, caller, conversationID, limit, offset)
}

func newTestMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func adminIdentity() *auth.Identity {
	return &auth.Identity{
		AgentID:   "agent-admin",
		AccountID: "acct-1",
		Role:      domain.Role{Builtin: domain.RoleAdministrator},
	}
}

func authedRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(auth.WithIdentity(req.Context(), adminIdentity()))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateInboxReturns201(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			createInboxFn: func(_ context.Context, caller *auth.Identity, req service.CreateInboxRequest) (*domain.Inbox, error) {
				if req.Name != "Support" || req.ChannelType != "email" {
					t.Fatalf("unexpected request: %+v", req)
				}
				return &domain.Inbox{ID: "inbox-1", AccountID: caller.AccountID, Name: req.Name}, nil
			},
		},
	})

	body := strings.NewReader(`{"name":"Support","channel_type":"email"}`)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/inboxes", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var inbox domain.Inbox
	decodeBody(t, rr, &inbox)
	if inbox.ID != "inbox-1" {
		t.Fatalf("unexpected inbox: %+v", inbox)
	}
}

func TestCreateInboxQuotaExceededIs403(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			createInboxFn: func(_ context.Context, _ *auth.Identity, _ service.CreateInboxRequest) (*domain.Inbox, error) {
				return nil, &domain.QuotaExceededError{Resource: "inboxes", Limit: 5, Current: 5}
			},
		},
	})

	body := strings.NewReader(`{"name":"One Too Many","channel_type":"email"}`)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/inboxes", body))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
	var resp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	decodeBody(t, rr, &resp)
	if resp.Error != "quota_exceeded" {
		t.Fatalf("expected error code quota_exceeded, got %q", resp.Error)
	}
	if !strings.Contains(resp.Message, "limit 5") {
		t.Fatalf("message should carry the limit: %q", resp.Message)
	}
}

func TestGetInboxCrossAccountLooksLikeMissing(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			getInboxFn: func(_ context.Context, _ *auth.Identity, id string) (*domain.Inbox, error) {
				return nil, fmt.Errorf("%w: inbox %s", domain.ErrNotFound, id)
			},
		},
	})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/inboxes/other-tenants-inbox", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestUpdateInboxArchives(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			updateInboxFn: func(_ context.Context, _ *auth.Identity, id string, req service.UpdateInboxRequest) (*domain.Inbox, error) {
				if id != "inbox-1" || req.Status != "archived" {
					t.Fatalf("unexpected update: id=%s req=%+v", id, req)
				}
				return &domain.Inbox{ID: id, Status: domain.InboxArchived}, nil
			},
		},
	})

	body := strings.NewReader(`{"status":"archived"}`)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPatch, "/inboxes/inbox-1", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAddInboxMemberReturns204(t *testing.T) {
	var gotInbox, gotAgent string
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			addInboxMemberFn: func(_ context.Context, _ *auth.Identity, inboxID, agentID string) error {
				gotInbox, gotAgent = inboxID, agentID
				return nil
			},
		},
	})

	body := strings.NewReader(`{"agent_id":"agent-2"}`)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/inboxes/inbox-1/members", body))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotInbox != "inbox-1" || gotAgent != "agent-2" {
		t.Fatalf("unexpected membership: inbox=%s agent=%s", gotInbox, gotAgent)
	}
}

func TestRemoveInboxMemberReturns204(t *testing.T) {
	var gotAgent string
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			removeInboxMemFn: func(_ context.Context, _ *auth.Identity, _, agentID string) error {
				gotAgent = agentID
				return nil
			},
		},
	})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodDelete, "/inboxes/inbox-1/members/agent-2", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if gotAgent != "agent-2" {
		t.Fatalf("expected agent-2 from path, got %q", gotAgent)
	}
}

func TestCreateAgentDecodesRole(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			createAgentFn: func(_ context.Context, _ *auth.Identity, req service.CreateAgentRequest) (*domain.Agent, error) {
				if req.Role.Builtin != domain.RoleAgent {
					t.Fatalf("unexpected role: %+v", req.Role)
				}
				return &domain.Agent{ID: "agent-9", Email: req.Email, Role: req.Role}, nil
			},
		},
	})

	body := strings.NewReader(`{"email":"ada@example.com","display_name":"Ada","role":{"builtin":"agent"}}`)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/agents", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateAgentDuplicateEmailIs409(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			createAgentFn: func(_ context.Context, _ *auth.Identity, req service.CreateAgentRequest) (*domain.Agent, error) {
				return nil, fmt.Errorf("%w: agent email %s", domain.ErrDuplicate, req.Email)
			},
		},
	})

	body := strings.NewReader(`{"email":"ada@example.com","display_name":"Ada","role":{"builtin":"agent"}}`)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/agents", body))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rr, &resp)
	if resp.Error != "duplicate" {
		t.Fatalf("expected error code duplicate, got %q", resp.Error)
	}
}

func TestUpdateAgentOmittedRoleStaysNil(t *testing.T) {
	var got service.UpdateAgentRequest
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			updateAgentFn: func(_ context.Context, _ *auth.Identity, _ string, req service.UpdateAgentRequest) (*domain.Agent, error) {
				got = req
				return &domain.Agent{ID: "agent-2"}, nil
			},
		},
	})

	body := strings.NewReader(`{"display_name":"New Name"}`)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPatch, "/agents/agent-2", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got.DisplayName != "New Name" {
		t.Fatalf("unexpected display name: %q", got.DisplayName)
	}
	if got.Role != nil {
		t.Fatalf("omitted role should stay nil, got %+v", got.Role)
	}
}

func TestDeactivateAgentReturnsFinalState(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			deactivateAgentFn: func(_ context.Context, _ *auth.Identity, id string) (*domain.Agent, error) {
				return &domain.Agent{ID: id, Status: domain.AgentInactive}, nil
			},
		},
	})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodDelete, "/agents/agent-2", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var agent domain.Agent
	decodeBody(t, rr, &agent)
	if agent.Status != domain.AgentInactive {
		t.Fatalf("expected inactive status, got %q", agent.Status)
	}
}

func TestListAgentsPaginates(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			listAgentsFn: func(_ context.Context, _ *auth.Identity, limit, offset int) ([]*domain.Agent, error) {
				if limit != 1 || offset != 0 {
					t.Fatalf("unexpected window: limit=%d offset=%d", limit, offset)
				}
				return []*domain.Agent{{ID: "agent-1"}}, nil
			},
		},
	})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/agents?limit=1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp struct {
		Items      []*domain.Agent `json:"items"`
		Pagination struct {
			HasMore bool `json:"has_more"`
		} `json:"pagination"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	if !resp.Pagination.HasMore {
		t.Fatal("full window should report has_more")
	}
}

func TestAddTeamMemberReturns204(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			addTeamMemberFn: func(_ context.Context, _ *auth.Identity, teamID, agentID string) error {
				if teamID != "team-1" || agentID != "agent-2" {
					t.Fatalf("unexpected membership: team=%s agent=%s", teamID, agentID)
				}
				return nil
			},
		},
	})

	body := strings.NewReader(`{"agent_id":"agent-2"}`)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/teams/team-1/members", body))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestListTeamMembersEmptyIsArrayNotNull(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			listTeamMembersFn: func(_ context.Context, _ *auth.Identity, _ string) ([]*domain.MemberAgent, error) {
				return nil, nil
			},
		},
	})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/teams/team-1/members", nil))

	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
}

func TestCreateCustomRoleReturns201(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			createCustomRoleFn: func(_ context.Context, _ *auth.Identity, req service.CreateCustomRoleRequest) (*domain.CustomRole, error) {
				if req.Name != "triage" || len(req.Permissions) != 2 {
					t.Fatalf("unexpected request: %+v", req)
				}
				return &domain.CustomRole{ID: "role-1", Name: req.Name}, nil
			},
		},
	})

	body := strings.NewReader(`{"name":"triage","permissions":["conversation.read","conversation.pickup"]}`)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/custom-roles", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateCustomRoleUnknownPermissionIs400(t *testing.T) {
	mux := newTestMux(&Handler{
		Directory: &stubDirectory{
			createCustomRoleFn: func(_ context.Context, _ *auth.Identity, req service.CreateCustomRoleRequest) (*domain.CustomRole, error) {
				return nil, fmt.Errorf("%w: unknown permission %q", domain.ErrInvalidArgument, req.Permissions[0])
			},
		},
	})

	body := strings.NewReader(`{"name":"triage","permissions":["conversation.frobnicate"]}`)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/custom-roles", body))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestListAssignmentEventsFiltersByConversation(t *testing.T) {
	mux := newTestMux(&Handler{
		Audit: &stubAudit{
			listFn: func(_ context.Context, _ *auth.Identity, conversationID string, limit, offset int) ([]*domain.AssignmentEvent, error) {
				if conversationID != "conv-1" {
					t.Fatalf("unexpected conversation filter %q", conversationID)
				}
				return []*domain.AssignmentEvent{
					{ID: "ev-1", ConversationID: conversationID, Kind: domain.AssignmentPickup},
				}, nil
			},
		},
	})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/assignment-events?conversation_id=conv-1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Items []*domain.AssignmentEvent `json:"items"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Items) != 1 || resp.Items[0].Kind != domain.AssignmentPickup {
		t.Fatalf("unexpected events: %+v", resp.Items)
	}
}

func TestListAssignmentEventsAccountWide(t *testing.T) {
	var gotConversationID string
	mux := newTestMux(&Handler{
		Audit: &stubAudit{
			listFn: func(_ context.Context, _ *auth.Identity, conversationID string, _, _ int) ([]*domain.AssignmentEvent, error) {
				gotConversationID = conversationID
				return nil, nil
			},
		},
	})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/assignment-events", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotConversationID != "" {
		t.Fatalf("expected empty conversation filter, got %q", gotConversationID)
	}
	if !strings.Contains(rr.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", rr.Body.String())
	}
}

func TestDirectoryRequestsWithoutIdentityAre401(t *testing.T) {
	mux := newTestMux(&Handler{Directory: &stubDirectory{}})

	req := httptest.NewRequest(http.MethodGet, "/inboxes", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}
