package dataplane

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/service"
)

// ConversationService is the conversation lifecycle surface the data plane
// exposes.
type ConversationService interface {
	Create(ctx context.Context, caller *auth.Identity, req service.CreateConversationRequest) (*domain.Conversation, error)
	Get(ctx context.Context, caller *auth.Identity, id string) (*domain.Conversation, error)
	List(ctx context.Context, caller *auth.Identity, req service.ListConversationsRequest) ([]*domain.Conversation, error)
}

// AssignmentService is the assignment engine surface the data plane exposes.
type AssignmentService interface {
	Pickup(ctx context.Context, caller *auth.Identity, conversationID string) (*domain.Conversation, error)
	Transfer(ctx context.Context, caller *auth.Identity, conversationID, targetAgentID string) (*domain.Conversation, string, error)
	Release(ctx context.Context, caller *auth.Identity, conversationID string) (*domain.Conversation, error)
	ListTransferableAgents(ctx context.Context, caller *auth.Identity, conversationID string) ([]*domain.MemberAgent, error)
}

// AvailabilityService lets agents manage their own presence.
type AvailabilityService interface {
	SetAvailability(ctx context.Context, caller *auth.Identity, availability string) (*domain.Agent, error)
}

// Pinger reports backend connectivity for health probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles data plane HTTP requests: the conversation flow agents
// live in all day, plus health probes and metrics.
type Handler struct {
	Conversations ConversationService
	Assignments   AssignmentService
	Availability  AvailabilityService
	DB            Pinger
	Cache         Pinger
}

// RegisterRoutes registers all data plane routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Conversations
	mux.HandleFunc("POST /conversations", h.CreateConversation)
	mux.HandleFunc("GET /conversations", h.ListConversations)
	mux.HandleFunc("GET /conversations/{id}", h.GetConversation)

	// Assignment actions
	mux.HandleFunc("POST /conversations/{id}/pickup", h.Pickup)
	mux.HandleFunc("POST /conversations/{id}/transfer", h.Transfer)
	mux.HandleFunc("POST /conversations/{id}/release", h.Release)
	mux.HandleFunc("GET /conversations/{id}/transferable-agents", h.ListTransferableAgents)

	// Agent presence
	mux.HandleFunc("PUT /agents/availability", h.SetAvailability)

	// Health probes
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", h.HealthLive)
	mux.HandleFunc("GET /health/ready", h.HealthReady)

	// Observability
	mux.Handle("GET /stats", metrics.Global().JSONHandler())
	mux.Handle("GET /metrics", metrics.PrometheusHandler())
}

// CreateConversation handles POST /conversations
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	var req struct {
		InboxID           string `json:"inbox_id"`
		ContactIdentifier string `json:"contact_identifier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "invalid JSON"})
		return
	}

	conv, err := h.Conversations.Create(r.Context(), caller, service.CreateConversationRequest{
		InboxID:           req.InboxID,
		ContactIdentifier: req.ContactIdentifier,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// GetConversation handles GET /conversations/{id}
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	conv, err := h.Conversations.Get(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ListConversations handles GET /conversations
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	limit, offset := parseLimitOffset(r)
	req := service.ListConversationsRequest{
		InboxID: r.URL.Query().Get("inbox_id"),
		Status:  r.URL.Query().Get("status"),
		Limit:   limit,
		Offset:  offset,
	}

	switch r.URL.Query().Get("assigned") {
	case "":
	case "true":
		v := true
		req.Assigned = &v
	case "false":
		v := false
		req.Assigned = &v
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "assigned must be true or false"})
		return
	}

	conversations, err := h.Conversations.List(r.Context(), caller, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if conversations == nil {
		conversations = []*domain.Conversation{}
	}

	returned := len(conversations)
	writePaginatedList(w, limit, offset, returned, estimatePaginatedTotal(limit, offset, returned), conversations)
}

// Pickup handles POST /conversations/{id}/pickup
func (h *Handler) Pickup(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	conv, err := h.Assignments.Pickup(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// transferResponse carries the non-blocking availability warning alongside
// the updated conversation.
type transferResponse struct {
	Conversation *domain.Conversation `json:"conversation"`
	Warning      string               `json:"warning,omitempty"`
}

// Transfer handles POST /conversations/{id}/transfer
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	var req struct {
		TargetAgentID string `json:"target_agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "invalid JSON"})
		return
	}

	conv, warning, err := h.Assignments.Transfer(r.Context(), caller, r.PathValue("id"), req.TargetAgentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{Conversation: conv, Warning: warning})
}

// Release handles POST /conversations/{id}/release
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	conv, err := h.Assignments.Release(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ListTransferableAgents handles GET /conversations/{id}/transferable-agents
func (h *Handler) ListTransferableAgents(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	candidates, err := h.Assignments.ListTransferableAgents(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if candidates == nil {
		candidates = []*domain.MemberAgent{}
	}
	writeJSON(w, http.StatusOK, candidates)
}

// SetAvailability handles PUT /agents/availability. It is self-service:
// callers change only their own presence, so no permission gate applies.
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	var req struct {
		Availability string `json:"availability"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "invalid JSON"})
		return
	}

	agent, err := h.Availability.SetAvailability(r.Context(), caller, req.Availability)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}
