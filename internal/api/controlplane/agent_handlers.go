package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/service"
)

// CreateAgent handles POST /agents
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	var req struct {
		Email       string      `json:"email"`
		DisplayName string      `json:"display_name"`
		Role        domain.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "invalid JSON"})
		return
	}

	agent, err := h.Directory.CreateAgent(r.Context(), caller, service.CreateAgentRequest{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

// GetAgent handles GET /agents/{id}
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	agent, err := h.Directory.GetAgent(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// ListAgents handles GET /agents
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	limit, offset := parseLimitOffset(r)
	agents, err := h.Directory.ListAgents(r.Context(), caller, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if agents == nil {
		agents = []*domain.Agent{}
	}

	returned := len(agents)
	writePaginatedList(w, limit, offset, returned, estimatePaginatedTotal(limit, offset, returned), agents)
}

// UpdateAgent handles PATCH /agents/{id}. Empty fields stay unchanged.
func (h *Handler) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	var req struct {
		DisplayName  string       `json:"display_name"`
		Role         *domain.Role `json:"role"`
		Availability string       `json:"availability"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "invalid JSON"})
		return
	}

	agent, err := h.Directory.UpdateAgent(r.Context(), caller, r.PathValue("id"), service.UpdateAgentRequest{
		DisplayName:  req.DisplayName,
		Role:         req.Role,
		Availability: req.Availability,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// DeactivateAgent handles DELETE /agents/{id}. Deactivation is soft: the
// row stays for the audit trail and the response returns its final state.
func (h *Handler) DeactivateAgent(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	agent, err := h.Directory.DeactivateAgent(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}
