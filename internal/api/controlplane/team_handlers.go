package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/service"
)

// CreateTeam handles POST /teams
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "invalid JSON"})
		return
	}

	team, err := h.Directory.CreateTeam(r.Context(), caller, service.CreateTeamRequest{Name: req.Name})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// GetTeam handles GET /teams/{id}
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	team, err := h.Directory.GetTeam(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// ListTeams handles GET /teams
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	limit, offset := parseLimitOffset(r)
	teams, err := h.Directory.ListTeams(r.Context(), caller, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if teams == nil {
		teams = []*domain.Team{}
	}

	returned := len(teams)
	writePaginatedList(w, limit, offset, returned, estimatePaginatedTotal(limit, offset, returned), teams)
}

// ListTeamMembers handles GET /teams/{id}/members
func (h *Handler) ListTeamMembers(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	members, err := h.Directory.ListTeamMembers(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if members == nil {
		members = []*domain.MemberAgent{}
	}
	writeJSON(w, http.StatusOK, members)
}

// AddTeamMember handles POST /teams/{id}/members
func (h *Handler) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	var req struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "invalid JSON"})
		return
	}

	if err := h.Directory.AddTeamMember(r.Context(), caller, r.PathValue("id"), req.AgentID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveTeamMember handles DELETE /teams/{id}/members/{agentID}
func (h *Handler) RemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	if err := h.Directory.RemoveTeamMember(r.Context(), caller, r.PathValue("id"), r.PathValue("agentID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
