package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/service"
)

// CreateInbox handles POST /inboxes
func (h *Handler) CreateInbox(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	var req struct {
		Name        string `json:"name"`
		ChannelType string `json:"channel_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "invalid JSON"})
		return
	}

	inbox, err := h.Directory.CreateInbox(r.Context(), caller, service.CreateInboxRequest{
		Name:        req.Name,
		ChannelType: req.ChannelType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inbox)
}

// GetInbox handles GET /inboxes/{id}
func (h *Handler) GetInbox(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	inbox, err := h.Directory.GetInbox(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inbox)
}

// ListInboxes handles GET /inboxes
func (h *Handler) ListInboxes(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	limit, offset := parseLimitOffset(r)
	inboxes, err := h.Directory.ListInboxes(r.Context(), caller, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if inboxes == nil {
		inboxes = []*domain.Inbox{}
	}

	returned := len(inboxes)
	writePaginatedList(w, limit, offset, returned, estimatePaginatedTotal(limit, offset, returned), inboxes)
}

// UpdateInbox handles PATCH /inboxes/{id}. Empty fields stay unchanged.
func (h *Handler) UpdateInbox(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	var req struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "invalid JSON"})
		return
	}

	inbox, err := h.Directory.UpdateInbox(r.Context(), caller, r.PathValue("id"), service.UpdateInboxRequest{
		Name:   req.Name,
		Status: req.Status,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inbox)
}

// ListInboxMembers handles GET /inboxes/{id}/members
func (h *Handler) ListInboxMembers(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	members, err := h.Directory.ListInboxMembers(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if members == nil {
		members = []*domain.MemberAgent{}
	}
	writeJSON(w, http.StatusOK, members)
}

// AddInboxMember handles POST /inboxes/{id}/members
func (h *Handler) AddInboxMember(w http.ResponseWriter, r *http.Request) {
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

	if err := h.Directory.AddInboxMember(r.Context(), caller, r.PathValue("id"), req.AgentID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveInboxMember handles DELETE /inboxes/{id}/members/{agentID}
func (h *Handler) RemoveInboxMember(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	if err := h.Directory.RemoveInboxMember(r.Context(), caller, r.PathValue("id"), r.PathValue("agentID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
