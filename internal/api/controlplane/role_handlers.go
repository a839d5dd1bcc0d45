package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/service"
)

// CreateCustomRole handles POST /custom-roles
func (h *Handler) CreateCustomRole(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	var req struct {
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Message: "invalid JSON"})
		return
	}

	role, err := h.Directory.CreateCustomRole(r.Context(), caller, service.CreateCustomRoleRequest{
		Name:        req.Name,
		Permissions: req.Permissions,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

// GetCustomRole handles GET /custom-roles/{id}
func (h *Handler) GetCustomRole(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	role, err := h.Directory.GetCustomRole(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// ListCustomRoles handles GET /custom-roles
func (h *Handler) ListCustomRoles(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	roles, err := h.Directory.ListCustomRoles(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if roles == nil {
		roles = []*domain.CustomRole{}
	}
	writeJSON(w, http.StatusOK, roles)
}
