package controlplane

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/logging"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Unknown
// errors surface as an opaque 500; the detail goes to the log, not the
// client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		logging.Op().Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorResponse{Error: code, Message: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: code, Message: err.Error()})
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrTargetNotMember):
		return http.StatusBadRequest, "target_not_member"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case domain.IsQuotaExceeded(err):
		return http.StatusForbidden, "quota_exceeded"
	case errors.Is(err, domain.ErrAccountSuspended):
		return http.StatusForbidden, "account_suspended"
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyAssigned):
		return http.StatusConflict, "already_assigned"
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// callerIdentity returns the authenticated identity or writes a 401. The
// auth middleware guarantees an identity on private paths; this is the
// backstop for misconfigured route registration.
func callerIdentity(w http.ResponseWriter, r *http.Request) *auth.Identity {
	id := auth.GetIdentity(r.Context())
	if id == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return nil
	}
	return id
}
