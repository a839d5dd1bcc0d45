package controlplane

import (
	"net/http"

	"github.com/parleyhq/parley/internal/domain"
)

// ListAssignmentEvents handles GET /assignment-events. Without a
// conversation_id filter it returns the account-wide audit trail.
func (h *Handler) ListAssignmentEvents(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(w, r)
	if caller == nil {
		return
	}

	limit, offset := parseLimitOffset(r)
	conversationID := r.URL.Query().Get("conversation_id")

	events, err := h.Audit.ListEvents(r.Context(), caller, conversationID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []*domain.AssignmentEvent{}
	}

	returned := len(events)
	writePaginatedList(w, limit, offset, returned, estimatePaginatedTotal(limit, offset, returned), events)
}
