package controlplane

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/parleyhq/parley/internal/store"
)

type paginationMetadata struct {
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	Returned   int   `json:"returned"`
	Total      int64 `json:"total"`
	HasMore    bool  `json:"has_more"`
	NextOffset *int  `json:"next_offset,omitempty"`
}

type paginatedListResponse struct {
	Items      interface{}        `json:"items"`
	Pagination paginationMetadata `json:"pagination"`
}

// parseLimitOffset reads limit/offset query parameters and clamps them to
// the store's paging bounds, so the metadata echoes the window the store
// actually used.
func parseLimitOffset(r *http.Request) (int, int) {
	limit := store.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > store.MaxListLimit {
		limit = store.MaxListLimit
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

// estimatePaginatedTotal infers a total when no count query backs the list:
// a full window means at least one more row exists.
func estimatePaginatedTotal(limit, offset, returned int) int64 {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	if returned < 0 {
		returned = 0
	}
	total := offset + returned
	if limit > 0 && returned >= limit {
		total++
	}
	return int64(total)
}

func writePaginatedList(w http.ResponseWriter, limit, offset, returned int, total int64, items interface{}) {
	if total < 0 {
		total = int64(returned)
	}

	hasMore := int64(offset)+int64(returned) < total
	var nextOffset *int
	if hasMore {
		next := offset + returned
		nextOffset = &next
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(paginatedListResponse{
		Items: items,
		Pagination: paginationMetadata{
			Limit:      limit,
			Offset:     offset,
			Returned:   returned,
			Total:      total,
			HasMore:    hasMore,
			NextOffset: nextOffset,
		},
	})
}
