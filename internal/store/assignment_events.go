package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/parleyhq/parley/internal/domain"
)

func insertAssignmentEventTx(ctx context.Context, exec rowExecutor, ev *domain.AssignmentEvent) error {
	_, err := exec.Exec(ctx, `
		INSERT INTO assignment_events (id, conversation_id, inbox_id, account_id, kind, from_agent_id, to_agent_id, acting_agent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.ID, ev.ConversationID, ev.InboxID, ev.AccountID, string(ev.Kind),
		nullIfEmpty(ev.FromAgentID), nullIfEmpty(ev.ToAgentID), ev.ActingAgentID, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert assignment event: %w", err)
	}
	return nil
}

// ListAssignmentEvents returns the audit trail for an account, newest first,
// optionally narrowed to one conversation.
func (s *PostgresStore) ListAssignmentEvents(ctx context.Context, accountID, conversationID string, limit, offset int) ([]*domain.AssignmentEvent, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	limit = normalizeListLimit(limit)
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, conversation_id, inbox_id, account_id, kind, from_agent_id, to_agent_id, acting_agent_id, created_at
		FROM assignment_events
		WHERE account_id = $1
	`
	args := []any{accountID}

	if conversationID != "" {
		args = append(args, conversationID)
		query += " AND conversation_id = $" + strconv.Itoa(len(args))
	}

	args = append(args, limit)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignment events: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.AssignmentEvent, 0, limit)
	for rows.Next() {
		var ev domain.AssignmentEvent
		var kind string
		var from, to *string
		if err := rows.Scan(&ev.ID, &ev.ConversationID, &ev.InboxID, &ev.AccountID, &kind, &from, &to, &ev.ActingAgentID, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment event: %w", err)
		}
		ev.Kind = domain.AssignmentEventKind(kind)
		if from != nil {
			ev.FromAgentID = *from
		}
		if to != nil {
			ev.ToAgentID = *to
		}
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assignment events rows: %w", err)
	}
	return out, nil
}
