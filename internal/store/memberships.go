package store

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/internal/domain"
)

// Inbox membership is a security boundary: every method here reads and
// writes the live table, and callers must never cache the results. A
// membership insert or delete is visible to the next read.

// AddInboxMember grants an agent membership. Adding an existing member is a
// no-op; membership is a set.
func (s *PostgresStore) AddInboxMember(ctx context.Context, inboxID, agentID string) error {
	if inboxID == "" || agentID == "" {
		return fmt.Errorf("inbox id and agent id are required")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO inbox_members (inbox_id, agent_id)
		VALUES ($1, $2)
		ON CONFLICT (inbox_id, agent_id) DO NOTHING
	`, inboxID, agentID)
	if err != nil {
		return fmt.Errorf("add inbox member: %w", err)
	}
	return nil
}

// RemoveInboxMember revokes membership. Removing a non-member is a no-op.
func (s *PostgresStore) RemoveInboxMember(ctx context.Context, inboxID, agentID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM inbox_members
		WHERE inbox_id = $1 AND agent_id = $2
	`, inboxID, agentID)
	if err != nil {
		return fmt.Errorf("remove inbox member: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsInboxMember(ctx context.Context, inboxID, agentID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM inbox_members
			WHERE inbox_id = $1 AND agent_id = $2
		)
	`, inboxID, agentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check inbox membership: %w", err)
	}
	return exists, nil
}

// ListInboxMembers returns members joined with the agent fields needed for
// transfer candidate listings, ordered by display name.
func (s *PostgresStore) ListInboxMembers(ctx context.Context, inboxID string) ([]*domain.MemberAgent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.display_name, a.email, a.availability, a.status
		FROM inbox_members m
		JOIN agents a ON a.id = m.agent_id
		WHERE m.inbox_id = $1
		ORDER BY a.display_name ASC
	`, inboxID)
	if err != nil {
		return nil, fmt.Errorf("list inbox members: %w", err)
	}
	defer rows.Close()

	var out []*domain.MemberAgent
	for rows.Next() {
		var m domain.MemberAgent
		var availability, status string
		if err := rows.Scan(&m.AgentID, &m.DisplayName, &m.Email, &availability, &status); err != nil {
			return nil, fmt.Errorf("scan inbox member: %w", err)
		}
		m.Availability = domain.Availability(availability)
		m.Status = domain.AgentStatus(status)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list inbox members rows: %w", err)
	}
	return out, nil
}

// ListAgentInboxIDs returns every inbox the agent is a member of.
func (s *PostgresStore) ListAgentInboxIDs(ctx context.Context, agentID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT inbox_id FROM inbox_members
		WHERE agent_id = $1
		ORDER BY inbox_id ASC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list agent inboxes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent inbox: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list agent inboxes rows: %w", err)
	}
	return out, nil
}
