package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parleyhq/parley/internal/domain"
)

func (s *PostgresStore) CreateTeam(ctx context.Context, t *domain.Team) error {
	if t == nil {
		return fmt.Errorf("team is required")
	}
	if t.AccountID == "" {
		return fmt.Errorf("account id is required")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO teams (id, account_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`, t.ID, t.AccountID, t.Name, t.CreatedAt)
	if err != nil {
		if isPGUniqueViolation(err) {
			return fmt.Errorf("%w: team %s", domain.ErrDuplicate, t.Name)
		}
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	var t domain.Team
	err := s.pool.QueryRow(ctx, `
		SELECT id, account_id, name, created_at
		FROM teams
		WHERE id = $1
	`, id).Scan(&t.ID, &t.AccountID, &t.Name, &t.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: team %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) ListTeams(ctx context.Context, accountID string, limit, offset int) ([]*domain.Team, error) {
	limit = normalizeListLimit(limit)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, name, created_at
		FROM teams
		WHERE account_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Team, 0, limit)
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list teams rows: %w", err)
	}
	return out, nil
}

// AddTeamMember is a no-op for existing members, mirroring inbox membership.
func (s *PostgresStore) AddTeamMember(ctx context.Context, teamID, agentID string) error {
	if teamID == "" || agentID == "" {
		return fmt.Errorf("team id and agent id are required")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO team_members (team_id, agent_id)
		VALUES ($1, $2)
		ON CONFLICT (team_id, agent_id) DO NOTHING
	`, teamID, agentID)
	if err != nil {
		return fmt.Errorf("add team member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveTeamMember(ctx context.Context, teamID, agentID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM team_members
		WHERE team_id = $1 AND agent_id = $2
	`, teamID, agentID)
	if err != nil {
		return fmt.Errorf("remove team member: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTeamMembers(ctx context.Context, teamID string) ([]*domain.MemberAgent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.display_name, a.email, a.availability, a.status
		FROM team_members m
		JOIN agents a ON a.id = m.agent_id
		WHERE m.team_id = $1
		ORDER BY a.display_name ASC
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	var out []*domain.MemberAgent
	for rows.Next() {
		var m domain.MemberAgent
		var availability, status string
		if err := rows.Scan(&m.AgentID, &m.DisplayName, &m.Email, &availability, &status); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		m.Availability = domain.Availability(availability)
		m.Status = domain.AgentStatus(status)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list team members rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountTeams(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM teams WHERE account_id = $1
	`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count teams: %w", err)
	}
	return n, nil
}
