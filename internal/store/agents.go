package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parleyhq/parley/internal/domain"
)

// customRoleMarker is stored in the role column when the agent carries a
// custom role; the actual reference lives in custom_role_id.
const customRoleMarker = "custom"

func (s *PostgresStore) CreateAgent(ctx context.Context, a *domain.Agent) error {
	if a == nil {
		return fmt.Errorf("agent is required")
	}
	if a.AccountID == "" {
		return fmt.Errorf("account id is required")
	}
	normalizeAgent(a)

	roleName, customRoleID := roleColumns(a.Role)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents (id, account_id, email, display_name, role, custom_role_id, availability, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.AccountID, a.Email, a.DisplayName, roleName, customRoleID, string(a.Availability), string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isPGUniqueViolation(err) {
			return fmt.Errorf("%w: agent email %s", domain.ErrDuplicate, a.Email)
		}
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	a, err := scanAgent(s.pool.QueryRow(ctx, `
		SELECT id, account_id, email, display_name, role, custom_role_id, availability, status, created_at, updated_at
		FROM agents
		WHERE id = $1
	`, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: agent %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAgents(ctx context.Context, accountID string, limit, offset int) ([]*domain.Agent, error) {
	limit = normalizeListLimit(limit)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, email, display_name, role, custom_role_id, availability, status, created_at, updated_at
		FROM agents
		WHERE account_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Agent, 0, limit)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list agents rows: %w", err)
	}
	return out, nil
}

// UpdateAgent persists role, display name, availability, and status. Email
// and account are immutable once created.
func (s *PostgresStore) UpdateAgent(ctx context.Context, a *domain.Agent) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("agent id is required")
	}

	roleName, customRoleID := roleColumns(a.Role)
	ct, err := s.pool.Exec(ctx, `
		UPDATE agents SET
			display_name = $2,
			role = $3,
			custom_role_id = $4,
			availability = $5,
			status = $6,
			updated_at = NOW()
		WHERE id = $1
	`, a.ID, a.DisplayName, roleName, customRoleID, string(a.Availability), string(a.Status))
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: agent %s", domain.ErrNotFound, a.ID)
	}
	return nil
}

func (s *PostgresStore) SetAgentAvailability(ctx context.Context, agentID string, availability domain.Availability) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE agents SET availability = $2, updated_at = NOW()
		WHERE id = $1
	`, agentID, string(availability))
	if err != nil {
		return fmt.Errorf("set agent availability: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: agent %s", domain.ErrNotFound, agentID)
	}
	return nil
}

func (s *PostgresStore) CountAgents(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM agents WHERE account_id = $1
	`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count agents: %w", err)
	}
	return n, nil
}

func normalizeAgent(a *domain.Agent) {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Availability == "" {
		a.Availability = domain.AvailabilityOffline
	}
	if a.Status == "" {
		a.Status = domain.AgentActive
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

func roleColumns(r domain.Role) (string, any) {
	if r.IsCustom() {
		return customRoleMarker, r.CustomRoleID
	}
	return string(r.Builtin), nil
}

func roleFromColumns(roleName string, customRoleID *string) domain.Role {
	if customRoleID != nil && *customRoleID != "" {
		return domain.CustomRoleOf(*customRoleID)
	}
	return domain.BuiltinRoleOf(domain.BuiltinRole(roleName))
}

func scanAgent(scanner rowScanner) (*domain.Agent, error) {
	var a domain.Agent
	var roleName string
	var customRoleID *string
	var availability, status string

	err := scanner.Scan(&a.ID, &a.AccountID, &a.Email, &a.DisplayName, &roleName, &customRoleID, &availability, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Role = roleFromColumns(roleName, customRoleID)
	a.Availability = domain.Availability(availability)
	a.Status = domain.AgentStatus(status)
	return &a, nil
}
