package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parleyhq/parley/internal/domain"
)

func (s *PostgresStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	if a == nil {
		return fmt.Errorf("account is required")
	}
	if a.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	normalizeAccount(a)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, tenant_id, name, owner_agent_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.TenantID, a.Name, nullIfEmpty(a.OwnerAgentID), string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isPGUniqueViolation(err) {
			return fmt.Errorf("%w: account %s", domain.ErrDuplicate, a.ID)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, owner_agent_id, status, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// SetAccountOwner records the owning agent once that agent row exists.
func (s *PostgresStore) SetAccountOwner(ctx context.Context, accountID, agentID string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE accounts SET owner_agent_id = $2, updated_at = NOW()
		WHERE id = $1
	`, accountID, agentID)
	if err != nil {
		return fmt.Errorf("set account owner: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, accountID)
	}
	return nil
}

func normalizeAccount(a *domain.Account) {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = domain.AccountActive
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

func scanAccount(scanner rowScanner) (*domain.Account, error) {
	var a domain.Account
	var owner *string
	var status string

	err := scanner.Scan(&a.ID, &a.TenantID, &a.Name, &owner, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if owner != nil {
		a.OwnerAgentID = *owner
	}
	a.Status = domain.AccountStatus(status)
	return &a, nil
}
