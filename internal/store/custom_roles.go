package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parleyhq/parley/internal/domain"
)

func (s *PostgresStore) CreateCustomRole(ctx context.Context, r *domain.CustomRole) error {
	if r == nil {
		return fmt.Errorf("custom role is required")
	}
	if r.AccountID == "" {
		return fmt.Errorf("account id is required")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Permissions == nil {
		r.Permissions = []domain.Permission{}
	}

	perms, err := json.Marshal(r.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO custom_roles (id, account_id, name, permissions, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, r.AccountID, r.Name, perms, r.CreatedAt)
	if err != nil {
		if isPGUniqueViolation(err) {
			return fmt.Errorf("%w: custom role %s", domain.ErrDuplicate, r.Name)
		}
		return fmt.Errorf("create custom role: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCustomRole(ctx context.Context, id string) (*domain.CustomRole, error) {
	r, err := scanCustomRole(s.pool.QueryRow(ctx, `
		SELECT id, account_id, name, permissions, created_at
		FROM custom_roles
		WHERE id = $1
	`, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: custom role %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get custom role: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListCustomRoles(ctx context.Context, accountID string) ([]*domain.CustomRole, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, name, permissions, created_at
		FROM custom_roles
		WHERE account_id = $1
		ORDER BY created_at ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list custom roles: %w", err)
	}
	defer rows.Close()

	var out []*domain.CustomRole
	for rows.Next() {
		r, err := scanCustomRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan custom role: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list custom roles rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountCustomRoles(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM custom_roles WHERE account_id = $1
	`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count custom roles: %w", err)
	}
	return n, nil
}

func scanCustomRole(scanner rowScanner) (*domain.CustomRole, error) {
	var r domain.CustomRole
	var perms []byte

	err := scanner.Scan(&r.ID, &r.AccountID, &r.Name, &perms, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &r.Permissions); err != nil {
			return nil, fmt.Errorf("unmarshal permissions: %w", err)
		}
	}
	if r.Permissions == nil {
		r.Permissions = []domain.Permission{}
	}
	return &r, nil
}
