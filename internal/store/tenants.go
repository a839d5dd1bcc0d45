package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/domain"
)

// CreateTenant inserts a tenant row. Accounts reference tenants by id;
// tenant provisioning otherwise belongs to an external onboarding service,
// so seeding and tests are the only writers here.
func (s *PostgresStore) CreateTenant(ctx context.Context, t *domain.Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenants (id, name, created_at)
		VALUES ($1, $2, $3)
	`, t.ID, t.Name, t.CreatedAt)
	if err != nil {
		if isPGUniqueViolation(err) {
			return fmt.Errorf("%w: tenant %s", domain.ErrDuplicate, t.ID)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}
