package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetAccountLimit returns the per-account override for a quota resource.
// The second return is false when the account has no override and the
// configured plan default applies.
func (s *PostgresStore) GetAccountLimit(ctx context.Context, accountID, resource string) (int64, bool, error) {
	var max int64
	err := s.pool.QueryRow(ctx, `
		SELECT max_count FROM account_limits
		WHERE account_id = $1 AND resource = $2
	`, accountID, resource).Scan(&max)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get account limit: %w", err)
	}
	return max, true, nil
}

// SetAccountLimit upserts a per-account quota override.
func (s *PostgresStore) SetAccountLimit(ctx context.Context, accountID, resource string, maxCount int64) error {
	if accountID == "" || resource == "" {
		return fmt.Errorf("account id and resource are required")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_limits (account_id, resource, max_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, resource) DO UPDATE SET max_count = EXCLUDED.max_count
	`, accountID, resource, maxCount)
	if err != nil {
		return fmt.Errorf("set account limit: %w", err)
	}
	return nil
}
