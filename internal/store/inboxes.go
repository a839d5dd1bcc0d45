package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parleyhq/parley/internal/domain"
)

func (s *PostgresStore) CreateInbox(ctx context.Context, in *domain.Inbox) error {
	if in == nil {
		return fmt.Errorf("inbox is required")
	}
	if in.AccountID == "" {
		return fmt.Errorf("account id is required")
	}
	normalizeInbox(in)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO inboxes (id, account_id, name, channel_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, in.ID, in.AccountID, in.Name, string(in.ChannelType), string(in.Status), in.CreatedAt, in.UpdatedAt)
	if err != nil {
		if isPGUniqueViolation(err) {
			return fmt.Errorf("%w: inbox %s", domain.ErrDuplicate, in.ID)
		}
		return fmt.Errorf("create inbox: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInbox(ctx context.Context, id string) (*domain.Inbox, error) {
	in, err := scanInbox(s.pool.QueryRow(ctx, `
		SELECT id, account_id, name, channel_type, status, created_at, updated_at
		FROM inboxes
		WHERE id = $1
	`, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: inbox %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get inbox: %w", err)
	}
	return in, nil
}

func (s *PostgresStore) ListInboxes(ctx context.Context, accountID string, limit, offset int) ([]*domain.Inbox, error) {
	limit = normalizeListLimit(limit)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, name, channel_type, status, created_at, updated_at
		FROM inboxes
		WHERE account_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list inboxes: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Inbox, 0, limit)
	for rows.Next() {
		in, err := scanInbox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inbox: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list inboxes rows: %w", err)
	}
	return out, nil
}

// UpdateInbox persists name and status changes.
func (s *PostgresStore) UpdateInbox(ctx context.Context, in *domain.Inbox) error {
	if in == nil || in.ID == "" {
		return fmt.Errorf("inbox id is required")
	}

	ct, err := s.pool.Exec(ctx, `
		UPDATE inboxes SET name = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, in.ID, in.Name, string(in.Status))
	if err != nil {
		return fmt.Errorf("update inbox: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: inbox %s", domain.ErrNotFound, in.ID)
	}
	return nil
}

func (s *PostgresStore) CountInboxes(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM inboxes WHERE account_id = $1
	`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count inboxes: %w", err)
	}
	return n, nil
}

func normalizeInbox(in *domain.Inbox) {
	now := time.Now().UTC()
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.ChannelType == "" {
		in.ChannelType = domain.ChannelWebchat
	}
	if in.Status == "" {
		in.Status = domain.InboxActive
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.UpdatedAt = now
}

func scanInbox(scanner rowScanner) (*domain.Inbox, error) {
	var in domain.Inbox
	var channelType, status string

	err := scanner.Scan(&in.ID, &in.AccountID, &in.Name, &channelType, &status, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, err
	}
	in.ChannelType = domain.ChannelType(channelType)
	in.Status = domain.InboxStatus(status)
	return &in, nil
}
