package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/parleyhq/parley/internal/domain"
)

// CreateSession persists a session row keyed by token hash. Login lives in an
// external credential service; this exists for the seed command and tests.
func (s *PostgresStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	if sess == nil {
		return fmt.Errorf("session is required")
	}
	if sess.TokenHash == "" {
		return fmt.Errorf("token hash is required")
	}
	if sess.AgentID == "" || sess.AccountID == "" {
		return fmt.Errorf("agent id and account id are required")
	}
	if sess.IssuedAt.IsZero() {
		sess.IssuedAt = time.Now().UTC()
	}
	if sess.ExpiresAt.IsZero() {
		return fmt.Errorf("expiry is required")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_sessions (token_hash, agent_id, account_id, issued_at, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sess.TokenHash, sess.AgentID, sess.AccountID, sess.IssuedAt, sess.ExpiresAt,
		nullIfEmpty(sess.IPAddress), nullIfEmpty(sess.UserAgent))
	if err != nil {
		if isPGUniqueViolation(err) {
			return fmt.Errorf("%w: session", domain.ErrDuplicate)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSessionByTokenHash resolves an unexpired session. Unknown and expired
// hashes both return (nil, nil): the caller must not be able to tell them
// apart.
func (s *PostgresStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var sess domain.Session
	var ip, ua *string

	err := s.pool.QueryRow(ctx, `
		SELECT token_hash, agent_id, account_id, issued_at, expires_at, ip_address, user_agent
		FROM agent_sessions
		WHERE token_hash = $1 AND expires_at > NOW()
	`, tokenHash).Scan(&sess.TokenHash, &sess.AgentID, &sess.AccountID, &sess.IssuedAt, &sess.ExpiresAt, &ip, &ua)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if ip != nil {
		sess.IPAddress = *ip
	}
	if ua != nil {
		sess.UserAgent = *ua
	}
	return &sess, nil
}
