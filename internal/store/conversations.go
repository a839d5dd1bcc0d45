package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parleyhq/parley/internal/domain"
)

func (s *PostgresStore) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	if c == nil {
		return fmt.Errorf("conversation is required")
	}
	if c.AccountID == "" || c.InboxID == "" {
		return fmt.Errorf("account id and inbox id are required")
	}
	normalizeConversation(c)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, inbox_id, account_id, contact_identifier, status, assigned_agent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.InboxID, c.AccountID, c.ContactIdentifier, string(c.Status), nullIfEmpty(c.AssignedAgentID), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isPGUniqueViolation(err) {
			return fmt.Errorf("%w: conversation %s", domain.ErrDuplicate, c.ID)
		}
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// GetConversation loads a conversation without tenant scoping. Callers are
// responsible for comparing the row's account against the caller's identity
// before revealing anything about it.
func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `
		SELECT id, inbox_id, account_id, contact_identifier, status, assigned_agent_id, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// ConversationFilter narrows ListConversations. InboxIDs is mandatory scope:
// an empty set returns nothing rather than everything.
type ConversationFilter struct {
	AccountID string
	InboxIDs  []string
	Status    domain.ConversationStatus
	Assigned  *bool
	Limit     int
	Offset    int
}

func (s *PostgresStore) ListConversations(ctx context.Context, f ConversationFilter) ([]*domain.Conversation, error) {
	if f.AccountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	if len(f.InboxIDs) == 0 {
		return []*domain.Conversation{}, nil
	}
	limit := normalizeListLimit(f.Limit)
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, inbox_id, account_id, contact_identifier, status, assigned_agent_id, created_at, updated_at
		FROM conversations
		WHERE account_id = $1 AND inbox_id = ANY($2)
	`
	args := []any{f.AccountID, f.InboxIDs}

	if f.Status != "" {
		args = append(args, string(f.Status))
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if f.Assigned != nil {
		if *f.Assigned {
			query += " AND assigned_agent_id IS NOT NULL"
		} else {
			query += " AND assigned_agent_id IS NULL"
		}
	}

	args = append(args, limit)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Conversation, 0, limit)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations rows: %w", err)
	}
	return out, nil
}

// PickupConversation atomically claims an unassigned conversation for an
// inbox member. The guard clause on the UPDATE is the sole claim mechanism:
// under any number of concurrent pickups exactly one caller sees a row
// updated and every other caller gets ErrAlreadyAssigned. Membership is
// checked inside the same transaction as the write, and the audit event and
// outbox row commit together with the claim or not at all.
func (s *PostgresStore) PickupConversation(ctx context.Context, conversationID, accountID, agentID string) (*domain.Conversation, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin pickup tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := getConversationTx(ctx, tx, conversationID, accountID)
	if err != nil {
		return nil, err
	}
	if current.AssignedAgentID != "" {
		return nil, fmt.Errorf("%w: conversation %s held by agent %s", domain.ErrAlreadyAssigned, conversationID, current.AssignedAgentID)
	}

	member, err := isInboxMemberTx(ctx, tx, current.InboxID, agentID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: agent %s is not a member of inbox %s", domain.ErrAccessDenied, agentID, current.InboxID)
	}

	updated, err := scanConversation(tx.QueryRow(ctx, `
		UPDATE conversations SET
			assigned_agent_id = $2,
			updated_at = NOW()
		WHERE id = $1 AND assigned_agent_id IS NULL
		RETURNING id, inbox_id, account_id, contact_identifier, status, assigned_agent_id, created_at, updated_at
	`, conversationID, agentID))
	if err == pgx.ErrNoRows {
		// Zero rows means another claim landed between the read above and
		// this write. Never retried here; the loser gets the conflict.
		return nil, fmt.Errorf("%w: conversation %s", domain.ErrAlreadyAssigned, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("pickup conversation: %w", err)
	}

	if err := recordAssignmentTx(ctx, tx, updated, domain.AssignmentPickup, "", agentID, agentID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit pickup tx: %w", err)
	}
	return updated, nil
}

// TransferConversation reassigns unconditionally, including from the
// unassigned state. The target's membership and active status are verified
// inside the transaction so a concurrent membership removal cannot slip a
// non-member in as assignee.
func (s *PostgresStore) TransferConversation(ctx context.Context, conversationID, accountID, actorID, targetAgentID string) (*domain.Conversation, string, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("begin transfer tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := getConversationTx(ctx, tx, conversationID, accountID)
	if err != nil {
		return nil, "", err
	}

	var assignable bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM inbox_members m
			JOIN agents a ON a.id = m.agent_id
			WHERE m.inbox_id = $1 AND m.agent_id = $2 AND a.status = 'active'
		)
	`, current.InboxID, targetAgentID).Scan(&assignable)
	if err != nil {
		return nil, "", fmt.Errorf("check transfer target: %w", err)
	}
	if !assignable {
		return nil, "", fmt.Errorf("%w: agent %s in inbox %s", domain.ErrTargetNotMember, targetAgentID, current.InboxID)
	}

	updated, err := scanConversation(tx.QueryRow(ctx, `
		UPDATE conversations SET
			assigned_agent_id = $2,
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, inbox_id, account_id, contact_identifier, status, assigned_agent_id, created_at, updated_at
	`, conversationID, targetAgentID))
	if err != nil {
		return nil, "", fmt.Errorf("transfer conversation: %w", err)
	}

	if err := recordAssignmentTx(ctx, tx, updated, domain.AssignmentTransfer, current.AssignedAgentID, targetAgentID, actorID); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("commit transfer tx: %w", err)
	}
	return updated, current.AssignedAgentID, nil
}

// ReleaseConversation clears the assignee unconditionally. Releasing an
// already-unassigned conversation succeeds and is still audited.
func (s *PostgresStore) ReleaseConversation(ctx context.Context, conversationID, accountID, actorID string) (*domain.Conversation, string, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("begin release tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := getConversationTx(ctx, tx, conversationID, accountID)
	if err != nil {
		return nil, "", err
	}

	updated, err := scanConversation(tx.QueryRow(ctx, `
		UPDATE conversations SET
			assigned_agent_id = NULL,
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, inbox_id, account_id, contact_identifier, status, assigned_agent_id, created_at, updated_at
	`, conversationID))
	if err != nil {
		return nil, "", fmt.Errorf("release conversation: %w", err)
	}

	if err := recordAssignmentTx(ctx, tx, updated, domain.AssignmentRelease, current.AssignedAgentID, "", actorID); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("commit release tx: %w", err)
	}
	return updated, current.AssignedAgentID, nil
}

// getConversationTx loads a conversation scoped to an account inside a
// transaction, locking the row so the audit event's from_agent_id reflects
// the state the write actually replaced. Foreign ids fail with the same
// error as absent ones.
func getConversationTx(ctx context.Context, tx pgx.Tx, id, accountID string) (*domain.Conversation, error) {
	c, err := scanConversation(tx.QueryRow(ctx, `
		SELECT id, inbox_id, account_id, contact_identifier, status, assigned_agent_id, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND account_id = $2
		FOR UPDATE
	`, id, accountID))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return c, nil
}

func isInboxMemberTx(ctx context.Context, tx pgx.Tx, inboxID, agentID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
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

// recordAssignmentTx appends the audit event and enqueues its outbox row in
// the caller's transaction.
func recordAssignmentTx(ctx context.Context, tx pgx.Tx, c *domain.Conversation, kind domain.AssignmentEventKind, fromAgentID, toAgentID, actingAgentID string) error {
	ev := &domain.AssignmentEvent{
		ID:             uuid.New().String(),
		ConversationID: c.ID,
		InboxID:        c.InboxID,
		AccountID:      c.AccountID,
		Kind:           kind,
		FromAgentID:    fromAgentID,
		ToAgentID:      toAgentID,
		ActingAgentID:  actingAgentID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := insertAssignmentEventTx(ctx, tx, ev); err != nil {
		return err
	}
	return enqueueAssignmentOutboxTx(ctx, tx, ev)
}

func normalizeConversation(c *domain.Conversation) {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = domain.ConversationOpen
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func scanConversation(scanner rowScanner) (*domain.Conversation, error) {
	var c domain.Conversation
	var status string
	var assignee *string

	err := scanner.Scan(&c.ID, &c.InboxID, &c.AccountID, &c.ContactIdentifier, &status, &assignee, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = domain.ConversationStatus(status)
	if assignee != nil {
		c.AssignedAgentID = *assignee
	}
	return &c, nil
}
