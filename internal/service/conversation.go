package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/authz"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/store"
)

// ConversationStore is the store surface for conversation reads and creation.
type ConversationStore interface {
	CreateConversation(ctx context.Context, c *domain.Conversation) error
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, f store.ConversationFilter) ([]*domain.Conversation, error)
	GetInbox(ctx context.Context, id string) (*domain.Inbox, error)
	ListInboxes(ctx context.Context, accountID string, limit, offset int) ([]*domain.Inbox, error)
	ListAgentInboxIDs(ctx context.Context, agentID string) ([]string, error)
	IsInboxMember(ctx context.Context, inboxID, agentID string) (bool, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
}

// ConversationService handles conversation creation and reads. Assignment
// changes live on AssignmentService.
type ConversationService struct {
	store ConversationStore
}

func NewConversationService(store ConversationStore) *ConversationService {
	return &ConversationService{store: store}
}

type CreateConversationRequest struct {
	InboxID           string
	ContactIdentifier string
}

// Create opens a new conversation in an inbox of the caller's account.
func (s *ConversationService) Create(ctx context.Context, caller *auth.Identity, req CreateConversationRequest) (*domain.Conversation, error) {
	if err := ensureAccountActive(ctx, s.store, caller); err != nil {
		return nil, err
	}

	req.ContactIdentifier = strings.TrimSpace(req.ContactIdentifier)
	if req.ContactIdentifier == "" {
		return nil, fmt.Errorf("%w: contact_identifier is required", domain.ErrInvalidArgument)
	}
	if req.InboxID == "" {
		return nil, fmt.Errorf("%w: inbox_id is required", domain.ErrInvalidArgument)
	}

	inbox, err := s.store.GetInbox(ctx, req.InboxID)
	if err != nil {
		return nil, err
	}
	if err := authz.GuardAccount(caller, inbox.AccountID, inbox.ID, "POST /conversations"); err != nil {
		return nil, err
	}
	if inbox.Status == domain.InboxArchived {
		return nil, fmt.Errorf("%w: inbox %s is archived", domain.ErrInvalidArgument, inbox.ID)
	}

	conv := &domain.Conversation{
		ID:                uuid.New().String(),
		AccountID:         caller.AccountID,
		InboxID:           inbox.ID,
		ContactIdentifier: req.ContactIdentifier,
		Status:            domain.ConversationOpen,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get returns one conversation. The caller must be able to see its inbox.
func (s *ConversationService) Get(ctx context.Context, caller *auth.Identity, id string) (*domain.Conversation, error) {
	conv, err := loadGuardedConversation(ctx, s.store, caller, id, "GET /conversations/{id}")
	if err != nil {
		return nil, err
	}
	if err := ensureInboxAccess(ctx, s.store, caller, conv.InboxID); err != nil {
		return nil, err
	}
	return conv, nil
}

type ListConversationsRequest struct {
	InboxID  string
	Status   string
	Assigned *bool
	Limit    int
	Offset   int
}

// List returns conversations visible to the caller: a single inbox when the
// filter names one, otherwise every inbox the caller can see. Agents without
// any membership get an empty list, not an error.
func (s *ConversationService) List(ctx context.Context, caller *auth.Identity, req ListConversationsRequest) ([]*domain.Conversation, error) {
	var status domain.ConversationStatus
	if req.Status != "" {
		status = domain.ConversationStatus(req.Status)
		if !status.IsValid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, req.Status)
		}
	}

	var inboxIDs []string
	switch {
	case req.InboxID != "":
		inbox, err := s.store.GetInbox(ctx, req.InboxID)
		if err != nil {
			return nil, err
		}
		if err := authz.GuardAccount(caller, inbox.AccountID, inbox.ID, "GET /conversations"); err != nil {
			return nil, err
		}
		if err := ensureInboxAccess(ctx, s.store, caller, inbox.ID); err != nil {
			return nil, err
		}
		inboxIDs = []string{inbox.ID}

	case caller.Role.IsAccountManager():
		inboxes, err := s.store.ListInboxes(ctx, caller.AccountID, store.MaxListLimit, 0)
		if err != nil {
			return nil, err
		}
		for _, in := range inboxes {
			inboxIDs = append(inboxIDs, in.ID)
		}

	default:
		ids, err := s.store.ListAgentInboxIDs(ctx, caller.AgentID)
		if err != nil {
			return nil, err
		}
		inboxIDs = ids
	}

	return s.store.ListConversations(ctx, store.ConversationFilter{
		AccountID: caller.AccountID,
		InboxIDs:  inboxIDs,
		Status:    status,
		Assigned:  req.Assigned,
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
}
