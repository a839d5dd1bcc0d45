package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/observability"
)

// AssignmentStore is the store surface the assignment engine needs. The
// conditional-write semantics of PickupConversation are the load-bearing
// part: implementations must only assign when the row is still unassigned,
// atomically, and report ErrAlreadyAssigned otherwise.
type AssignmentStore interface {
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	PickupConversation(ctx context.Context, conversationID, accountID, agentID string) (*domain.Conversation, error)
	TransferConversation(ctx context.Context, conversationID, accountID, actorID, targetAgentID string) (*domain.Conversation, string, error)
	ReleaseConversation(ctx context.Context, conversationID, accountID, actorID string) (*domain.Conversation, string, error)
	ListInboxMembers(ctx context.Context, inboxID string) ([]*domain.MemberAgent, error)
	IsInboxMember(ctx context.Context, inboxID, agentID string) (bool, error)
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAssignmentEvents(ctx context.Context, accountID, conversationID string, limit, offset int) ([]*domain.AssignmentEvent, error)
}

// AssignmentService owns conversation assignment: pickup, transfer, release,
// and the audit trail those operations leave behind.
type AssignmentService struct {
	store AssignmentStore
}

func NewAssignmentService(store AssignmentStore) *AssignmentService {
	return &AssignmentService{store: store}
}

// Pickup atomically claims an unassigned conversation for the caller. When
// two agents race, exactly one wins; the loser gets ErrAlreadyAssigned and
// nothing is retried on their behalf.
func (s *AssignmentService) Pickup(ctx context.Context, caller *auth.Identity, conversationID string) (*domain.Conversation, error) {
	const endpoint = "POST /conversations/{id}/pickup"

	ctx, span := observability.StartSpan(ctx, "parley.assignment",
		observability.AttrAssignmentKind.String("pickup"),
		observability.AttrConversationID.String(conversationID),
		observability.AttrAccountID.String(caller.AccountID),
		observability.AttrAgentID.String(caller.AgentID),
	)
	defer span.End()

	conv, err := loadGuardedConversation(ctx, s.store, caller, conversationID, endpoint)
	if err != nil {
		metrics.RecordAssignment("pickup", outcomeOf(err))
		return nil, err
	}
	span.SetAttributes(observability.AttrInboxID.String(conv.InboxID))
	if err := ensureAccountActive(ctx, s.store, caller); err != nil {
		return nil, err
	}
	if caller.Impersonating() {
		// Impersonation identities have no agent row and can never hold
		// an assignment.
		metrics.RecordAssignment("pickup", metrics.OutcomeDenied)
		return nil, fmt.Errorf("%w: impersonation cannot hold assignments", domain.ErrAccessDenied)
	}

	claimed, err := s.store.PickupConversation(ctx, conversationID, caller.AccountID, caller.AgentID)
	if err != nil {
		observability.SetSpanError(span, err)
		metrics.RecordAssignment("pickup", outcomeOf(err))
		return nil, err
	}

	logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx)).Info("conversation picked up",
		"conversation_id", claimed.ID,
		"inbox_id", conv.InboxID,
		"agent_id", caller.AgentID,
	)
	metrics.RecordAssignment("pickup", metrics.OutcomeOK)
	return claimed, nil
}

// Transfer reassigns a conversation to the target agent. The target must be
// an active member of the conversation's inbox; the previous assignee, if
// any, is simply replaced. A target who is not online does not block the
// transfer, it only yields a warning for the caller to surface.
func (s *AssignmentService) Transfer(ctx context.Context, caller *auth.Identity, conversationID, targetAgentID string) (*domain.Conversation, string, error) {
	const endpoint = "POST /conversations/{id}/transfer"

	targetAgentID = strings.TrimSpace(targetAgentID)
	if targetAgentID == "" {
		return nil, "", fmt.Errorf("%w: target_agent_id is required", domain.ErrInvalidArgument)
	}

	ctx, span := observability.StartSpan(ctx, "parley.assignment",
		observability.AttrAssignmentKind.String("transfer"),
		observability.AttrConversationID.String(conversationID),
		observability.AttrAccountID.String(caller.AccountID),
		observability.AttrAgentID.String(targetAgentID),
	)
	defer span.End()

	conv, err := loadGuardedConversation(ctx, s.store, caller, conversationID, endpoint)
	if err != nil {
		metrics.RecordAssignment("transfer", outcomeOf(err))
		return nil, "", err
	}
	span.SetAttributes(observability.AttrInboxID.String(conv.InboxID))
	if err := ensureAccountActive(ctx, s.store, caller); err != nil {
		return nil, "", err
	}
	if err := ensureInboxAccess(ctx, s.store, caller, conv.InboxID); err != nil {
		metrics.RecordAssignment("transfer", outcomeOf(err))
		return nil, "", err
	}

	updated, previous, err := s.store.TransferConversation(ctx, conversationID, caller.AccountID, caller.AgentID, targetAgentID)
	if err != nil {
		observability.SetSpanError(span, err)
		metrics.RecordAssignment("transfer", outcomeOf(err))
		return nil, "", err
	}

	logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx)).Info("conversation transferred",
		"conversation_id", updated.ID,
		"inbox_id", conv.InboxID,
		"from_agent_id", previous,
		"to_agent_id", targetAgentID,
		"actor", caller.Subject(),
	)
	metrics.RecordAssignment("transfer", metrics.OutcomeOK)
	return updated, s.availabilityWarning(ctx, targetAgentID), nil
}

// Release clears a conversation's assignee. Releasing an already-unassigned
// conversation succeeds; the release is audited either way.
func (s *AssignmentService) Release(ctx context.Context, caller *auth.Identity, conversationID string) (*domain.Conversation, error) {
	const endpoint = "POST /conversations/{id}/release"

	ctx, span := observability.StartSpan(ctx, "parley.assignment",
		observability.AttrAssignmentKind.String("release"),
		observability.AttrConversationID.String(conversationID),
		observability.AttrAccountID.String(caller.AccountID),
		observability.AttrAgentID.String(caller.AgentID),
	)
	defer span.End()

	conv, err := loadGuardedConversation(ctx, s.store, caller, conversationID, endpoint)
	if err != nil {
		metrics.RecordAssignment("release", outcomeOf(err))
		return nil, err
	}
	span.SetAttributes(observability.AttrInboxID.String(conv.InboxID))
	if err := ensureAccountActive(ctx, s.store, caller); err != nil {
		return nil, err
	}
	if err := ensureInboxAccess(ctx, s.store, caller, conv.InboxID); err != nil {
		metrics.RecordAssignment("release", outcomeOf(err))
		return nil, err
	}

	updated, previous, err := s.store.ReleaseConversation(ctx, conversationID, caller.AccountID, caller.AgentID)
	if err != nil {
		observability.SetSpanError(span, err)
		metrics.RecordAssignment("release", outcomeOf(err))
		return nil, err
	}

	logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx)).Info("conversation released",
		"conversation_id", updated.ID,
		"inbox_id", conv.InboxID,
		"from_agent_id", previous,
		"actor", caller.Subject(),
	)
	metrics.RecordAssignment("release", metrics.OutcomeOK)
	return updated, nil
}

// ListTransferableAgents returns the active members of the conversation's
// inbox, minus the current assignee, with their availability so callers can
// prefer online targets.
func (s *AssignmentService) ListTransferableAgents(ctx context.Context, caller *auth.Identity, conversationID string) ([]*domain.MemberAgent, error) {
	const endpoint = "GET /conversations/{id}/transferable-agents"

	conv, err := loadGuardedConversation(ctx, s.store, caller, conversationID, endpoint)
	if err != nil {
		return nil, err
	}
	if err := ensureInboxAccess(ctx, s.store, caller, conv.InboxID); err != nil {
		return nil, err
	}

	members, err := s.store.ListInboxMembers(ctx, conv.InboxID)
	if err != nil {
		return nil, err
	}

	candidates := make([]*domain.MemberAgent, 0, len(members))
	for _, m := range members {
		if m.Status != domain.AgentActive {
			continue
		}
		if m.AgentID == conv.AssignedAgentID {
			continue
		}
		candidates = append(candidates, m)
	}
	return candidates, nil
}

// ListEvents returns the assignment audit trail for the caller's account,
// optionally narrowed to one conversation.
func (s *AssignmentService) ListEvents(ctx context.Context, caller *auth.Identity, conversationID string, limit, offset int) ([]*domain.AssignmentEvent, error) {
	if conversationID != "" {
		if _, err := loadGuardedConversation(ctx, s.store, caller, conversationID, "GET /assignment-events"); err != nil {
			return nil, err
		}
	}
	return s.store.ListAssignmentEvents(ctx, caller.AccountID, conversationID, limit, offset)
}

// availabilityWarning reports a human-readable warning when the agent is
// not online. Lookup failures yield no warning; the transfer itself has
// already succeeded.
func (s *AssignmentService) availabilityWarning(ctx context.Context, agentID string) string {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil || agent == nil {
		return ""
	}
	if agent.Availability != domain.AvailabilityOnline {
		return fmt.Sprintf("target agent is %s", agent.Availability)
	}
	return ""
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, domain.ErrAlreadyAssigned):
		return metrics.OutcomeConflict
	case errors.Is(err, domain.ErrTargetNotMember):
		return metrics.OutcomeTargetNotMember
	case errors.Is(err, domain.ErrAccessDenied):
		return metrics.OutcomeDenied
	case errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
