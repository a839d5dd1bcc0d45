// Package service implements the operations behind the HTTP API. Every
// method takes the authenticated caller's identity and applies the account
// guard before touching a resource loaded by a client-supplied id; the
// storage layer re-checks scoping inside its transactions, so a handler
// that forgets a check fails closed rather than open.
package service

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/authz"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/logging"
)

type conversationLoader interface {
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
}

type membershipChecker interface {
	IsInboxMember(ctx context.Context, inboxID, agentID string) (bool, error)
}

type accountGetter interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
}

// loadGuardedConversation loads a conversation and enforces the account
// boundary on it in one step. Callers never see a foreign conversation.
func loadGuardedConversation(ctx context.Context, st conversationLoader, caller *auth.Identity, id, endpoint string) (*domain.Conversation, error) {
	conv, err := st.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.GuardAccount(caller, conv.AccountID, conv.ID, endpoint); err != nil {
		return nil, err
	}
	return conv, nil
}

// ensureInboxAccess applies the inbox visibility rule: owners and
// administrators reach every inbox of their account, everyone else needs a
// membership row. Membership is read fresh on every call; a revoked
// membership takes effect on the next request.
func ensureInboxAccess(ctx context.Context, st membershipChecker, caller *auth.Identity, inboxID string) error {
	if caller.Role.IsAccountManager() {
		return nil
	}
	member, err := st.IsInboxMember(ctx, inboxID, caller.AgentID)
	if err != nil {
		return err
	}
	if !member {
		logging.Op().Warn("inbox access denied",
			"caller_id", caller.AgentID,
			"caller_account", caller.AccountID,
			"inbox_id", inboxID,
		)
		return fmt.Errorf("%w: not a member of inbox %s", domain.ErrAccessDenied, inboxID)
	}
	return nil
}

// ensureAccountActive blocks mutations on suspended accounts. Reads stay
// available so a suspended account can still be inspected.
func ensureAccountActive(ctx context.Context, st accountGetter, caller *auth.Identity) error {
	account, err := st.GetAccount(ctx, caller.AccountID)
	if err != nil {
		return err
	}
	if account.Status == domain.AccountSuspended {
		return fmt.Errorf("%w: account %s", domain.ErrAccountSuspended, account.ID)
	}
	return nil
}
