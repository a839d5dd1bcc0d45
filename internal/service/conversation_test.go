package service

import (
	"context"
	"errors"
	"testing"

	"github.com/parleyhq/parley/internal/domain"
)

// newConversationFixture extends the directory fixture with a second inbox
// and conversations in both, with agent-2 a member of inbox-1 only.
func newConversationFixture() *fakeDirStore {
	st := newDirectoryFixture()
	st.inboxes["inbox-2"] = &domain.Inbox{ID: "inbox-2", AccountID: "acct-1", Name: "Billing", ChannelType: domain.ChannelEmail, Status: domain.InboxActive}
	st.inboxMembers["inbox-1"] = map[string]bool{"agent-2": true}

	st.conversations["conv-1"] = &domain.Conversation{ID: "conv-1", AccountID: "acct-1", InboxID: "inbox-1", ContactIdentifier: "+15550001111", Status: domain.ConversationOpen}
	st.conversations["conv-2"] = &domain.Conversation{ID: "conv-2", AccountID: "acct-1", InboxID: "inbox-2", ContactIdentifier: "cust@example.com", Status: domain.ConversationResolved, AssignedAgentID: "agent-1"}
	st.conversations["conv-9"] = &domain.Conversation{ID: "conv-9", AccountID: "acct-2", InboxID: "inbox-9", ContactIdentifier: "other", Status: domain.ConversationOpen}
	return st
}

func TestCreateConversation(t *testing.T) {
	st := newConversationFixture()
	svc := NewConversationService(st)
	caller := agentIdentity("agent-2", "acct-1", domain.RoleAgent)

	conv, err := svc.Create(context.Background(), caller, CreateConversationRequest{
		InboxID:           "inbox-1",
		ContactIdentifier: "+15557778888",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if conv.AccountID != "acct-1" || conv.Status != domain.ConversationOpen || conv.AssignedAgentID != "" {
		t.Fatalf("conversation = %+v, want open unassigned in acct-1", conv)
	}
	if _, ok := st.conversations[conv.ID]; !ok {
		t.Fatal("conversation not persisted")
	}
}

func TestCreateConversationRejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(st *fakeDirStore)
		req     CreateConversationRequest
		wantErr error
	}{
		{
			name:    "missing contact",
			prepare: func(st *fakeDirStore) {},
			req:     CreateConversationRequest{InboxID: "inbox-1", ContactIdentifier: "   "},
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name:    "missing inbox id",
			prepare: func(st *fakeDirStore) {},
			req:     CreateConversationRequest{ContactIdentifier: "+15550002222"},
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name:    "archived inbox",
			prepare: func(st *fakeDirStore) { st.inboxes["inbox-1"].Status = domain.InboxArchived },
			req:     CreateConversationRequest{InboxID: "inbox-1", ContactIdentifier: "+15550002222"},
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name:    "foreign inbox looks absent",
			prepare: func(st *fakeDirStore) {},
			req:     CreateConversationRequest{InboxID: "inbox-9", ContactIdentifier: "+15550002222"},
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "suspended account",
			prepare: func(st *fakeDirStore) { st.accounts["acct-1"].Status = domain.AccountSuspended },
			req:     CreateConversationRequest{InboxID: "inbox-1", ContactIdentifier: "+15550002222"},
			wantErr: domain.ErrAccountSuspended,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newConversationFixture()
			tt.prepare(st)
			svc := NewConversationService(st)

			_, err := svc.Create(context.Background(), agentIdentity("agent-2", "acct-1", domain.RoleAgent), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetConversationVisibility(t *testing.T) {
	st := newConversationFixture()
	svc := NewConversationService(st)

	// A member of the inbox reads the conversation.
	if _, err := svc.Get(context.Background(), agentIdentity("agent-2", "acct-1", domain.RoleAgent), "conv-1"); err != nil {
		t.Fatalf("member Get: %v", err)
	}
	// An owner reads any inbox of the account without a membership row.
	if _, err := svc.Get(context.Background(), agentIdentity("agent-1", "acct-1", domain.RoleOwner), "conv-2"); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	// A non-member agent in the same account is denied, not hidden.
	if _, err := svc.Get(context.Background(), agentIdentity("agent-2", "acct-1", domain.RoleAgent), "conv-2"); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("non-member Get error = %v, want access denied", err)
	}
	// A foreign conversation is absent, whoever asks.
	if _, err := svc.Get(context.Background(), agentIdentity("agent-1", "acct-1", domain.RoleOwner), "conv-9"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign Get error = %v, want not found", err)
	}
}

func TestListConversationsMembershipScope(t *testing.T) {
	st := newConversationFixture()
	svc := NewConversationService(st)

	// agent-2 is a member of inbox-1 only.
	got, err := svc.List(context.Background(), agentIdentity("agent-2", "acct-1", domain.RoleAgent), ListConversationsRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "conv-1" {
		t.Fatalf("agent list = %+v, want only conv-1", got)
	}

	// The owner sees every inbox of the account.
	got, err = svc.List(context.Background(), agentIdentity("agent-1", "acct-1", domain.RoleOwner), ListConversationsRequest{})
	if err != nil {
		t.Fatalf("owner List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("owner list = %d conversations, want 2", len(got))
	}
	for _, c := range got {
		if c.AccountID != "acct-1" {
			t.Fatalf("owner list leaked foreign conversation %+v", c)
		}
	}
}

func TestListConversationsNoMemberships(t *testing.T) {
	st := newConversationFixture()
	delete(st.inboxMembers, "inbox-1")
	svc := NewConversationService(st)

	got, err := svc.List(context.Background(), agentIdentity("agent-2", "acct-1", domain.RoleAgent), ListConversationsRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("list = %+v, want empty for agent with no inboxes", got)
	}
}

func TestListConversationsInboxFilter(t *testing.T) {
	st := newConversationFixture()
	svc := NewConversationService(st)

	got, err := svc.List(context.Background(), agentIdentity("agent-2", "acct-1", domain.RoleAgent), ListConversationsRequest{InboxID: "inbox-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].InboxID != "inbox-1" {
		t.Fatalf("list = %+v, want conv-1 only", got)
	}

	// Filtering an inbox the agent is not a member of is denied.
	if _, err := svc.List(context.Background(), agentIdentity("agent-2", "acct-1", domain.RoleAgent), ListConversationsRequest{InboxID: "inbox-2"}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("non-member filter error = %v, want access denied", err)
	}
	// Filtering a foreign inbox is a 404-shaped error.
	if _, err := svc.List(context.Background(), agentIdentity("agent-1", "acct-1", domain.RoleOwner), ListConversationsRequest{InboxID: "inbox-9"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign filter error = %v, want not found", err)
	}
}

func TestListConversationsStatusAndAssigned(t *testing.T) {
	st := newConversationFixture()
	svc := NewConversationService(st)
	owner := agentIdentity("agent-1", "acct-1", domain.RoleOwner)

	got, err := svc.List(context.Background(), owner, ListConversationsRequest{Status: "resolved"})
	if err != nil {
		t.Fatalf("List resolved: %v", err)
	}
	if len(got) != 1 || got[0].ID != "conv-2" {
		t.Fatalf("resolved list = %+v, want conv-2", got)
	}

	unassigned := false
	got, err = svc.List(context.Background(), owner, ListConversationsRequest{Assigned: &unassigned})
	if err != nil {
		t.Fatalf("List unassigned: %v", err)
	}
	if len(got) != 1 || got[0].ID != "conv-1" {
		t.Fatalf("unassigned list = %+v, want conv-1", got)
	}

	if _, err := svc.List(context.Background(), owner, ListConversationsRequest{Status: "escalated"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("unknown status error = %v, want invalid argument", err)
	}
}
