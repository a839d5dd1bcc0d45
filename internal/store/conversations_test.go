package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/db"
	"github.com/parleyhq/parley/internal/domain"
)

// These tests exercise the real conditional-write path and need a database.
// They skip unless PARLEY_TEST_DATABASE_URL points at a disposable Postgres.

func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("PARLEY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PARLEY_TEST_DATABASE_URL not set; skipping postgres integration test")
	}

	if err := db.Migrate(dsn, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s, err := NewPostgresStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type fixture struct {
	tenantID     string
	accountID    string
	otherAccount string
	memberA      string
	memberB      string
	outsider     string // same account, no membership
	inboxID      string
	convID       string
}

func seedFixture(t *testing.T, s *PostgresStore) fixture {
	t.Helper()
	ctx := context.Background()

	f := fixture{}

	tenant := &domain.Tenant{Name: "t-" + uuid.NewString()}
	if err := s.CreateTenant(ctx, tenant); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	f.tenantID = tenant.ID

	account := &domain.Account{TenantID: tenant.ID, Name: "acme"}
	if err := s.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	f.accountID = account.ID

	other := &domain.Account{TenantID: tenant.ID, Name: "rival"}
	if err := s.CreateAccount(ctx, other); err != nil {
		t.Fatalf("create other account: %v", err)
	}
	f.otherAccount = other.ID

	newAgent := func(accountID, name string) string {
		a := &domain.Agent{
			AccountID:   accountID,
			Email:       name + "-" + uuid.NewString() + "@example.com",
			DisplayName: name,
			Role:        domain.BuiltinRoleOf(domain.RoleAgent),
		}
		if err := s.CreateAgent(ctx, a); err != nil {
			t.Fatalf("create agent %s: %v", name, err)
		}
		return a.ID
	}
	f.memberA = newAgent(account.ID, "alice")
	f.memberB = newAgent(account.ID, "bob")
	f.outsider = newAgent(account.ID, "carol")

	inbox := &domain.Inbox{AccountID: account.ID, Name: "support"}
	if err := s.CreateInbox(ctx, inbox); err != nil {
		t.Fatalf("create inbox: %v", err)
	}
	f.inboxID = inbox.ID

	for _, agentID := range []string{f.memberA, f.memberB} {
		if err := s.AddInboxMember(ctx, inbox.ID, agentID); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}

	conv := &domain.Conversation{AccountID: account.ID, InboxID: inbox.ID, ContactIdentifier: "+15550001111"}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	f.convID = conv.ID

	return f
}

func TestPickupConversationConcurrent(t *testing.T) {
	s := setupTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	const racers = 8
	agents := []string{f.memberA, f.memberB}

	var wg sync.WaitGroup
	errs := make([]error, racers)
	winners := make([]string, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agentID := agents[i%len(agents)]
			conv, err := s.PickupConversation(ctx, f.convID, f.accountID, agentID)
			errs[i] = err
			if err == nil {
				winners[i] = conv.AssignedAgentID
			}
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	var winner string
	for i := 0; i < racers; i++ {
		switch {
		case errs[i] == nil:
			wins++
			winner = winners[i]
		case errors.Is(errs[i], domain.ErrAlreadyAssigned):
			conflicts++
		default:
			t.Fatalf("racer %d: unexpected error %v", i, errs[i])
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
	if conflicts != racers-1 {
		t.Fatalf("conflicts = %d, want %d", conflicts, racers-1)
	}

	conv, err := s.GetConversation(ctx, f.convID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.AssignedAgentID != winner {
		t.Errorf("persisted assignee = %q, want winner %q", conv.AssignedAgentID, winner)
	}

	events, err := s.ListAssignmentEvents(ctx, f.accountID, f.convID, 10, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("assignment events = %d, want 1 (only the winner commits)", len(events))
	}
	if events[0].Kind != domain.AssignmentPickup || events[0].ToAgentID != winner {
		t.Errorf("event = %+v, want pickup to %s", events[0], winner)
	}
}

func TestPickupConversationNonMember(t *testing.T) {
	s := setupTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	_, err := s.PickupConversation(ctx, f.convID, f.accountID, f.outsider)
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}

	conv, err := s.GetConversation(ctx, f.convID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.Assigned() {
		t.Errorf("conversation assigned to %q after denied pickup", conv.AssignedAgentID)
	}
}

func TestPickupConversationCrossAccount(t *testing.T) {
	s := setupTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	_, err := s.PickupConversation(ctx, f.convID, f.otherAccount, f.memberA)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for foreign account scope", err)
	}
}

func TestTransferConversation(t *testing.T) {
	s := setupTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	// Transfer from the unassigned state is allowed.
	conv, prev, err := s.TransferConversation(ctx, f.convID, f.accountID, f.memberA, f.memberB)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if prev != "" {
		t.Errorf("prev assignee = %q, want empty", prev)
	}
	if conv.AssignedAgentID != f.memberB {
		t.Errorf("assignee = %q, want %q", conv.AssignedAgentID, f.memberB)
	}

	// And again with an existing assignee.
	conv, prev, err = s.TransferConversation(ctx, f.convID, f.accountID, f.memberB, f.memberA)
	if err != nil {
		t.Fatalf("second transfer: %v", err)
	}
	if prev != f.memberB {
		t.Errorf("prev assignee = %q, want %q", prev, f.memberB)
	}
	if conv.AssignedAgentID != f.memberA {
		t.Errorf("assignee = %q, want %q", conv.AssignedAgentID, f.memberA)
	}
}

func TestTransferToNonMember(t *testing.T) {
	s := setupTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	if _, err := s.PickupConversation(ctx, f.convID, f.accountID, f.memberA); err != nil {
		t.Fatalf("pickup: %v", err)
	}

	_, _, err := s.TransferConversation(ctx, f.convID, f.accountID, f.memberA, f.outsider)
	if !errors.Is(err, domain.ErrTargetNotMember) {
		t.Fatalf("err = %v, want ErrTargetNotMember", err)
	}

	conv, err := s.GetConversation(ctx, f.convID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.AssignedAgentID != f.memberA {
		t.Errorf("assignee = %q, want unchanged %q", conv.AssignedAgentID, f.memberA)
	}
}

func TestTransferToInactiveMember(t *testing.T) {
	s := setupTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	agent, err := s.GetAgent(ctx, f.memberB)
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	agent.Status = domain.AgentInactive
	if err := s.UpdateAgent(ctx, agent); err != nil {
		t.Fatalf("deactivate agent: %v", err)
	}

	_, _, err = s.TransferConversation(ctx, f.convID, f.accountID, f.memberA, f.memberB)
	if !errors.Is(err, domain.ErrTargetNotMember) {
		t.Fatalf("err = %v, want ErrTargetNotMember for inactive target", err)
	}
}

func TestReleaseConversationIdempotent(t *testing.T) {
	s := setupTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	if _, err := s.PickupConversation(ctx, f.convID, f.accountID, f.memberA); err != nil {
		t.Fatalf("pickup: %v", err)
	}

	conv, prev, err := s.ReleaseConversation(ctx, f.convID, f.accountID, f.memberA)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if prev != f.memberA {
		t.Errorf("prev assignee = %q, want %q", prev, f.memberA)
	}
	if conv.Assigned() {
		t.Errorf("conversation still assigned to %q", conv.AssignedAgentID)
	}

	// Releasing an unassigned conversation succeeds and is still audited.
	conv, prev, err = s.ReleaseConversation(ctx, f.convID, f.accountID, f.memberA)
	if err != nil {
		t.Fatalf("second release: %v", err)
	}
	if prev != "" || conv.Assigned() {
		t.Errorf("second release: prev = %q assigned = %v", prev, conv.Assigned())
	}

	events, err := s.ListAssignmentEvents(ctx, f.accountID, f.convID, 10, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var releases int
	for _, ev := range events {
		if ev.Kind == domain.AssignmentRelease {
			releases++
		}
	}
	if releases != 2 {
		t.Errorf("release events = %d, want 2", releases)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	s := setupTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	if _, err := s.PickupConversation(ctx, f.convID, f.accountID, f.memberA); err != nil {
		t.Fatalf("pickup: %v", err)
	}

	// Drain until we find the event for this conversation; parallel test
	// runs may have queued their own.
	deadline := time.Now().Add(5 * time.Second)
	var acquired *OutboxEvent
	var leased []string
	for time.Now().Before(deadline) {
		ev, err := s.AcquireDueOutboxEvent(ctx, "test-worker", time.Minute)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if ev == nil {
			break
		}
		leased = append(leased, ev.ID)
		if ev.RoutingKey == RoutingKeyConversationAssigned {
			var payload domain.AssignmentEvent
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				t.Fatalf("unmarshal payload: %v", err)
			}
			if payload.ConversationID == f.convID {
				acquired = ev
				break
			}
		}
	}
	if acquired == nil {
		t.Fatal("outbox event for pickup not found")
	}
	if acquired.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", acquired.Attempt)
	}

	if err := s.MarkOutboxEventPublished(ctx, acquired.ID); err != nil {
		t.Fatalf("mark published: %v", err)
	}

	// Release the other leases so this test leaves no stuck rows behind.
	for _, id := range leased {
		if id == acquired.ID {
			continue
		}
		if err := s.MarkOutboxEventForRetry(ctx, id, "requeued by test", time.Now().UTC()); err != nil {
			t.Fatalf("requeue: %v", err)
		}
	}
}
