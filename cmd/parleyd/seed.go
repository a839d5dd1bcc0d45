package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/quota"
	"github.com/parleyhq/parley/internal/store"
)

// Fixed ids keep the fixtures stable across reruns and easy to reference
// from curl sessions.
const (
	seedTenantID  = "dev-tenant-001"
	seedAccountID = "dev-account-001"
	seedOwnerID   = "dev-agent-owner"
	seedAgentID   = "dev-agent-sam"
	seedViewerID  = "dev-agent-viewer"
	seedInboxID   = "dev-inbox-support"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert development fixtures and print a session token",
		Long:  "Creates a dev tenant, account, agents, inbox, memberships, and open conversations. Idempotent: skips when the dev account already exists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("database url is required (--database-url or PARLEY_DATABASE_URL)")
			}

			ctx := context.Background()
			pgStore, err := store.NewPostgresStore(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pgStore.Close()

			if _, err := pgStore.GetAccount(ctx, seedAccountID); err == nil {
				fmt.Println("seed already applied (dev account exists), minting a fresh session only")
				return mintSession(ctx, pgStore, cfg.Auth.SessionTTLHours)
			} else if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("seed check: %w", err)
			}

			now := time.Now().UTC()

			if err := pgStore.CreateTenant(ctx, &domain.Tenant{
				ID:        seedTenantID,
				Name:      "Dev Tenant",
				CreatedAt: now,
			}); err != nil && !errors.Is(err, domain.ErrDuplicate) {
				return fmt.Errorf("create tenant: %w", err)
			}

			if err := pgStore.CreateAccount(ctx, &domain.Account{
				ID:        seedAccountID,
				TenantID:  seedTenantID,
				Name:      "Acme Support",
				Status:    domain.AccountActive,
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return fmt.Errorf("create account: %w", err)
			}

			agents := []*domain.Agent{
				{
					ID:          seedOwnerID,
					Email:       "owner@example.com",
					DisplayName: "Olive Owner",
					Role:        domain.BuiltinRoleOf(domain.RoleOwner),
				},
				{
					ID:          seedAgentID,
					Email:       "sam@example.com",
					DisplayName: "Sam Support",
					Role:        domain.BuiltinRoleOf(domain.RoleAgent),
				},
				{
					ID:          seedViewerID,
					Email:       "vic@example.com",
					DisplayName: "Vic Viewer",
					Role:        domain.BuiltinRoleOf(domain.RoleViewer),
				},
			}
			for _, a := range agents {
				a.AccountID = seedAccountID
				a.Availability = domain.AvailabilityOffline
				a.Status = domain.AgentActive
				a.CreatedAt = now
				a.UpdatedAt = now
				if err := pgStore.CreateAgent(ctx, a); err != nil {
					return fmt.Errorf("create agent %s: %w", a.Email, err)
				}
			}

			if err := pgStore.SetAccountOwner(ctx, seedAccountID, seedOwnerID); err != nil {
				return fmt.Errorf("set account owner: %w", err)
			}

			if err := pgStore.CreateInbox(ctx, &domain.Inbox{
				ID:          seedInboxID,
				AccountID:   seedAccountID,
				Name:        "Support",
				ChannelType: domain.ChannelWhatsApp,
				Status:      domain.InboxActive,
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				return fmt.Errorf("create inbox: %w", err)
			}

			for _, agentID := range []string{seedOwnerID, seedAgentID} {
				if err := pgStore.AddInboxMember(ctx, seedInboxID, agentID); err != nil {
					return fmt.Errorf("add inbox member %s: %w", agentID, err)
				}
			}

			for i, contact := range []string{"+15550100001", "+15550100002", "+15550100003"} {
				conv := &domain.Conversation{
					ID:                fmt.Sprintf("dev-conv-%03d", i+1),
					AccountID:         seedAccountID,
					InboxID:           seedInboxID,
					ContactIdentifier: contact,
					Status:            domain.ConversationOpen,
					CreatedAt:         now,
					UpdatedAt:         now,
				}
				if err := pgStore.CreateConversation(ctx, conv); err != nil {
					return fmt.Errorf("create conversation: %w", err)
				}
			}

			// A tight inbox limit so quota denials are reproducible in dev
			// without creating dozens of rows first.
			if err := pgStore.SetAccountLimit(ctx, seedAccountID, quota.ResourceInboxes, 3); err != nil {
				return fmt.Errorf("set inbox limit: %w", err)
			}

			fmt.Println("seed fixtures created:")
			fmt.Printf("  account  %s (tenant %s)\n", seedAccountID, seedTenantID)
			fmt.Printf("  agents   %s (owner), %s (agent), %s (viewer)\n", seedOwnerID, seedAgentID, seedViewerID)
			fmt.Printf("  inbox    %s with members owner+agent (inbox quota 3)\n", seedInboxID)
			fmt.Println("  3 open conversations")

			return mintSession(ctx, pgStore, cfg.Auth.SessionTTLHours)
		},
	}

	return cmd
}

// mintSession issues a bearer token for the seeded owner. The raw token is
// printed once; only its hash is stored.
func mintSession(ctx context.Context, pgStore *store.PostgresStore, ttlHours int) error {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return fmt.Errorf("generate session token: %w", err)
	}

	if ttlHours <= 0 {
		ttlHours = 72
	}
	now := time.Now().UTC()
	if err := pgStore.CreateSession(ctx, &domain.Session{
		TokenHash: auth.HashSessionToken(token),
		AgentID:   seedOwnerID,
		AccountID: seedAccountID,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(ttlHours) * time.Hour),
	}); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	fmt.Printf("\nsession token for %s (valid %dh):\n  %s\n", seedOwnerID, ttlHours, token)
	fmt.Println("\ntry it:")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' http://localhost:8080/conversations\n", token)
	return nil
}
