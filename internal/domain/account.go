package domain

import (
	"fmt"
	"regexp"
	"time"
)

// Tenant is the top-level isolation boundary. Every account, agent, inbox,
// conversation, and session belongs to exactly one tenant, and no operation
// may cross tenants regardless of the caller's role.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountStatus describes whether an account may be operated on.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
)

func (s AccountStatus) IsValid() bool {
	return s == AccountActive || s == AccountSuspended
}

// Account is a customer workspace inside a tenant. Agents, inboxes, teams,
// and conversations all hang off an account.
type Account struct {
	ID           string        `json:"id"`
	TenantID     string        `json:"tenant_id"`
	Name         string        `json:"name"`
	OwnerAgentID string        `json:"owner_agent_id,omitempty"`
	Status       AccountStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

var namePattern = regexp.MustCompile(`^[^\x00-\x1f]{1,128}$`)

// ValidateName enforces the accepted display name format for accounts,
// inboxes, and teams.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: name must be 1-128 printable characters", ErrInvalidArgument)
	}
	return nil
}
