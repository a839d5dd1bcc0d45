package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Availability is the agent's self-reported presence. It never blocks an
// assignment; a transfer to an agent who is not online succeeds with a
// warning attached to the result.
type Availability string

const (
	AvailabilityOnline  Availability = "online"
	AvailabilityBusy    Availability = "busy"
	AvailabilityOffline Availability = "offline"
)

func (a Availability) IsValid() bool {
	switch a {
	case AvailabilityOnline, AvailabilityBusy, AvailabilityOffline:
		return true
	}
	return false
}

// AgentStatus distinguishes active agents from deactivated ones. Agents are
// never hard-deleted; deactivation keeps historical assignment events intact.
type AgentStatus string

const (
	AgentActive   AgentStatus = "active"
	AgentInactive AgentStatus = "inactive"
)

func (s AgentStatus) IsValid() bool {
	return s == AgentActive || s == AgentInactive
}

// Agent is a human operator inside an account. Role decides what the agent
// may manage; inbox membership decides which conversations the agent may
// pick up or be assigned.
type Agent struct {
	ID           string       `json:"id"`
	AccountID    string       `json:"account_id"`
	Email        string       `json:"email"`
	DisplayName  string       `json:"display_name"`
	Role         Role         `json:"role"`
	Availability Availability `json:"availability"`
	Status       AgentStatus  `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Assignable reports whether the agent can hold a conversation assignment.
func (a *Agent) Assignable() bool {
	return a.Status == AgentActive
}

// ValidateEmail normalizes and checks an agent email address.
func ValidateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email %q", ErrInvalidArgument, email)
	}
	return email, nil
}
