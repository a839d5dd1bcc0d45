package domain

import "time"

// ConversationStatus is the lifecycle state of a conversation. It is
// orthogonal to assignment: a resolved conversation can still carry an
// assignee, and an open one can be unassigned.
type ConversationStatus string

const (
	ConversationOpen     ConversationStatus = "open"
	ConversationPending  ConversationStatus = "pending"
	ConversationResolved ConversationStatus = "resolved"
	ConversationSnoozed  ConversationStatus = "snoozed"
)

func (s ConversationStatus) IsValid() bool {
	switch s {
	case ConversationOpen, ConversationPending, ConversationResolved, ConversationSnoozed:
		return true
	}
	return false
}

// Conversation is a thread with a single external contact, routed through
// one inbox. AssignedAgentID is empty while unassigned; the storage layer is
// the only place allowed to flip it, under a conditional write for pickups.
type Conversation struct {
	ID                string             `json:"id"`
	AccountID         string             `json:"account_id"`
	InboxID           string             `json:"inbox_id"`
	ContactIdentifier string             `json:"contact_identifier"`
	Status            ConversationStatus `json:"status"`
	AssignedAgentID   string             `json:"assigned_agent_id,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Assigned reports whether the conversation currently has an assignee.
func (c *Conversation) Assigned() bool {
	return c.AssignedAgentID != ""
}
