package domain

import "time"

// AssignmentEventKind names the three assignment transitions.
type AssignmentEventKind string

const (
	AssignmentPickup   AssignmentEventKind = "pickup"
	AssignmentTransfer AssignmentEventKind = "transfer"
	AssignmentRelease  AssignmentEventKind = "release"
)

func (k AssignmentEventKind) IsValid() bool {
	switch k {
	case AssignmentPickup, AssignmentTransfer, AssignmentRelease:
		return true
	}
	return false
}

// AssignmentEvent is the immutable audit record for one assignment
// transition. It is written in the same transaction as the conversation
// update, so the audit trail can never disagree with the conversation state.
type AssignmentEvent struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id"`
	InboxID        string              `json:"inbox_id"`
	AccountID      string              `json:"account_id"`
	Kind           AssignmentEventKind `json:"kind"`
	FromAgentID    string              `json:"from_agent_id,omitempty"`
	ToAgentID      string              `json:"to_agent_id,omitempty"`
	ActingAgentID  string              `json:"acting_agent_id"`
	CreatedAt      time.Time           `json:"created_at"`
}
