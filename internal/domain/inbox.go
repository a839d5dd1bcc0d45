package domain

import "time"

// ChannelType identifies the messaging channel an inbox is bound to.
type ChannelType string

const (
	ChannelWhatsApp ChannelType = "whatsapp"
	ChannelWebchat  ChannelType = "webchat"
	ChannelEmail    ChannelType = "email"
	ChannelAPI      ChannelType = "api"
)

func (c ChannelType) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelWebchat, ChannelEmail, ChannelAPI:
		return true
	}
	return false
}

// InboxStatus describes whether an inbox accepts new conversations.
type InboxStatus string

const (
	InboxActive   InboxStatus = "active"
	InboxArchived InboxStatus = "archived"
)

func (s InboxStatus) IsValid() bool {
	return s == InboxActive || s == InboxArchived
}

// Inbox is a routing bucket for conversations within an account. Membership
// in an inbox is what entitles an agent to pick up or receive assignment of
// its conversations; account owners and administrators can act on any inbox
// of their account but still do not become assignees without a membership.
type Inbox struct {
	ID          string      `json:"id"`
	AccountID   string      `json:"account_id"`
	Name        string      `json:"name"`
	ChannelType ChannelType `json:"channel_type"`
	Status      InboxStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// InboxMember links an agent to an inbox.
type InboxMember struct {
	InboxID   string    `json:"inbox_id"`
	AgentID   string    `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberAgent is an inbox member joined with the agent fields callers need
// when listing transfer candidates.
type MemberAgent struct {
	AgentID      string       `json:"agent_id"`
	DisplayName  string       `json:"display_name"`
	Email        string       `json:"email"`
	Availability Availability `json:"availability"`
	Status       AgentStatus  `json:"status"`
}
