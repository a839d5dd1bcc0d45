package domain

import "time"

// Team is a named group of agents inside an account, used for organizing
// related inboxes and reporting. Teams do not grant conversation access;
// inbox membership does.
type Team struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TeamMember links an agent to a team.
type TeamMember struct {
	TeamID    string    `json:"team_id"`
	AgentID   string    `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
}
