package domain

import "time"

// Session is a server-side record of an issued bearer token. The token
// itself is opaque to clients and never stored; only its SHA-256 hash is.
// Sessions are created by the login service and validated here on every
// request. An expired session is indistinguishable from a missing one.
type Session struct {
	TokenHash string    `json:"-"`
	AgentID   string    `json:"agent_id"`
	AccountID string    `json:"account_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
