package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/cache"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/metrics"
)

// SessionStore is the subset of the store needed for session authentication.
type SessionStore interface {
	// GetSessionByTokenHash returns the session for a token hash, or
	// (nil, nil) when the hash is unknown or the session has expired.
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
}

// SessionAuthenticator validates opaque bearer session tokens.
//
// Only the token-to-session lookup may be served from cache, bounded by a
// TTL and re-checked against the session's own expiry on every request.
// The agent and account rows are read fresh each time so role changes,
// deactivation, and suspension take effect immediately.
type SessionAuthenticator struct {
	store    SessionStore
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewSessionAuthenticator creates a session token authenticator.
// The cache is optional; pass nil (or a zero TTL) to hit the store on
// every request.
func NewSessionAuthenticator(store SessionStore, c cache.Cache, cacheTTL time.Duration) *SessionAuthenticator {
	return &SessionAuthenticator{
		store:    store,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

// Authenticate validates the bearer token in the Authorization header.
// Returns nil for any failure; the middleware turns every nil into the
// same generic 401 so callers cannot probe which step rejected them.
func (a *SessionAuthenticator) Authenticate(r *http.Request) *Identity {
	token := extractBearerToken(r)
	if token == "" {
		return nil
	}

	ctx := r.Context()
	sess := a.lookupSession(ctx, HashSessionToken(token))
	if sess == nil || sess.Expired(time.Now()) {
		return nil
	}

	// Agent and account are never cached: a deactivated agent or a role
	// change must lock out the very next request.
	agent, err := a.store.GetAgent(ctx, sess.AgentID)
	if err != nil || agent == nil || agent.Status != domain.AgentActive {
		return nil
	}

	account, err := a.store.GetAccount(ctx, agent.AccountID)
	if err != nil || account == nil {
		return nil
	}

	return &Identity{
		AgentID:   agent.ID,
		AccountID: account.ID,
		TenantID:  account.TenantID,
		Role:      agent.Role,
	}
}

// lookupSession resolves a token hash to a session, consulting the cache
// first when one is configured. Cache failures fall through to the store.
func (a *SessionAuthenticator) lookupSession(ctx context.Context, tokenHash string) *domain.Session {
	key := sessionCacheKey(tokenHash)

	if a.cacheEnabled() {
		if data, err := a.cache.Get(ctx, key); err == nil {
			var sess domain.Session
			if err := json.Unmarshal(data, &sess); err == nil {
				sess.TokenHash = tokenHash
				metrics.RecordSessionCache(true)
				return &sess
			}
		}
		metrics.RecordSessionCache(false)
	}

	sess, err := a.store.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil || sess == nil {
		return nil
	}

	if a.cacheEnabled() {
		// Never cache past the session's own expiry.
		ttl := a.cacheTTL
		if until := time.Until(sess.ExpiresAt); until < ttl {
			ttl = until
		}
		if ttl > 0 {
			if data, err := json.Marshal(sess); err == nil {
				_ = a.cache.Set(ctx, key, data, ttl)
			}
		}
	}

	return sess
}

func (a *SessionAuthenticator) cacheEnabled() bool {
	return a.cache != nil && a.cacheTTL > 0
}

// SessionCacheKey returns the cache key for a session token hash. The
// credential service publishes exactly this key on the invalidation channel
// when it revokes a session.
func SessionCacheKey(tokenHash string) string {
	return sessionCacheKey(tokenHash)
}

func sessionCacheKey(tokenHash string) string {
	return "session:" + tokenHash
}

// extractBearerToken pulls the token out of the Authorization header.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// HashSessionToken computes the SHA-256 hash of a session token.
// Only the hash is ever stored or compared server side.
func HashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// GenerateSessionToken creates a new random session token.
// Format: pst_<random-string> (32 characters of randomness)
func GenerateSessionToken() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 32

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}

	for i, b := range bytes {
		bytes[i] = charset[b%byte(len(charset))]
	}

	return "pst_" + string(bytes), nil
}

// VerifySessionToken checks a provided token against a stored hash in
// constant time.
func VerifySessionToken(providedToken, storedHash string) bool {
	providedHash := HashSessionToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
