// Package ratelimit throttles API requests with per-caller token buckets.
// The Redis backend shares buckets across daemon instances; the local
// backend keeps throttling alive when Redis is unreachable.
package ratelimit

import "context"

// Backend answers whether a request may proceed. Implementations hold one
// bucket per key, capped at maxTokens and refilled at refillRate tokens per
// second, and report the tokens left after the check.
type Backend interface {
	CheckRateLimit(ctx context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error)
}

// KeyForIdentity returns the bucket key for an authenticated caller.
// Impersonated sessions get their own bucket under the admin subject, so a
// support session cannot drain the buckets of the account's own agents.
func KeyForIdentity(subject string) string {
	return "identity:" + subject
}

// KeyForIP returns the bucket key for an unauthenticated caller.
func KeyForIP(ip string) string {
	return "ip:" + ip
}
