// Package quota enforces per-account resource limits on control-plane
// creates. Limits come from the account_limits table when an override row
// exists and from configured plan defaults otherwise. Checks always count
// live rows; there is no cached usage ledger to drift.
package quota

import (
	"context"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain"
)

const (
	ResourceInboxes     = "inboxes"
	ResourceAgents      = "agents"
	ResourceTeams       = "teams"
	ResourceCustomRoles = "custom_roles"
)

var resourceSet = map[string]struct{}{
	ResourceInboxes:     {},
	ResourceAgents:      {},
	ResourceTeams:       {},
	ResourceCustomRoles: {},
}

// NormalizeResource canonicalizes a resource name.
func NormalizeResource(resource string) (string, error) {
	r := strings.ToLower(strings.TrimSpace(resource))
	r = strings.ReplaceAll(r, "-", "_")
	if r == "" {
		return "", fmt.Errorf("%w: resource is required", domain.ErrInvalidArgument)
	}
	if _, ok := resourceSet[r]; !ok {
		return "", fmt.Errorf("%w: unsupported resource %q", domain.ErrInvalidArgument, resource)
	}
	return r, nil
}

// Store is the subset of the store the enforcer needs: per-account
// overrides and live counts.
type Store interface {
	GetAccountLimit(ctx context.Context, accountID, resource string) (int64, bool, error)
	CountInboxes(ctx context.Context, accountID string) (int64, error)
	CountAgents(ctx context.Context, accountID string) (int64, error)
	CountTeams(ctx context.Context, accountID string) (int64, error)
	CountCustomRoles(ctx context.Context, accountID string) (int64, error)
}

// Enforcer checks resource creation against account limits.
type Enforcer struct {
	store    Store
	defaults config.QuotaConfig
}

// NewEnforcer creates an enforcer with the given plan defaults.
func NewEnforcer(store Store, defaults config.QuotaConfig) *Enforcer {
	return &Enforcer{store: store, defaults: defaults}
}

// Check returns nil when one more resource of the given kind fits under the
// account's limit, and *domain.QuotaExceededError when it does not. A limit
// of zero blocks creation outright.
func (e *Enforcer) Check(ctx context.Context, accountID, resource string) error {
	resource, err := NormalizeResource(resource)
	if err != nil {
		return err
	}

	limit, err := e.limit(ctx, accountID, resource)
	if err != nil {
		return err
	}
	current, err := e.count(ctx, accountID, resource)
	if err != nil {
		return err
	}

	if current >= limit {
		return &domain.QuotaExceededError{
			Resource: resource,
			Limit:    limit,
			Current:  current,
		}
	}
	return nil
}

// limit resolves the effective limit: the account override when one is set,
// the plan default otherwise.
func (e *Enforcer) limit(ctx context.Context, accountID, resource string) (int64, error) {
	if max, ok, err := e.store.GetAccountLimit(ctx, accountID, resource); err != nil {
		return 0, fmt.Errorf("resolve limit for %s: %w", resource, err)
	} else if ok {
		return max, nil
	}

	switch resource {
	case ResourceInboxes:
		return int64(e.defaults.MaxInboxes), nil
	case ResourceAgents:
		return int64(e.defaults.MaxAgents), nil
	case ResourceTeams:
		return int64(e.defaults.MaxTeams), nil
	case ResourceCustomRoles:
		return int64(e.defaults.MaxCustomRoles), nil
	}
	return 0, fmt.Errorf("%w: unsupported resource %q", domain.ErrInvalidArgument, resource)
}

func (e *Enforcer) count(ctx context.Context, accountID, resource string) (int64, error) {
	switch resource {
	case ResourceInboxes:
		return e.store.CountInboxes(ctx, accountID)
	case ResourceAgents:
		return e.store.CountAgents(ctx, accountID)
	case ResourceTeams:
		return e.store.CountTeams(ctx, accountID)
	case ResourceCustomRoles:
		return e.store.CountCustomRoles(ctx, accountID)
	}
	return 0, fmt.Errorf("%w: unsupported resource %q", domain.ErrInvalidArgument, resource)
}
