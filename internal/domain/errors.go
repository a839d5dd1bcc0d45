// Package domain holds the core types and error taxonomy shared by the
// storage, service, and transport layers. Outcome decisions are made in the
// service and storage layers using these errors; the HTTP layer only maps
// them to status codes.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when no valid session accompanies a
	// request. Missing, malformed, and expired tokens are deliberately
	// indistinguishable.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAccessDenied is returned when an authenticated caller lacks
	// permission for an operation within their own account.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound is returned when a resource does not exist, and also when
	// it exists in another tenant: cross-tenant callers must not learn that
	// a foreign id is valid.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyAssigned is returned when a pickup loses the race for an
	// unassigned conversation. The caller decides whether to retry.
	ErrAlreadyAssigned = errors.New("conversation already assigned")

	// ErrTargetNotMember is returned when a transfer names an agent who is
	// not an active member of the conversation's inbox.
	ErrTargetNotMember = errors.New("target agent is not a member of this inbox")

	// ErrAccountSuspended is returned for mutations against a suspended
	// account.
	ErrAccountSuspended = errors.New("account suspended")

	// ErrDuplicate is returned when a unique constraint is violated, such as
	// reusing an agent email within an account.
	ErrDuplicate = errors.New("already exists")

	// ErrInvalidArgument is returned for malformed or out-of-range input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// QuotaExceededError reports a plan limit violation. It is distinct from
// ErrAccessDenied so clients can surface an upgrade prompt instead of a
// permissions error.
type QuotaExceededError struct {
	Resource string
	Limit    int64
	Current  int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: limit %d, current %d", e.Resource, e.Limit, e.Current)
}

// IsQuotaExceeded reports whether err is a quota violation.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
