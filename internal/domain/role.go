package domain

import (
	"fmt"
	"time"
)

// Role is either a builtin role or a reference to an account-defined custom
// role. Exactly one of Builtin / CustomRoleID is set; Validate enforces this.
// Keeping the two variants in one type means every authorization decision
// resolves permissions the same way, instead of branching on a sentinel
// custom_role_id next to a stringly-typed role column.
type Role struct {
	Builtin      BuiltinRole `json:"builtin,omitempty"`
	CustomRoleID string      `json:"custom_role_id,omitempty"`
}

// BuiltinRoleOf wraps a builtin role name.
func BuiltinRoleOf(r BuiltinRole) Role {
	return Role{Builtin: r}
}

// CustomRoleOf references an account-defined role by id.
func CustomRoleOf(roleID string) Role {
	return Role{CustomRoleID: roleID}
}

// IsBuiltin reports whether the role is one of the predefined roles.
func (r Role) IsBuiltin() bool {
	return r.Builtin != "" && r.CustomRoleID == ""
}

// IsCustom reports whether the role references a custom role record.
func (r Role) IsCustom() bool {
	return r.CustomRoleID != "" && r.Builtin == ""
}

// IsAccountManager reports whether the role implicitly grants access to every
// inbox of the account. Only owners and administrators have that; custom
// roles never do, whatever permissions they carry.
func (r Role) IsAccountManager() bool {
	return r.Builtin == RoleOwner || r.Builtin == RoleAdministrator
}

func (r Role) String() string {
	if r.IsCustom() {
		return "custom:" + r.CustomRoleID
	}
	return string(r.Builtin)
}

// Validate ensures exactly one variant is set and builtin names are known.
func (r Role) Validate() error {
	switch {
	case r.Builtin != "" && r.CustomRoleID != "":
		return fmt.Errorf("%w: role cannot be both builtin and custom", ErrInvalidArgument)
	case r.Builtin == "" && r.CustomRoleID == "":
		return fmt.Errorf("%w: role is required", ErrInvalidArgument)
	case r.Builtin != "" && !ValidBuiltinRole(r.Builtin):
		return fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, r.Builtin)
	}
	return nil
}

// CustomRole is an account-defined role with an explicit permission set.
type CustomRole struct {
	ID          string       `json:"id"`
	AccountID   string       `json:"account_id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
}

// CustomRoleLookup resolves a custom role id to its permission set.
type CustomRoleLookup func(roleID string) ([]Permission, error)

// ResolvePermissions returns the permission set for a role. Builtin roles
// resolve from the static table; custom roles go through a single lookup.
func ResolvePermissions(r Role, lookup CustomRoleLookup) ([]Permission, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.IsBuiltin() {
		return BuiltinRolePermissions[r.Builtin], nil
	}
	if lookup == nil {
		return nil, fmt.Errorf("%w: custom role %s cannot be resolved", ErrInvalidArgument, r.CustomRoleID)
	}
	return lookup(r.CustomRoleID)
}
