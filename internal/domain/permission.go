package domain

// Permission represents a specific action that can be performed
type Permission string

const (
	PermConversationRead     Permission = "conversation:read"
	PermConversationCreate   Permission = "conversation:create"
	PermConversationPickup   Permission = "conversation:pickup"
	PermConversationTransfer Permission = "conversation:transfer"
	PermConversationRelease  Permission = "conversation:release"
	PermInboxRead            Permission = "inbox:read"
	PermInboxManage          Permission = "inbox:manage"
	PermAgentRead            Permission = "agent:read"
	PermAgentManage          Permission = "agent:manage"
	PermTeamRead             Permission = "team:read"
	PermTeamManage           Permission = "team:manage"
	PermAccountManage        Permission = "account:manage"
	PermAuditRead            Permission = "audit:read"
)

// BuiltinRole is one of the four fixed roles every account starts with.
type BuiltinRole string

const (
	RoleOwner         BuiltinRole = "owner"
	RoleAdministrator BuiltinRole = "administrator"
	RoleAgent         BuiltinRole = "agent"
	RoleViewer        BuiltinRole = "viewer"
)

// BuiltinRolePermissions maps each builtin role to its granted permissions.
// Custom roles carry their permission set on the CustomRole record instead.
var BuiltinRolePermissions = map[BuiltinRole][]Permission{
	RoleOwner: {
		PermConversationRead, PermConversationCreate, PermConversationPickup,
		PermConversationTransfer, PermConversationRelease,
		PermInboxRead, PermInboxManage,
		PermAgentRead, PermAgentManage,
		PermTeamRead, PermTeamManage,
		PermAccountManage,
		PermAuditRead,
	},
	RoleAdministrator: {
		PermConversationRead, PermConversationCreate, PermConversationPickup,
		PermConversationTransfer, PermConversationRelease,
		PermInboxRead, PermInboxManage,
		PermAgentRead, PermAgentManage,
		PermTeamRead, PermTeamManage,
		PermAuditRead,
	},
	RoleAgent: {
		PermConversationRead, PermConversationCreate, PermConversationPickup,
		PermConversationTransfer, PermConversationRelease,
		PermInboxRead,
		PermAgentRead,
		PermTeamRead,
	},
	RoleViewer: {
		PermConversationRead,
		PermInboxRead,
		PermAgentRead,
		PermTeamRead,
	},
}

// ValidBuiltinRole returns true if the role is one of the predefined roles.
func ValidBuiltinRole(r BuiltinRole) bool {
	_, ok := BuiltinRolePermissions[r]
	return ok
}

// ValidPermission returns true if p is a known permission name. Custom role
// definitions may only reference known permissions.
func ValidPermission(p Permission) bool {
	switch p {
	case PermConversationRead, PermConversationCreate, PermConversationPickup,
		PermConversationTransfer, PermConversationRelease,
		PermInboxRead, PermInboxManage,
		PermAgentRead, PermAgentManage,
		PermTeamRead, PermTeamManage,
		PermAccountManage, PermAuditRead:
		return true
	}
	return false
}

// HasPermission reports whether the permission set contains perm.
func HasPermission(perms []Permission, perm Permission) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}
