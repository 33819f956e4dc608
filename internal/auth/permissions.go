package auth

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermResourceRead    Permission = "resource:read"
	PermResourceWrite   Permission = "resource:write"
	PermResourceDelete  Permission = "resource:delete"
	PermUserManage      Permission = "user:manage"
	PermAccessLogRead   Permission = "accesslog:read"
	PermAccessLogWrite  Permission = "accesslog:write"
	PermEventsSubscribe Permission = "events:subscribe"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model; route
// role sets are derived from it with RolesWith.
var rolePermissions = map[Role][]Permission{
	RoleStaff: {
		PermResourceRead,
	},
	RoleManager: {
		PermResourceRead,
		PermResourceWrite,
		PermAccessLogWrite,
	},
	RoleSecurityAdmin: {
		PermResourceRead,
		PermResourceWrite,
		PermResourceDelete,
		PermUserManage,
		PermAccessLogRead,
		PermAccessLogWrite,
		PermEventsSubscribe,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// RolesWith returns the set of roles granted perm.
//
// The result is never empty for a known permission, so it cannot be mistaken
// for the "any authenticated principal" set.
func RolesWith(perm Permission) RoleSet {
	set := RoleSet{}
	for _, role := range ValidRoles {
		if HasPermission(role, perm) {
			set[role] = struct{}{}
		}
	}
	return set
}
