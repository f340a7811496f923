package auth

// Role is the tenant-scoped role of a profile
type Role = string

const (
	// RoleOwner owns the tenant and manages billing, staff, and invites
	RoleOwner Role = "owner"
	// RoleStaff is a coach operating under a tenant
	RoleStaff Role = "staff"
	// RoleMember is an athlete/client under a tenant
	RoleMember Role = "member"
)

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleStaff, RoleMember:
		return true
	default:
		return false
	}
}

// InvitableRoles returns the roles an owner may mint invites for. Ownership
// is never granted through an invite.
func InvitableRoles() []Role {
	return []Role{RoleStaff, RoleMember}
}

// IsInvitable reports whether a role can be granted through an invite.
func IsInvitable(r Role) bool {
	return r == RoleStaff || r == RoleMember
}

// RoleAtLeast checks if a role meets the minimum required level
func RoleAtLeast(r, min Role) bool {
	hierarchy := map[Role]int{
		RoleMember: 0,
		RoleStaff:  1,
		RoleOwner:  2,
	}

	current, ok := hierarchy[r]
	if !ok {
		return false
	}

	minLevel, ok := hierarchy[min]
	if !ok {
		return false
	}

	return current >= minLevel
}

// AllRoles returns all predefined roles in hierarchical order
func AllRoles() []Role {
	return []Role{RoleMember, RoleStaff, RoleOwner}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}
