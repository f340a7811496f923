package auth_test

import (
	"testing"

	auth "github.com/coachware/go-tenant-auth"
	"github.com/stretchr/testify/assert"
)

func TestIsValidRole(t *testing.T) {
	assert.True(t, auth.IsValidRole(auth.RoleOwner))
	assert.True(t, auth.IsValidRole(auth.RoleStaff))
	assert.True(t, auth.IsValidRole(auth.RoleMember))
	assert.False(t, auth.IsValidRole("admin"))
	assert.False(t, auth.IsValidRole(""))
}

func TestInvitableRolesExcludeOwner(t *testing.T) {
	roles := auth.InvitableRoles()
	assert.ElementsMatch(t, []auth.Role{auth.RoleStaff, auth.RoleMember}, roles)

	assert.False(t, auth.IsInvitable(auth.RoleOwner))
	assert.False(t, auth.IsInvitable("admin"))
	assert.True(t, auth.IsInvitable(auth.RoleStaff))
	assert.True(t, auth.IsInvitable(auth.RoleMember))
}

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role auth.Role
		min  auth.Role
		want bool
	}{
		{auth.RoleOwner, auth.RoleMember, true},
		{auth.RoleOwner, auth.RoleOwner, true},
		{auth.RoleStaff, auth.RoleMember, true},
		{auth.RoleStaff, auth.RoleOwner, false},
		{auth.RoleMember, auth.RoleStaff, false},
		{auth.RoleMember, auth.RoleMember, true},
		{"admin", auth.RoleMember, false},
		{auth.RoleOwner, "admin", false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, auth.RoleAtLeast(tc.role, tc.min), "%s >= %s", tc.role, tc.min)
	}
}

func TestParseRole(t *testing.T) {
	role, ok := auth.ParseRole("staff")
	assert.True(t, ok)
	assert.Equal(t, auth.RoleStaff, role)

	_, ok = auth.ParseRole("superuser")
	assert.False(t, ok)
}

func TestAllRolesAreHierarchicallyOrdered(t *testing.T) {
	roles := auth.AllRoles()
	for i := 1; i < len(roles); i++ {
		assert.True(t, auth.RoleAtLeast(roles[i], roles[i-1]))
	}
}
