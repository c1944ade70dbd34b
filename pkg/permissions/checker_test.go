package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		perms    []string
		required string
		want     bool
	}{
		{"empty requirement", nil, "", true},
		{"full access", []string{"*"}, "orders.cancel", true},
		{"exact match", []string{"queues.operate"}, "queues.operate", true},
		{"wildcard match", []string{"orders.*"}, "orders.update_status", true},
		{"wildcard does not leak to siblings", []string{"orders.*"}, "ordersx.read", false},
		{"missing", []string{"catalog.read"}, "catalog.manage", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.perms, tt.required))
		})
	}
}

func TestRolePermissions(t *testing.T) {
	owner := Effective(RoleOwner, nil)
	admin := Effective(RoleAdmin, nil)
	staff := Effective(RoleStaff, nil)

	assert.True(t, HasPermission(owner, "merchant.update"))
	assert.True(t, HasPermission(owner, "members.manage"))

	assert.True(t, HasPermission(admin, "orders.cancel"))
	assert.True(t, HasPermission(admin, "qr.manage"))
	assert.True(t, HasPermission(admin, "members.read"))
	assert.False(t, HasPermission(admin, "members.manage"))
	assert.False(t, HasPermission(admin, "merchant.update"))

	assert.True(t, HasPermission(staff, "queues.operate"))
	assert.True(t, HasPermission(staff, "orders.update_status"))
	assert.False(t, HasPermission(staff, "orders.cancel"))
	assert.False(t, HasPermission(staff, "queues.manage"))
}

func TestEffective_MergesExtras(t *testing.T) {
	perms := Effective(RoleStaff, []string{"orders.cancel", "catalog.read"})

	assert.True(t, HasPermission(perms, "orders.cancel"))
	count := 0
	for _, p := range perms {
		if p == "catalog.read" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEffective_DoesNotShareRoleSlice(t *testing.T) {
	perms := Effective(RoleAdmin, nil)
	perms[0] = "mutated"
	assert.Equal(t, "catalog.*", Effective(RoleAdmin, nil)[0])
	assert.True(t, IsValidRole(RoleStaff))
	assert.False(t, IsValidRole("manager"))
}

func TestIsValidPermission(t *testing.T) {
	assert.True(t, IsValidPermission("*"))
	assert.True(t, IsValidPermission("queues.operate"))
	assert.True(t, IsValidPermission("custom.thing"))
	assert.False(t, IsValidPermission("queues"))
}
