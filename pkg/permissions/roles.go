package permissions

// Member roles
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

var rolePermissions = map[string][]string{
	RoleOwner: {"*"},
	RoleAdmin: {
		"catalog.*",
		"queues.*",
		"appointments.*",
		"orders.*",
		"tables.*",
		"members.read",
		"qr.*",
		"notifications.read",
	},
	RoleStaff: {
		"catalog.read",
		"queues.operate",
		"orders.read",
		"orders.update_status",
		"appointments.read",
		"appointments.decide",
		"tables.read",
	},
}

// IsValidRole reports whether role is one of owner, admin, staff
func IsValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// Effective returns the role permissions merged with per-member extras
func Effective(role string, extra []string) []string {
	return MergePermissions(rolePermissions[role], extra)
}
