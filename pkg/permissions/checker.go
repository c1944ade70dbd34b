// Package permissions provides utilities for checking member permission arrays
// against required permissions with support for wildcards.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "queues.*")
//   - "resource.action" - Specific action (e.g., "queues.operate")
package permissions

import (
	"strings"
)

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "orders.*" matches "orders.read", "orders.update_status", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range userPerms {
		if p == "*" {
			return true // Full admin access
		}
		if p == required {
			return true // Exact match
		}
		// Check wildcard patterns like "orders.*"
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// MergePermissions merges multiple permission sets, removing duplicates.
// Useful for combining role permissions with permission overrides.
func MergePermissions(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result
}

// CommonPermissions is the list of permissions understood by the API.
// This can be used for validation and autocomplete.
var CommonPermissions = []string{
	// Merchant settings
	"merchant.update",

	// Members
	"members.read",
	"members.manage",
	"members.*",

	// Catalog
	"catalog.read",
	"catalog.manage",
	"catalog.*",

	// Tables
	"tables.read",
	"tables.manage",
	"tables.*",

	// Queues
	"queues.read",
	"queues.manage",
	"queues.operate",
	"queues.*",

	// Appointments
	"appointments.read",
	"appointments.manage",
	"appointments.decide",
	"appointments.*",

	// Orders
	"orders.read",
	"orders.update_status",
	"orders.cancel",
	"orders.*",

	// QR codes
	"qr.read",
	"qr.manage",
	"qr.*",

	// Notification log
	"notifications.read",

	// Full access
	"*",
}

// IsValidPermission checks if a permission string is in the known list.
// Allows wildcards and custom permissions not in the standard list.
func IsValidPermission(perm string) bool {
	// Allow wildcard
	if perm == "*" {
		return true
	}

	// Check against known permissions
	for _, p := range CommonPermissions {
		if p == perm {
			return true
		}
	}

	// Allow any permission that follows the pattern resource.action
	parts := strings.Split(perm, ".")
	return len(parts) >= 2
}
