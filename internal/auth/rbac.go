package auth

import (
	"fmt"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

type Permission string

const (
	// Dashboard permissions
	PermissionViewDashboard Permission = "view:dashboard"
	PermissionViewAnalytics Permission = "view:analytics"
	PermissionExportReports Permission = "export:reports"

	// Queue permissions
	PermissionViewQueues  Permission = "view:queues"
	PermissionManageQueue Permission = "manage:queue"

	// Alert permissions
	PermissionViewAlerts   Permission = "view:alerts"
	PermissionManageAlerts Permission = "manage:alerts"

	// Audit permissions
	PermissionViewAudit Permission = "view:audit"

	// Admin permissions
	PermissionManageUsers    Permission = "manage:users"
	PermissionViewSettings   Permission = "view:settings"
	PermissionManageSettings Permission = "manage:settings"
)

// rolePermissions is the static role to permission mapping. Every role in
// the closed set has an entry; permission checks are pure lookups against
// this table and nothing else.
var rolePermissions = map[models.Role][]Permission{
	models.RoleAdmin: {
		PermissionViewDashboard, PermissionViewAnalytics, PermissionExportReports,
		PermissionViewQueues, PermissionManageQueue,
		PermissionViewAlerts, PermissionManageAlerts,
		PermissionViewAudit,
		PermissionManageUsers, PermissionViewSettings, PermissionManageSettings,
	},
	models.RoleOperator: {
		PermissionViewDashboard, PermissionViewAnalytics,
		PermissionViewQueues, PermissionManageQueue,
		PermissionViewAlerts, PermissionManageAlerts,
		PermissionViewSettings,
	},
	models.RoleAuditor: {
		PermissionViewDashboard, PermissionViewAnalytics, PermissionExportReports,
		PermissionViewQueues,
		PermissionViewAudit,
	},
	models.RoleViewer: {
		PermissionViewDashboard, PermissionViewAnalytics,
		PermissionViewQueues,
	},
}

// PermissionError is returned by RequirePermission when the check fails.
// It carries the denied permission and the user's role for caller-side
// messaging.
type PermissionError struct {
	Permission Permission
	UserRole   models.Role
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: requires %q, user role is %q",
		e.Permission, e.UserRole)
}

// RolePermissions returns the permission set mapped from the role. Unknown
// roles map to the empty set.
func RolePermissions(role models.Role) []Permission {
	return rolePermissions[role]
}

// HasPermission reports whether the user's role grants the permission.
// A nil user or an unknown role yields false, never an error.
func HasPermission(user *models.User, permission Permission) bool {
	if user == nil {
		return false
	}
	for _, p := range rolePermissions[user.Role] {
		if p == permission {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether at least one of the permissions is
// granted.
func HasAnyPermission(user *models.User, permissions ...Permission) bool {
	for _, p := range permissions {
		if HasPermission(user, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every listed permission is granted.
// An empty list is vacuously true; callers gating on "deny by default"
// must not pass an empty list.
func HasAllPermissions(user *models.User, permissions ...Permission) bool {
	for _, p := range permissions {
		if !HasPermission(user, p) {
			return false
		}
	}
	return true
}

// HasRole reports strict equality on the user's role.
func HasRole(user *models.User, role models.Role) bool {
	return user != nil && user.Role == role
}

// HasAnyRole reports whether the user's role is one of the given roles.
func HasAnyRole(user *models.User, roles ...models.Role) bool {
	if user == nil {
		return false
	}
	for _, r := range roles {
		if user.Role == r {
			return true
		}
	}
	return false
}

// HasMinimumRole reports whether the user's role level is at least the
// minimum role's level. Unknown roles have level 0 and satisfy nothing.
func HasMinimumRole(user *models.User, minimum models.Role) bool {
	if user == nil || !user.Role.Valid() {
		return false
	}
	return user.Role.Level() >= minimum.Level()
}

// RequirePermission is HasPermission for call sites where a denial must
// halt the workflow. It returns a *PermissionError exactly when
// HasPermission would return false, and nil otherwise.
func RequirePermission(user *models.User, permission Permission) error {
	if HasPermission(user, permission) {
		return nil
	}
	var role models.Role
	if user != nil {
		role = user.Role
	}
	return &PermissionError{Permission: permission, UserRole: role}
}
