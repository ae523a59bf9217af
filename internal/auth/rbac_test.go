package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

func userWithRole(role models.Role) *models.User {
	return &models.User{ID: 1, Email: "user@mailboard.local", Role: role}
}

func allPermissions() []Permission {
	return []Permission{
		PermissionViewDashboard, PermissionViewAnalytics, PermissionExportReports,
		PermissionViewQueues, PermissionManageQueue,
		PermissionViewAlerts, PermissionManageAlerts,
		PermissionViewAudit,
		PermissionManageUsers, PermissionViewSettings, PermissionManageSettings,
	}
}

func TestHasPermission(t *testing.T) {
	t.Run("matches the static table for every role", func(t *testing.T) {
		for _, role := range models.Roles() {
			granted := make(map[Permission]bool)
			for _, p := range RolePermissions(role) {
				granted[p] = true
			}
			user := userWithRole(role)
			for _, p := range allPermissions() {
				assert.Equal(t, granted[p], HasPermission(user, p),
					"role %s permission %s", role, p)
			}
		}
	})

	t.Run("admin has every permission", func(t *testing.T) {
		user := userWithRole(models.RoleAdmin)
		for _, p := range allPermissions() {
			assert.True(t, HasPermission(user, p), "admin missing %s", p)
		}
	})

	t.Run("viewer cannot manage anything", func(t *testing.T) {
		user := userWithRole(models.RoleViewer)
		assert.True(t, HasPermission(user, PermissionViewDashboard))
		assert.True(t, HasPermission(user, PermissionViewQueues))
		assert.False(t, HasPermission(user, PermissionManageQueue))
		assert.False(t, HasPermission(user, PermissionManageUsers))
		assert.False(t, HasPermission(user, PermissionViewAudit))
	})

	t.Run("auditor sees the audit log, operator does not", func(t *testing.T) {
		assert.True(t, HasPermission(userWithRole(models.RoleAuditor), PermissionViewAudit))
		assert.False(t, HasPermission(userWithRole(models.RoleOperator), PermissionViewAudit))
	})

	t.Run("nil user has no permissions", func(t *testing.T) {
		assert.False(t, HasPermission(nil, PermissionViewDashboard))
	})

	t.Run("unknown role has no permissions", func(t *testing.T) {
		user := userWithRole(models.Role("superuser"))
		for _, p := range allPermissions() {
			assert.False(t, HasPermission(user, p))
		}
	})
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	operator := userWithRole(models.RoleOperator)

	t.Run("any is true with one granted permission", func(t *testing.T) {
		assert.True(t, HasAnyPermission(operator, PermissionViewAudit, PermissionManageQueue))
		assert.False(t, HasAnyPermission(operator, PermissionViewAudit, PermissionManageUsers))
	})

	t.Run("all requires every permission", func(t *testing.T) {
		assert.True(t, HasAllPermissions(operator, PermissionViewQueues, PermissionManageQueue))
		assert.False(t, HasAllPermissions(operator, PermissionViewQueues, PermissionViewAudit))
	})

	t.Run("all on an empty list is vacuously true", func(t *testing.T) {
		// Deliberate: callers gating on deny-by-default must not pass an
		// empty list.
		assert.True(t, HasAllPermissions(operator))
		assert.True(t, HasAllPermissions(nil))
	})

	t.Run("any on an empty list is false", func(t *testing.T) {
		assert.False(t, HasAnyPermission(operator))
	})
}

func TestRoleChecks(t *testing.T) {
	operator := userWithRole(models.RoleOperator)

	t.Run("HasRole is strict equality", func(t *testing.T) {
		assert.True(t, HasRole(operator, models.RoleOperator))
		assert.False(t, HasRole(operator, models.RoleAdmin))
		assert.False(t, HasRole(nil, models.RoleViewer))
	})

	t.Run("HasAnyRole is set membership", func(t *testing.T) {
		assert.True(t, HasAnyRole(operator, models.RoleAdmin, models.RoleOperator))
		assert.False(t, HasAnyRole(operator, models.RoleAdmin, models.RoleAuditor))
		assert.False(t, HasAnyRole(nil, models.RoleAdmin))
	})
}

func TestHasMinimumRole(t *testing.T) {
	t.Run("respects the total order of role levels", func(t *testing.T) {
		roles := models.Roles()
		for _, a := range roles {
			for _, b := range roles {
				user := userWithRole(a)
				expected := a.Level() >= b.Level()
				assert.Equal(t, expected, HasMinimumRole(user, b),
					"user role %s, minimum %s", a, b)
			}
		}
	})

	t.Run("every role satisfies viewer", func(t *testing.T) {
		for _, role := range models.Roles() {
			assert.True(t, HasMinimumRole(userWithRole(role), models.RoleViewer))
		}
	})

	t.Run("only admin satisfies admin", func(t *testing.T) {
		assert.True(t, HasMinimumRole(userWithRole(models.RoleAdmin), models.RoleAdmin))
		for _, role := range []models.Role{models.RoleOperator, models.RoleAuditor, models.RoleViewer} {
			assert.False(t, HasMinimumRole(userWithRole(role), models.RoleAdmin))
		}
	})

	t.Run("unknown role satisfies nothing", func(t *testing.T) {
		user := userWithRole(models.Role("superuser"))
		assert.False(t, HasMinimumRole(user, models.RoleViewer))
		assert.False(t, HasMinimumRole(nil, models.RoleViewer))
	})
}

func TestRequirePermission(t *testing.T) {
	t.Run("nil exactly when the boolean check passes", func(t *testing.T) {
		for _, role := range models.Roles() {
			user := userWithRole(role)
			for _, p := range allPermissions() {
				err := RequirePermission(user, p)
				if HasPermission(user, p) {
					assert.NoError(t, err)
				} else {
					assert.Error(t, err)
				}
			}
		}
	})

	t.Run("carries the permission and role", func(t *testing.T) {
		err := RequirePermission(userWithRole(models.RoleViewer), PermissionManageQueue)
		require.Error(t, err)

		var permErr *PermissionError
		require.True(t, errors.As(err, &permErr))
		assert.Equal(t, PermissionManageQueue, permErr.Permission)
		assert.Equal(t, models.RoleViewer, permErr.UserRole)
		assert.Contains(t, permErr.Error(), "manage:queue")
	})

	t.Run("nil user yields an error with empty role", func(t *testing.T) {
		err := RequirePermission(nil, PermissionViewDashboard)
		require.Error(t, err)

		var permErr *PermissionError
		require.True(t, errors.As(err, &permErr))
		assert.Equal(t, models.Role(""), permErr.UserRole)
	})
}

func TestRoleTableCoverage(t *testing.T) {
	// The mapping table must cover every role with at least one entry so
	// that no role silently falls back to "no permissions".
	for _, role := range models.Roles() {
		t.Run(fmt.Sprintf("role %s has permissions", role), func(t *testing.T) {
			assert.NotEmpty(t, RolePermissions(role))
		})
	}
}
