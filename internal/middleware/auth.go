package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mailboard-io/mailboard-ce/internal/auth"
	"github.com/mailboard-io/mailboard-ce/internal/metrics"
	"github.com/mailboard-io/mailboard-ce/internal/models"
)

const userContextKey = "user"

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
}

func NewAuthMiddleware(jwtManager *auth.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// RequireAuth validates the bearer token and places the authenticated user
// in the request context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			m.unauthorized(c, "missing authorization token")
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			m.unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(userContextKey, &models.User{
			ID:    claims.UserID,
			Email: claims.Email,
			Role:  claims.Role,
		})
		c.Next()
	}
}

// RequirePermission gates a route on one permission. Runs after RequireAuth.
func (m *AuthMiddleware) RequirePermission(permission auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := UserFromContext(c)
		if err := auth.RequirePermission(user, permission); err != nil {
			var permErr *auth.PermissionError
			if errors.As(err, &permErr) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":      "permission denied",
					"permission": permErr.Permission,
					"user_role":  permErr.UserRole,
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}

// RequireMinimumRole gates a route on a minimum privilege level.
func (m *AuthMiddleware) RequireMinimumRole(minimum models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := UserFromContext(c)
		if !auth.HasMinimumRole(user, minimum) {
			var role models.Role
			if user != nil {
				role = user.Role
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":        "insufficient role",
				"minimum_role": minimum,
				"user_role":    role,
			})
			return
		}
		c.Next()
	}
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(c *gin.Context) *models.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, ok := v.(*models.User)
	if !ok {
		return nil
	}
	return user
}

func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// The browser WebSocket API cannot set headers, so the event stream
	// endpoint accepts the token as a query parameter.
	if token := c.Query("token"); token != "" {
		return token
	}
	if cookie, err := c.Cookie("mailboard_token"); err == nil {
		return cookie
	}
	return ""
}

func (m *AuthMiddleware) unauthorized(c *gin.Context, message string) {
	metrics.AuthFailures.Inc()
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
