package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
	"github.com/opencampus/ucms-api/pkg/response"
)

// AllowSelf is the RBAC marker permitting a request whose :id path
// parameter equals the caller's user ID, regardless of role.
const AllowSelf = "SELF"

// RBAC gates a route to the listed roles. Must run after JWT.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	roles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		if a == AllowSelf {
			allowSelf = true
			continue
		}
		roles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		v, ok := c.Get(ContextUserKey)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := v.(*models.JWTClaims)

		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}
		if allowSelf && c.Param("id") != "" && c.Param("id") == claims.UserID {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is RBAC with typed role arguments.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
