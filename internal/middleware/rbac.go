package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/estudio-sgt/sgt-api/internal/models"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
	"github.com/estudio-sgt/sgt-api/pkg/response"
)

// RequireRoles admits only the listed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ReadOnlyFor rejects state-changing methods for the given roles. CONSULTA
// users browse everything but never write.
func ReadOnlyFor(roles ...models.UserRole) gin.HandlerFunc {
	blocked := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		blocked[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := blocked[claims.Role]; ok && !isSafeMethod(c.Request.Method) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "read-only role"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
