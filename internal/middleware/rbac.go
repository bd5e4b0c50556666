package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// SelfRule grants access when the :id path parameter is the caller's own roster record.
const SelfRule = "SELF"

// RBAC admits callers whose role is listed. SelfRule additionally admits a STUDENT
// requesting its own record.
func RBAC(allowed ...string) gin.HandlerFunc {
	roles := make(map[models.UserRole]struct{}, len(allowed))
	allowSelf := false
	for _, a := range allowed {
		if a == SelfRule {
			allowSelf = true
			continue
		}
		roles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		value, _ := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !ok || claims == nil {
			abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}
		if allowSelf && ownsTarget(claims, c.Param("id")) {
			c.Next()
			return
		}
		abort(c, appErrors.ErrForbidden)
	}
}

func ownsTarget(claims *models.JWTClaims, targetID string) bool {
	if targetID == "" || claims.Role != models.RoleStudent {
		return false
	}
	return claims.StudentID != "" && targetID == claims.StudentID
}
