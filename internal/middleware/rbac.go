package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
	"github.com/noah-isme/uni-registrar-api/pkg/response"
)

type studentResolver interface {
	GetByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

// RequireRoles allows the request through only when the authenticated
// role is in the allow list. Must run after Authenticate.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := allowed[Role(c)]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSelfOrRoles lets the listed roles through unconditionally. Any
// other caller must own the student addressed by the named path
// parameter: the caller's identity is resolved to its student record and
// compared against the parameter. A caller whose identity resolves to no
// student is denied. Must run after Authenticate.
func RequireSelfOrRoles(students studentResolver, param string, roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := allowed[Role(c)]; ok {
			c.Next()
			return
		}

		self, err := students.GetByUserID(c.Request.Context(), UserID(c))
		if err != nil || self.ID != c.Param(param) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
