package middleware

import (
	"net/http"

	"agriconecta-api/internal/apperror"
	"agriconecta-api/internal/rbac"

	"github.com/gin-gonic/gin"
)

// RequireCapability va después de AuthMiddleware.
func RequireCapability(capability rbac.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abort(c, apperror.New("UNAUTHORIZED", "Autenticação necessária", http.StatusUnauthorized))
			return
		}
		if !user.Can(capability) {
			abort(c, apperror.New("FORBIDDEN", "Sem permissão para esta operação", http.StatusForbidden))
			return
		}
		c.Next()
	}
}
