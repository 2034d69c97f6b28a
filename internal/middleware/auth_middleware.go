// auth_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"agriconecta-api/internal/apperror"
	"agriconecta-api/internal/service"

	"github.com/gin-gonic/gin"
)

const authUserKey = "authUser"

// TokenValidator resuelve el usuario de un token Bearer.
type TokenValidator interface {
	Authenticate(ctx context.Context, token string) (*service.AuthUser, error)
}

// Middleware que valida el token y guarda la info del usuario en el contexto
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, apperror.New("UNAUTHORIZED", "Cabeçalho Authorization em falta", http.StatusUnauthorized))
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			abort(c, apperror.New("UNAUTHORIZED", "Esquema de autorização inválido", http.StatusUnauthorized))
			return
		}

		user, err := tokens.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			abort(c, apperror.New("UNAUTHORIZED", "Token inválido ou expirado", http.StatusUnauthorized))
			return
		}

		// Guardamos los datos del usuario en el contexto
		c.Set(authUserKey, user)
		c.Set("userID", user.ID)
		c.Set("userRole", string(user.Role))
		c.Next()
	}
}

// OptionalAuth adjunta el usuario si llega un token válido; nunca rechaza la petición.
func OptionalAuth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if user, err := tokens.Authenticate(c.Request.Context(), strings.TrimSpace(token)); err == nil {
				c.Set(authUserKey, user)
				c.Set("userID", user.ID)
				c.Set("userRole", string(user.Role))
			}
		}
		c.Next()
	}
}

// CurrentUser devuelve el usuario autenticado o nil.
func CurrentUser(c *gin.Context) *service.AuthUser {
	v, ok := c.Get(authUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*service.AuthUser)
	return u
}

func abort(c *gin.Context, e *apperror.AppError) {
	c.AbortWithStatusJSON(e.HTTPStatus, e.ToHTTPError())
}
