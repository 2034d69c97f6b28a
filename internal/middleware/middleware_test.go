package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"agriconecta-api/internal/rbac"
	"agriconecta-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubValidator map[string]*service.AuthUser

func (s stubValidator) Authenticate(_ context.Context, token string) (*service.AuthUser, error) {
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, errors.New("bad token")
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(capability rbac.Capability) *gin.Engine {
	tokens := stubValidator{
		"staff": {ID: "s1", Role: rbac.RoleStaff},
		"admin": {ID: "a1", Role: rbac.RoleAdmin},
	}
	r := gin.New()
	r.GET("/p", AuthMiddleware(tokens), RequireCapability(capability), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUser(c).ID)
	})
	return r
}

func TestAuthAndCapability(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized, body: "UNAUTHORIZED"},
		{name: "wrong scheme", header: "Basic staff", status: http.StatusUnauthorized, body: "UNAUTHORIZED"},
		{name: "invalid token", header: "Bearer nope", status: http.StatusUnauthorized, body: "UNAUTHORIZED"},
		{name: "staff lacks reports", header: "Bearer staff", status: http.StatusForbidden, body: "FORBIDDEN"},
		{name: "admin views reports", header: "bearer admin", status: http.StatusOK, body: "a1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(rbac.CapReportsView).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRequireCapabilityWithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/p", RequireCapability(rbac.CapOrdersRead), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "abc-123", entries[1].ContextMap()["request_id"])
	assert.Equal(t, int64(500), entries[1].ContextMap()["status"])
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.GET("/p", OptionalAuth(stubValidator{"staff": {ID: "s1", Role: rbac.RoleStaff}}), func(c *gin.Context) {
		if u := CurrentUser(c); u != nil {
			c.String(http.StatusOK, u.ID)
			return
		}
		c.String(http.StatusOK, "anon")
	})

	for header, want := range map[string]string{"": "anon", "Bearer nope": "anon", "Bearer staff": "s1"} {
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Body.String())
	}
}
