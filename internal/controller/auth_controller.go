package controller

import (
	"context"
	"net/http"

	"agriconecta-api/internal/dto"
	"agriconecta-api/internal/middleware"
	"agriconecta-api/internal/model"
	"agriconecta-api/internal/rbac"
	"agriconecta-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Get(ctx context.Context, id string) (*model.User, error)
	SetRole(ctx context.Context, actor *service.AuthUser, id string, role string) (*model.User, error)
}

type AuthController struct {
	Service UserService
	Logger  *zap.Logger
}

func NewAuthController(s UserService, logger *zap.Logger) *AuthController {
	return &AuthController{Service: s, Logger: logger}
}

// POST /auth/register
func (ctl *AuthController) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := ctl.Service.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// POST /auth/login
func (ctl *AuthController) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := ctl.Service.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /auth/me
func (ctl *AuthController) Me(c *gin.Context) {
	current := middleware.CurrentUser(c)
	u, err := ctl.Service.Get(c.Request.Context(), current.ID)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":         u,
		"capabilities": rbac.CapabilitiesFor(current.Role),
	})
}

// PATCH /admin/users/:id/role
func (ctl *AuthController) SetRole(c *gin.Context) {
	var req dto.SetRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := ctl.Service.SetRole(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req.Role)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
