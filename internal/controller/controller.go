package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"agriconecta-api/internal/apperror"
	"agriconecta-api/internal/observability"
	"agriconecta-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// mapError traduce errores de servicio al formato HTTP.
func mapError(err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return apperror.Validation(verr.Fields)
	}

	switch {
	case errors.Is(err, service.ErrCategoryHasProducts):
		return apperror.Wrap("CATEGORY_HAS_PRODUCTS", "A categoria tem produtos associados", err, http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperror.Wrap("INVALID_CREDENTIALS", "Credenciais inválidas", err, http.StatusUnauthorized)
	case errors.Is(err, service.ErrUnauthorized):
		return apperror.Wrap("UNAUTHORIZED", "Autenticação necessária", err, http.StatusUnauthorized)
	case errors.Is(err, service.ErrForbidden):
		return apperror.Wrap("FORBIDDEN", "Sem permissão para esta operação", err, http.StatusForbidden)
	case errors.Is(err, service.ErrNotFound):
		return apperror.Wrap("NOT_FOUND", "Recurso não encontrado", err, http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidTransition):
		return apperror.Wrap("INVALID_TRANSITION", err.Error(), err, http.StatusConflict)
	case errors.Is(err, service.ErrConflict):
		return apperror.Wrap("CONFLICT", "O registo foi alterado ou já existe", err, http.StatusConflict)
	}
	return apperror.Internal(err)
}

// respondError escribe el error; los 5xx se loguean con la causa, que nunca llega al cliente.
func respondError(c *gin.Context, fallback *zap.Logger, err error) {
	appErr := mapError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		observability.FromContext(c.Request.Context(), fallback).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToHTTPError())
}

// bindJSON solo decodifica; la validación la hace el servicio.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		appErr := apperror.Wrap("INVALID_BODY", "Corpo JSON inválido", err, http.StatusBadRequest)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToHTTPError())
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return 0
	}
	return v
}

func queryBool(c *gin.Context, key string) *bool {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
