package controller

import (
	"context"
	"net/http"

	"agriconecta-api/internal/notify"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DeadLetterLister interface {
	List(ctx context.Context, limit int64) ([]notify.DeadLetter, error)
}

type NotificationController struct {
	DeadLetters DeadLetterLister
	Logger      *zap.Logger
}

func NewNotificationController(dl DeadLetterLister, logger *zap.Logger) *NotificationController {
	return &NotificationController{DeadLetters: dl, Logger: logger}
}

// GET /admin/notifications/dead-letters?limit=
func (ctl *NotificationController) ListDeadLetters(c *gin.Context) {
	items, err := ctl.DeadLetters.List(c.Request.Context(), int64(queryInt(c, "limit")))
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
