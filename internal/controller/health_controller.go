package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck devuelve nil si la dependencia responde.
type HealthCheck func(ctx context.Context) error

type HealthController struct {
	Checks  map[string]HealthCheck
	Timeout time.Duration
}

func NewHealthController(checks map[string]HealthCheck) *HealthController {
	return &HealthController{Checks: checks, Timeout: 2 * time.Second}
}

// GET /health
func (ctl *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.Timeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(ctl.Checks))
	for name, check := range ctl.Checks {
		if err := check(ctx); err != nil {
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "checks": checks})
}
