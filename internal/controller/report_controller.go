package controller

import (
	"context"
	"net/http"
	"time"

	"agriconecta-api/internal/dto"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReportService interface {
	ParseRange(startRaw, endRaw string) (time.Time, time.Time, error)
	SalesSeries(ctx context.Context, start, end time.Time, groupBy string) ([]dto.SalesPointDTO, error)
	TopProducts(ctx context.Context, start, end time.Time, limit int) ([]dto.TopProductDTO, error)
	SalesReport(ctx context.Context, start, end time.Time) (*dto.SalesReportDTO, error)
	Dashboard(ctx context.Context) (*dto.DashboardDTO, error)
}

type ReportController struct {
	Service ReportService
	Logger  *zap.Logger
}

func NewReportController(s ReportService, logger *zap.Logger) *ReportController {
	return &ReportController{Service: s, Logger: logger}
}

func (ctl *ReportController) dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	start, end, err := ctl.Service.ParseRange(c.Query("start"), c.Query("end"))
	if err != nil {
		respondError(c, ctl.Logger, err)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// GET /admin/reports/sales-series?start=&end=&groupBy=day|week|month
func (ctl *ReportController) SalesSeries(c *gin.Context) {
	start, end, ok := ctl.dateRange(c)
	if !ok {
		return
	}
	points, err := ctl.Service.SalesSeries(c.Request.Context(), start, end, c.Query("groupBy"))
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": points})
}

// GET /admin/reports/top-products?start=&end=&limit=
func (ctl *ReportController) TopProducts(c *gin.Context) {
	start, end, ok := ctl.dateRange(c)
	if !ok {
		return
	}
	top, err := ctl.Service.TopProducts(c.Request.Context(), start, end, queryInt(c, "limit"))
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": top})
}

// GET /admin/reports/sales?start=&end=
func (ctl *ReportController) Sales(c *gin.Context) {
	start, end, ok := ctl.dateRange(c)
	if !ok {
		return
	}
	rep, err := ctl.Service.SalesReport(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// GET /admin/reports/dashboard
func (ctl *ReportController) Dashboard(c *gin.Context) {
	d, err := ctl.Service.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
