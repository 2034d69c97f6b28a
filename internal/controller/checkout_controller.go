package controller

import (
	"context"
	"net/http"

	"agriconecta-api/internal/dto"
	"agriconecta-api/internal/middleware"
	"agriconecta-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutService interface {
	Checkout(ctx context.Context, req dto.CheckoutRequest) (*service.CheckoutResult, error)
}

type CheckoutController struct {
	Service CheckoutService
	Logger  *zap.Logger
}

func NewCheckoutController(s CheckoutService, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{Service: s, Logger: logger}
}

// POST /checkout: no requiere cuenta; si hay token el pedido queda asociado al usuario.
func (ctl *CheckoutController) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	if u := middleware.CurrentUser(c); u != nil {
		req.UserID = u.ID
	}

	res, err := ctl.Service.Checkout(c.Request.Context(), req)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}

	o := res.Order
	c.JSON(http.StatusCreated, dto.CheckoutResponse{
		OrderID:             o.ID,
		Number:              o.Number,
		TrackingCode:        o.TrackingCode,
		Subtotal:            o.Subtotal,
		DeliveryFee:         o.DeliveryFee,
		Total:               o.Total,
		PaymentInstructions: res.Payment,
	})
}
