package controller

import (
	"context"
	"net/http"
	"strings"

	"agriconecta-api/internal/apperror"
	"agriconecta-api/internal/dto"
	"agriconecta-api/internal/middleware"
	"agriconecta-api/internal/model"
	"agriconecta-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderService interface {
	UpdateOrder(ctx context.Context, orderID string, in service.OrderUpdate) (*model.Order, error)
	AttachPaymentProofByTrackingCode(ctx context.Context, code, reference, proofRef string) (*model.Order, error)
	Get(ctx context.Context, id string) (*model.Order, error)
	TrackByCode(ctx context.Context, code string) (*dto.TrackingResponse, error)
	List(ctx context.Context, q service.OrderListQuery) (*dto.PageResponse[*model.Order], error)
	WhatsAppLink(o *model.Order) (string, error)
}

type OrderController struct {
	Service OrderService
	Logger  *zap.Logger
}

func NewOrderController(s OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{Service: s, Logger: logger}
}

// GET /admin/orders?state=&page=&pageSize=
func (ctl *OrderController) List(c *gin.Context) {
	page, err := ctl.Service.List(c.Request.Context(), service.OrderListQuery{
		State:    c.Query("state"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "pageSize"),
	})
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /admin/orders/:id
func (ctl *OrderController) Get(c *gin.Context) {
	o, err := ctl.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// PATCH /admin/orders/:id: datos de pago y/o cambio de estado.
func (ctl *OrderController) Update(c *gin.Context) {
	var req dto.UpdateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	orderID := c.Param("id")
	state := strings.ToUpper(strings.TrimSpace(req.State))
	hasPayment := strings.TrimSpace(req.PaymentReference) != "" || strings.TrimSpace(req.ProofDocumentRef) != ""

	if state == "" && !hasPayment {
		respondError(c, ctl.Logger, apperror.Validation([]apperror.FieldError{
			{Field: "state", Rule: "required_without", Message: "indique o estado ou os dados de pagamento"},
		}))
		return
	}

	actor := ""
	if u := middleware.CurrentUser(c); u != nil {
		actor = u.ID
	}
	// Estado y pago en una sola escritura; una transición inválida no guarda nada
	o, err := ctl.Service.UpdateOrder(ctx, orderID, service.OrderUpdate{
		State:            model.OrderState(state),
		Note:             req.Note,
		Actor:            actor,
		PaymentReference: req.PaymentReference,
		ProofDocumentRef: req.ProofDocumentRef,
	})
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// GET /admin/orders/:id/whatsapp
func (ctl *OrderController) WhatsApp(c *gin.Context) {
	o, err := ctl.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	link, err := ctl.Service.WhatsAppLink(o)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.WhatsAppLinkResponse{URL: link})
}

// GET /orders/tracking/:code (público)
func (ctl *OrderController) Track(c *gin.Context) {
	res, err := ctl.Service.TrackByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /orders/tracking/:code/payment-proof (público)
func (ctl *OrderController) SubmitPaymentProof(c *gin.Context) {
	var req dto.PaymentProofRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := ctl.Service.AttachPaymentProofByTrackingCode(c.Request.Context(), c.Param("code"), req.PaymentReference, req.ProofDocumentRef)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, service.TrackingView(o))
}
