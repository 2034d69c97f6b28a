package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agriconecta-api/internal/apperror"
	"agriconecta-api/internal/dto"
	"agriconecta-api/internal/model"
	"agriconecta-api/internal/notify"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const trackingAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DeliveryFeePolicy decide la tasa de entrega; el checkout no la calcula.
type DeliveryFeePolicy interface {
	Fee(province string) float64
}

// ProvinceFeeTable: tasa por provincia con un valor por defecto.
type ProvinceFeeTable struct {
	Default    float64
	ByProvince map[string]float64
}

func NewProvinceFeeTable(def float64, byProvince map[string]float64) ProvinceFeeTable {
	m := make(map[string]float64, len(byProvince))
	for k, v := range byProvince {
		m[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return ProvinceFeeTable{Default: def, ByProvince: m}
}

func (t ProvinceFeeTable) Fee(province string) float64 {
	if v, ok := t.ByProvince[strings.ToLower(strings.TrimSpace(province))]; ok {
		return v
	}
	return t.Default
}

// BankDetails se devuelven al cliente para que haga la transferencia.
type BankDetails struct {
	BankName    string
	IBAN        string
	Beneficiary string
}

type CheckoutOptions struct {
	Fees     DeliveryFeePolicy
	Catalog  ProductLookup
	Notifier notify.Enqueuer
	Bank     BankDetails
	Logger   *zap.Logger
	Clock    func() time.Time
}

type CheckoutResult struct {
	Order   *model.Order
	Payment dto.PaymentInstructionsDTO
}

type CheckoutService struct {
	orders   OrderRepository
	counters SequenceGenerator
	fees     DeliveryFeePolicy
	catalog  ProductLookup
	notifier notify.Enqueuer
	bank     BankDetails
	logger   *zap.Logger
	clock    func() time.Time
	created  metric.Int64Counter
}

func NewCheckoutService(orders OrderRepository, counters SequenceGenerator, opts CheckoutOptions) *CheckoutService {
	if opts.Fees == nil {
		opts.Fees = NewProvinceFeeTable(0, nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	created, _ := otel.Meter("agriconecta-api/service").Int64Counter("orders_created_total")
	return &CheckoutService{
		orders:   orders,
		counters: counters,
		fees:     opts.Fees,
		catalog:  opts.Catalog,
		notifier: opts.Notifier,
		bank:     opts.Bank,
		logger:   opts.Logger.With(zap.String("component", "checkout")),
		clock:    opts.Clock,
		created:  created,
	}
}

// Checkout valida el carrito, persiste el pedido en PENDENTE y dispara la notificación.
func (s *CheckoutService) Checkout(ctx context.Context, req dto.CheckoutRequest) (*CheckoutResult, error) {
	normalizeCheckout(&req)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	items, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	number, err := s.nextNumber(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("checkout: order number: %w", err)
	}

	method := model.PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = model.PaymentBankTransfer
	}

	order := &model.Order{
		ID:            uuid.NewString(),
		Number:        number,
		TrackingCode:  newTrackingCode(),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		UserID:        req.UserID,
		DeliveryFee:   model.RoundMoney(s.fees.Fee(req.Address.Province)),
		Address: model.Address{
			Street:       req.Address.Street,
			Neighborhood: req.Address.Neighborhood,
			Municipality: req.Address.Municipality,
			Province:     req.Address.Province,
			Reference:    req.Address.Reference,
		},
		State:         model.StatePendente,
		CreatedAt:     now,
		UpdatedAt:     now,
		PaymentMethod: method,
		Items:         items,
		History: []model.HistoryEntry{{
			State:     model.StatePendente,
			Note:      firstNonEmpty(req.Notes, "Pedido criado"),
			Actor:     req.UserID,
			Timestamp: now,
		}},
	}
	order.RecalculateTotals()

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("checkout: persist order: %w", mapRepoErr(err))
	}

	s.created.Add(ctx, 1)
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("number", order.Number),
		zap.Float64("total", order.Total),
		zap.Int("items", len(order.Items)),
	)
	enqueueNotification(s.notifier, s.logger, orderCreatedNotification(order))

	return &CheckoutResult{Order: order, Payment: s.paymentInstructions(order)}, nil
}

func (s *CheckoutService) paymentInstructions(o *model.Order) dto.PaymentInstructionsDTO {
	return dto.PaymentInstructionsDTO{
		Method:      string(o.PaymentMethod),
		BankName:    s.bank.BankName,
		IBAN:        s.bank.IBAN,
		Beneficiary: s.bank.Beneficiary,
		Reference:   o.Number,
		Amount:      o.Total,
	}
}

// snapshotItems copia los items; con catálogo conectado, nombre y precio vienen del catálogo.
func (s *CheckoutService) snapshotItems(ctx context.Context, in []dto.CartItemDTO) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0, len(in))
	for _, it := range in {
		items = append(items, model.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.Price,
			Unit:      it.Unit,
			ImageURL:  it.ImageURL,
			Quantity:  it.Quantity,
		})
	}
	if s.catalog == nil {
		return items, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("checkout: load products: %w", err)
	}

	var fields []apperror.FieldError
	for i := range items {
		p, ok := products[items[i].ProductID]
		if !ok || !p.Active {
			fields = append(fields, apperror.FieldError{
				Field:   fmt.Sprintf("items[%d].productId", i),
				Rule:    "exists",
				Message: "produto indisponível",
			})
			continue
		}
		items[i].Name = p.Name
		items[i].UnitPrice = p.Price
		items[i].Unit = p.Unit
		items[i].ImageURL = p.MainImage()
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return items, nil
}

// nextNumber: AGC-<año>-<secuencia de 5 dígitos>, un contador por año.
func (s *CheckoutService) nextNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, fmt.Sprintf("orders-%d", now.Year()))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("AGC-%d-%05d", now.Year(), seq), nil
}

// Los bytes 6 y 8 de un UUID v4 llevan versión y variante.
var trackingBytes = [10]int{0, 1, 2, 3, 4, 5, 7, 9, 10, 11}

// newTrackingCode toma 10 bytes aleatorios de un UUID v4; 256 es múltiplo de 32, sin sesgo.
func newTrackingCode() string {
	u := uuid.New()
	b := make([]byte, len(trackingBytes))
	for i, idx := range trackingBytes {
		b[i] = trackingAlphabet[int(u[idx])%len(trackingAlphabet)]
	}
	return string(b)
}

func normalizeCheckout(req *dto.CheckoutRequest) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	if req.CustomerPhone != "" {
		req.CustomerPhone = NormalizePhone(req.CustomerPhone)
	}
	req.PaymentMethod = strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	req.Notes = sanitizeNote(req.Notes)
	req.Address.Street = strings.TrimSpace(req.Address.Street)
	req.Address.Neighborhood = strings.TrimSpace(req.Address.Neighborhood)
	req.Address.Municipality = strings.TrimSpace(req.Address.Municipality)
	req.Address.Province = strings.TrimSpace(req.Address.Province)
	req.Address.Reference = strings.TrimSpace(req.Address.Reference)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
