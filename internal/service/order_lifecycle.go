package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"agriconecta-api/internal/dto"
	"agriconecta-api/internal/model"
	"agriconecta-api/internal/notify"
	"agriconecta-api/internal/repository"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	maxNoteLength     = 500
	maxVersionRetries = 3
)

// Transiciones permitidas en modo estricto: avance lineal y cancelación desde cualquier estado no final.
var strictTransitions = map[model.OrderState][]model.OrderState{
	model.StatePendente:     {model.StatePago, model.StateCancelado},
	model.StatePago:         {model.StateEmPreparacao, model.StateCancelado},
	model.StateEmPreparacao: {model.StateEmTransito, model.StateCancelado},
	model.StateEmTransito:   {model.StateEntregue, model.StateCancelado},
}

type LifecycleOptions struct {
	// Strict=false acepta cualquier estado después de cualquier otro.
	Strict   bool
	Notifier notify.Enqueuer
	Logger   *zap.Logger
	Clock    func() time.Time
}

// OrderLifecycleService es el único camino para cambiar el estado de un pedido.
type OrderLifecycleService struct {
	repo     OrderRepository
	strict   bool
	notifier notify.Enqueuer
	logger   *zap.Logger
	clock    func() time.Time

	tracer      trace.Tracer
	transitions metric.Int64Counter
	conflicts   metric.Int64Counter
}

func NewOrderLifecycleService(repo OrderRepository, opts LifecycleOptions) *OrderLifecycleService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	meter := otel.Meter("agriconecta-api/service")
	transitions, _ := meter.Int64Counter("order_transitions_total")
	conflicts, _ := meter.Int64Counter("order_version_conflicts_total")

	return &OrderLifecycleService{
		repo:        repo,
		strict:      opts.Strict,
		notifier:    opts.Notifier,
		logger:      opts.Logger.With(zap.String("component", "order.lifecycle")),
		clock:       opts.Clock,
		tracer:      otel.Tracer("agriconecta-api/service"),
		transitions: transitions,
		conflicts:   conflicts,
	}
}

// CanTransition reports whether from -> to is allowed in the configured mode.
// Repeating the current state is always allowed and only records a note.
func (s *OrderLifecycleService) CanTransition(from, to model.OrderState) bool {
	if from == to {
		return true
	}
	if !s.strict {
		return true
	}
	return contains(strictTransitions[from], to)
}

// Transition valida y realiza el cambio de estado.
func (s *OrderLifecycleService) Transition(ctx context.Context, orderID string, newState model.OrderState, note, actor string) (*model.Order, error) {
	return s.transition(ctx, orderID, newState, note, actor, payment{})
}

// OrderUpdate es el PATCH del admin: estado y/o datos de pago.
type OrderUpdate struct {
	State            model.OrderState
	Note             string
	Actor            string
	PaymentReference string
	ProofDocumentRef string
}

type payment struct {
	reference string
	proofRef  string
}

func (p payment) empty() bool { return p.reference == "" && p.proofRef == "" }

// UpdateOrder aplica estado y pago en una sola escritura condicional.
// Si la transición no es válida no se guarda nada.
func (s *OrderLifecycleService) UpdateOrder(ctx context.Context, orderID string, in OrderUpdate) (*model.Order, error) {
	pay := payment{reference: strings.TrimSpace(in.PaymentReference), proofRef: strings.TrimSpace(in.ProofDocumentRef)}
	state := model.OrderState(strings.ToUpper(strings.TrimSpace(string(in.State))))
	if state == "" {
		return s.attachPayment(ctx, orderID, pay.reference, pay.proofRef, false)
	}
	return s.transition(ctx, orderID, state, in.Note, in.Actor, pay)
}

func (s *OrderLifecycleService) transition(ctx context.Context, orderID string, newState model.OrderState, note, actor string, pay payment) (*model.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderLifecycle.Transition", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.new_state", string(newState)),
	))
	defer span.End()

	if !newState.Valid() {
		return nil, fieldError("state", "oneof", "estado inválido")
	}
	note = sanitizeNote(note)

	for attempt := 1; attempt <= maxVersionRetries; attempt++ {
		ord, err := s.repo.FindByID(ctx, orderID)
		if err != nil {
			return nil, mapRepoErr(err)
		}
		old := ord.State

		if !s.CanTransition(old, newState) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old, newState)
		}

		now := s.clock().UTC()
		entry := model.HistoryEntry{State: newState, Note: note, Actor: actor, Timestamp: now}

		var updated *model.Order
		if old == newState && pay.empty() {
			// Mismo estado: solo queda la nota en el historial, sin notificación.
			updated, err = s.repo.AppendHistory(ctx, ord.ID, ord.Version, entry)
		} else {
			u := buildStateUpdate(ord, newState, entry, now)
			u.PaymentReference, u.ProofDocumentRef = pay.reference, pay.proofRef
			updated, err = s.repo.UpdateState(ctx, ord.ID, ord.Version, u)
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			s.conflicts.Add(ctx, 1)
			s.logger.Debug("version conflict, retrying", zap.String("order_id", orderID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
			return nil, mapRepoErr(err)
		}

		if old != newState {
			s.transitions.Add(ctx, 1, metric.WithAttributes(
				attribute.String("from", string(old)),
				attribute.String("to", string(newState)),
			))
			s.enqueue(statusChangedNotification(updated, old, note))
			s.logger.Info("order state changed",
				zap.String("order_id", updated.ID),
				zap.String("number", updated.Number),
				zap.String("from", string(old)),
				zap.String("to", string(newState)),
				zap.String("actor", actor),
			)
		}
		return updated, nil
	}

	span.SetStatus(codes.Error, "version conflict")
	return nil, ErrConflict
}

// buildStateUpdate estampa cada timestamp la primera vez que se alcanza su estado; nunca los borra.
func buildStateUpdate(ord *model.Order, newState model.OrderState, entry model.HistoryEntry, now time.Time) repository.StateUpdate {
	u := repository.StateUpdate{State: newState, Entry: entry}
	if newState.PaidOrLater() && ord.PaidAt == nil {
		u.PaidAt = &now
	}
	if (newState == model.StateEmTransito || newState == model.StateEntregue) && ord.ShippedAt == nil {
		u.ShippedAt = &now
	}
	if newState == model.StateEntregue && ord.DeliveredAt == nil {
		u.DeliveredAt = &now
	}
	return u
}

// AttachPaymentReference registra la referencia y/o el comprobante sin tocar el estado.
func (s *OrderLifecycleService) AttachPaymentReference(ctx context.Context, orderID, reference, proofRef string) (*model.Order, error) {
	return s.attachPayment(ctx, orderID, reference, proofRef, false)
}

// AttachPaymentProofByTrackingCode es el flujo del cliente: solo con el código de seguimiento.
func (s *OrderLifecycleService) AttachPaymentProofByTrackingCode(ctx context.Context, code, reference, proofRef string) (*model.Order, error) {
	ord, err := s.repo.FindByTrackingCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return s.attachPayment(ctx, ord.ID, reference, proofRef, true)
}

func (s *OrderLifecycleService) attachPayment(ctx context.Context, orderID, reference, proofRef string, customer bool) (*model.Order, error) {
	reference = strings.TrimSpace(reference)
	proofRef = strings.TrimSpace(proofRef)
	if reference == "" && proofRef == "" {
		return nil, fieldError("paymentReference", "required", "indique a referência ou o comprovativo")
	}

	for attempt := 1; attempt <= maxVersionRetries; attempt++ {
		ord, err := s.repo.FindByID(ctx, orderID)
		if err != nil {
			return nil, mapRepoErr(err)
		}
		// El cliente solo envía comprovativo mientras el pedido espera pago.
		if customer && ord.State != model.StatePendente {
			return nil, fmt.Errorf("%w: pedido %s", ErrInvalidTransition, ord.State)
		}
		updated, err := s.repo.UpdatePayment(ctx, ord.ID, ord.Version, reference, proofRef)
		if errors.Is(err, repository.ErrVersionConflict) {
			s.conflicts.Add(ctx, 1)
			continue
		}
		if err != nil {
			return nil, mapRepoErr(err)
		}
		s.logger.Info("payment reference attached", zap.String("order_id", ord.ID), zap.Bool("customer", customer))
		return updated, nil
	}
	return nil, ErrConflict
}

func (s *OrderLifecycleService) Get(ctx context.Context, id string) (*model.Order, error) {
	ord, err := s.repo.FindByID(ctx, id)
	return ord, mapRepoErr(err)
}

// TrackByCode devuelve la proyección pública del pedido.
func (s *OrderLifecycleService) TrackByCode(ctx context.Context, code string) (*dto.TrackingResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrNotFound
	}
	ord, err := s.repo.FindByTrackingCode(ctx, code)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return TrackingView(ord), nil
}

// TrackingView omite datos de contacto, montos y actores.
func TrackingView(o *model.Order) *dto.TrackingResponse {
	out := &dto.TrackingResponse{
		ID:          o.ID,
		Number:      o.Number,
		State:       string(o.State),
		CreatedAt:   o.CreatedAt,
		PaidAt:      o.PaidAt,
		ShippedAt:   o.ShippedAt,
		DeliveredAt: o.DeliveredAt,
		History:     make([]dto.TrackingHistoryDTO, 0, len(o.History)),
		Items:       make([]dto.TrackingItemDTO, 0, len(o.Items)),
	}
	for _, h := range o.History {
		out.History = append(out.History, dto.TrackingHistoryDTO{State: string(h.State), Note: h.Note, Timestamp: h.Timestamp})
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, dto.TrackingItemDTO{Name: it.Name, Quantity: it.Quantity, Unit: it.Unit})
	}
	return out
}

type OrderListQuery struct {
	State    string
	Page     int
	PageSize int
}

func (s *OrderLifecycleService) List(ctx context.Context, q OrderListQuery) (*dto.PageResponse[*model.Order], error) {
	state := model.OrderState(strings.ToUpper(strings.TrimSpace(q.State)))
	if state != "" && !state.Valid() {
		return nil, fieldError("state", "oneof", "estado inválido")
	}
	page := repository.Page{Number: q.Page, Size: q.PageSize}
	items, total, err := s.repo.List(ctx, repository.OrderFilter{State: state, Page: page})
	if err != nil {
		return nil, err
	}
	n := page.Normalized()
	return &dto.PageResponse[*model.Order]{Items: items, Total: total, Page: n.Number, PageSize: n.Size}, nil
}

// WhatsAppLink arma el enlace wa.me con un mensaje para el cliente.
func (s *OrderLifecycleService) WhatsAppLink(o *model.Order) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, o.CustomerPhone)
	if digits == "" {
		return "", fieldError("customerPhone", "required", "o pedido não tem telefone")
	}
	if len(digits) == 9 {
		digits = "244" + digits
	}
	msg := fmt.Sprintf("Olá %s! Sobre o seu pedido %s na AgriConecta: estado actual %s. Código de acompanhamento: %s.",
		o.CustomerName, o.Number, notify.StateLabel(string(o.State)), o.TrackingCode)
	return "https://wa.me/" + digits + "?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20"), nil
}

var notePolicy = bluemonday.StrictPolicy()

// sanitizeNote quita HTML y recorta a maxNoteLength runas.
func sanitizeNote(note string) string {
	note = strings.TrimSpace(html.UnescapeString(notePolicy.Sanitize(note)))
	if utf8.RuneCountInString(note) > maxNoteLength {
		note = string([]rune(note)[:maxNoteLength])
	}
	return note
}

func (s *OrderLifecycleService) enqueue(n notify.Notification) {
	enqueueNotification(s.notifier, s.logger, n)
}
