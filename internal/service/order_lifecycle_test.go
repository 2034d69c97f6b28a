package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"agriconecta-api/internal/model"
	"agriconecta-api/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lifecycleNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func newOrder(id string, state model.OrderState) *model.Order {
	created := lifecycleNow.Add(-24 * time.Hour)
	return &model.Order{
		ID:            id,
		Number:        "AGC-2024-00001",
		TrackingCode:  "TRACK" + strings.ToUpper(id),
		CustomerName:  "Ana Silva",
		CustomerEmail: "ana@test.ao",
		CustomerPhone: "+244923456789",
		DeliveryFee:   500,
		Address:       model.Address{Street: "Rua da Missão 12", Neighborhood: "Ingombota", Municipality: "Luanda", Province: "Luanda"},
		State:         state,
		CreatedAt:     created,
		Items: []model.OrderItem{
			{ProductID: "p1", Name: "Tomate", UnitPrice: 3500, Quantity: 2, Subtotal: 7000},
			{ProductID: "p2", Name: "Cebola", UnitPrice: 3500, Quantity: 1, Subtotal: 3500},
		},
		Subtotal: 10500,
		Total:    11000,
		History:  []model.HistoryEntry{{State: model.StatePendente, Timestamp: created}},
		Version:  1,
	}
}

func newLifecycle(repo OrderRepository, strict bool, n notify.Enqueuer) *OrderLifecycleService {
	return NewOrderLifecycleService(repo, LifecycleOptions{Strict: strict, Notifier: n, Clock: fixedClock(lifecycleNow)})
}

func TestTransitionPendenteToPago(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePendente))
	n := &captureEnqueuer{}
	svc := newLifecycle(repo, true, n)

	got, err := svc.Transition(context.Background(), "o1", model.StatePago, "Transferência confirmada", "staff-1")
	require.NoError(t, err)

	assert.Equal(t, model.StatePago, got.State)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, lifecycleNow, *got.PaidAt)
	assert.Nil(t, got.ShippedAt)
	require.Len(t, got.History, 2)
	assert.Equal(t, model.StatePago, got.History[1].State)
	assert.Equal(t, "staff-1", got.History[1].Actor)
	assert.Equal(t, int64(2), got.Version)

	sent := n.all()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindStatusChanged, sent[0].Kind)
	assert.Equal(t, "PENDENTE", sent[0].OldState)
	assert.Equal(t, "PAGO", sent[0].NewState)
	assert.Equal(t, "Transferência confirmada", sent[0].Note)
}

func TestTransitionStrictRejectsSkippingAndTerminal(t *testing.T) {
	tests := []struct {
		name string
		from model.OrderState
		to   model.OrderState
	}{
		{"skip payment", model.StatePendente, model.StateEmTransito},
		{"backwards", model.StateEmTransito, model.StatePago},
		{"from delivered", model.StateEntregue, model.StateCancelado},
		{"from cancelled", model.StateCancelado, model.StatePendente},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemOrderRepo(newOrder("o1", tt.from))
			n := &captureEnqueuer{}
			_, err := newLifecycle(repo, true, n).Transition(context.Background(), "o1", tt.to, "", "staff")
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Empty(t, n.all())

			stored, _ := repo.FindByID(context.Background(), "o1")
			assert.Equal(t, tt.from, stored.State)
			assert.Len(t, stored.History, 1)
		})
	}
}

func TestTransitionStrictAllowsCancelFromAnyOpenState(t *testing.T) {
	for _, from := range []model.OrderState{model.StatePendente, model.StatePago, model.StateEmPreparacao, model.StateEmTransito} {
		repo := newMemOrderRepo(newOrder("o1", from))
		got, err := newLifecycle(repo, true, nil).Transition(context.Background(), "o1", model.StateCancelado, "cliente desistiu", "staff")
		require.NoError(t, err, from)
		assert.Equal(t, model.StateCancelado, got.State)
	}
}

func TestTransitionPermissiveAcceptsAnyOrder(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StateEntregue))
	svc := newLifecycle(repo, false, nil)

	got, err := svc.Transition(context.Background(), "o1", model.StatePendente, "", "staff")
	require.NoError(t, err)
	assert.Equal(t, model.StatePendente, got.State)

	got, err = svc.Transition(context.Background(), "o1", model.StateEntregue, "", "staff")
	require.NoError(t, err)
	require.NotNil(t, got.PaidAt)
	require.NotNil(t, got.ShippedAt)
	require.NotNil(t, got.DeliveredAt)
	assert.Len(t, got.History, 3)
}

func TestTransitionTimestampsAreNeverCleared(t *testing.T) {
	paid := lifecycleNow.Add(-time.Hour)
	o := newOrder("o1", model.StatePago)
	o.PaidAt = &paid
	repo := newMemOrderRepo(o)

	got, err := newLifecycle(repo, true, nil).Transition(context.Background(), "o1", model.StateCancelado, "", "staff")
	require.NoError(t, err)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, paid, *got.PaidAt)
}

func TestTransitionSameStateAppendsNoteOnly(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePago))
	n := &captureEnqueuer{}

	got, err := newLifecycle(repo, true, n).Transition(context.Background(), "o1", model.StatePago, "<b>ligar</b> amanhã", "staff")
	require.NoError(t, err)
	assert.Equal(t, model.StatePago, got.State)
	require.Len(t, got.History, 2)
	assert.Equal(t, "ligar amanhã", got.History[1].Note)
	assert.Nil(t, got.PaidAt)
	assert.Empty(t, n.all())
}

func TestTransitionNoteIsTrimmed(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePendente))
	got, err := newLifecycle(repo, true, nil).Transition(context.Background(), "o1", model.StatePago, strings.Repeat("á", 800), "staff")
	require.NoError(t, err)
	assert.Equal(t, 500, len([]rune(got.History[1].Note)))
}

func TestTransitionValidation(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePendente))
	svc := newLifecycle(repo, true, nil)

	_, err := svc.Transition(context.Background(), "o1", "ENVIADO", "", "staff")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "state", verr.Fields[0].Field)

	_, err = svc.Transition(context.Background(), "missing", model.StatePago, "", "staff")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionRetriesOnVersionConflict(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePendente))
	conflicts := 0
	repo.beforeUpdate = func(id string) {
		if conflicts < 2 {
			conflicts++
			repo.bump(id)
		}
	}

	got, err := newLifecycle(repo, true, nil).Transition(context.Background(), "o1", model.StatePago, "", "staff")
	require.NoError(t, err)
	assert.Equal(t, model.StatePago, got.State)
	assert.Equal(t, 2, conflicts)
}

func TestTransitionGivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePendente))
	repo.beforeUpdate = repo.bump

	_, err := newLifecycle(repo, true, nil).Transition(context.Background(), "o1", model.StatePago, "", "staff")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestTransitionSucceedsWhenQueueIsFull(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePendente))
	n := &captureEnqueuer{full: true}

	got, err := newLifecycle(repo, true, n).Transition(context.Background(), "o1", model.StatePago, "", "staff")
	require.NoError(t, err)
	assert.Equal(t, model.StatePago, got.State)
}

func TestAttachPaymentReference(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePendente))
	svc := newLifecycle(repo, true, nil)

	got, err := svc.AttachPaymentReference(context.Background(), "o1", " TRF-123 ", "")
	require.NoError(t, err)
	assert.Equal(t, "TRF-123", got.PaymentReference)
	assert.Equal(t, model.StatePendente, got.State)
	assert.Len(t, got.History, 1)

	_, err = svc.AttachPaymentReference(context.Background(), "o1", "", "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAttachPaymentProofByTrackingCode(t *testing.T) {
	open := newOrder("o1", model.StatePendente)
	closed := newOrder("o2", model.StateCancelado)
	repo := newMemOrderRepo(open, closed)
	svc := newLifecycle(repo, true, nil)

	got, err := svc.AttachPaymentProofByTrackingCode(context.Background(), "tracko1", "", "uploads/comprovativo.pdf")
	require.NoError(t, err)
	assert.Equal(t, "uploads/comprovativo.pdf", got.PaymentProofRef)

	_, err = svc.AttachPaymentProofByTrackingCode(context.Background(), closed.TrackingCode, "", "x.pdf")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	paid := newOrder("o3", model.StatePago)
	paid.PaymentReference = "TRF-ORIGINAL"
	repo.orders[paid.ID] = paid
	_, err = svc.AttachPaymentProofByTrackingCode(context.Background(), paid.TrackingCode, "TRF-FALSA", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	stored, err := repo.FindByID(context.Background(), "o3")
	require.NoError(t, err)
	assert.Equal(t, "TRF-ORIGINAL", stored.PaymentReference)

	_, err = svc.AttachPaymentProofByTrackingCode(context.Background(), "NOPE", "", "x.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOrderWritesPaymentWithTransition(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePendente))
	svc := newLifecycle(repo, true, nil)

	got, err := svc.UpdateOrder(context.Background(), "o1", OrderUpdate{State: "pago", PaymentReference: " REF-1 ", Actor: "s1"})
	require.NoError(t, err)
	assert.Equal(t, model.StatePago, got.State)
	assert.Equal(t, "REF-1", got.PaymentReference)
	assert.NotNil(t, got.PaidAt)
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdateOrderRejectedTransitionWritesNothing(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePendente))
	svc := newLifecycle(repo, true, nil)

	_, err := svc.UpdateOrder(context.Background(), "o1", OrderUpdate{State: model.StateEntregue, PaymentReference: "REF-1"})
	require.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := repo.FindByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Empty(t, stored.PaymentReference)
	assert.Equal(t, model.StatePendente, stored.State)
	assert.Equal(t, int64(1), stored.Version)
	assert.Len(t, stored.History, 1)
}

func TestUpdateOrderSameStateWithPayment(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePendente))
	svc := newLifecycle(repo, true, nil)

	got, err := svc.UpdateOrder(context.Background(), "o1", OrderUpdate{State: model.StatePendente, PaymentReference: "REF-2", Note: "ref recebida"})
	require.NoError(t, err)
	assert.Equal(t, "REF-2", got.PaymentReference)
	assert.Equal(t, model.StatePendente, got.State)
	require.Len(t, got.History, 2)
	assert.Equal(t, "ref recebida", got.History[1].Note)

	got, err = svc.UpdateOrder(context.Background(), "o1", OrderUpdate{ProofDocumentRef: "uploads/p.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "uploads/p.pdf", got.PaymentProofRef)
	assert.Len(t, got.History, 2)
}

func TestTrackByCodeHidesContactAndTotals(t *testing.T) {
	o := newOrder("o1", model.StateCancelado)
	o.History = append(o.History, model.HistoryEntry{State: model.StateCancelado, Note: "sem stock", Actor: "staff-9", Timestamp: lifecycleNow})
	repo := newMemOrderRepo(o)

	view, err := newLifecycle(repo, true, nil).TrackByCode(context.Background(), " tracko1 ")
	require.NoError(t, err)

	assert.Equal(t, "CANCELADO", view.State)
	require.Len(t, view.History, 2)
	assert.Equal(t, "sem stock", view.History[1].Note)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "Tomate", view.Items[0].Name)
	assert.Equal(t, 2, view.Items[0].Quantity)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	for _, hidden := range []string{"ana@test.ao", "923456789", "11000", "customerEmail", "total", "staff-9"} {
		assert.NotContains(t, string(raw), hidden)
	}
}

func TestListRejectsUnknownState(t *testing.T) {
	repo := newMemOrderRepo(newOrder("o1", model.StatePendente), newOrder("o2", model.StatePago))
	svc := newLifecycle(repo, true, nil)

	page, err := svc.List(context.Background(), OrderListQuery{State: "pago"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 20, page.PageSize)

	_, err = svc.List(context.Background(), OrderListQuery{State: "ENVIADO"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestWhatsAppLink(t *testing.T) {
	svc := newLifecycle(newMemOrderRepo(), true, nil)
	o := newOrder("o1", model.StateEmTransito)
	o.CustomerPhone = "+244 923 456 789"

	link, err := svc.WhatsAppLink(o)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://wa.me/244923456789?text="), link)
	assert.Contains(t, link, "AGC-2024-00001")
	assert.NotContains(t, link, "+")

	o.CustomerPhone = ""
	_, err = svc.WhatsAppLink(o)
	assert.Error(t, err)
}
