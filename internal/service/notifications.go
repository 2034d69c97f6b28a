package service

import (
	"strings"

	"agriconecta-api/internal/model"
	"agriconecta-api/internal/notify"

	"go.uber.org/zap"
)

func orderCreatedNotification(o *model.Order) notify.Notification {
	n := baseNotification(o, notify.KindOrderCreated)
	n.NewState = string(o.State)
	n.Items = make([]notify.Item, 0, len(o.Items))
	for _, it := range o.Items {
		n.Items = append(n.Items, notify.Item{
			Name:      it.Name,
			Quantity:  it.Quantity,
			Unit:      it.Unit,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	n.Address = formatAddress(o.Address)
	return n
}

func statusChangedNotification(o *model.Order, old model.OrderState, note string) notify.Notification {
	n := baseNotification(o, notify.KindStatusChanged)
	n.OldState = string(old)
	n.NewState = string(o.State)
	n.Note = note
	return n
}

func baseNotification(o *model.Order, kind notify.Kind) notify.Notification {
	return notify.Notification{
		Kind:          kind,
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		TrackingCode:  o.TrackingCode,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Subtotal:      o.Subtotal,
		DeliveryFee:   o.DeliveryFee,
		Total:         o.Total,
	}
}

// formatAddress: "Rua X, Bairro, Município, Província (referência)".
func formatAddress(a model.Address) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.Neighborhood, a.Municipality, a.Province} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	out := strings.Join(parts, ", ")
	if ref := strings.TrimSpace(a.Reference); ref != "" {
		out += " (" + ref + ")"
	}
	return out
}

// enqueueNotification nunca falla la operación que la origina.
func enqueueNotification(notifier notify.Enqueuer, logger *zap.Logger, n notify.Notification) {
	if notifier == nil {
		return
	}
	if !notifier.Enqueue(n) {
		logger.Warn("notification not queued", zap.String("order_id", n.OrderID), zap.String("kind", string(n.Kind)))
	}
}
