package notify

import (
	"context"
	"time"
)

type Kind string

const (
	KindOrderCreated  Kind = "order_created"
	KindStatusChanged Kind = "status_changed"
)

// RoutingKey used on the notifications exchange.
func (k Kind) RoutingKey() string {
	switch k {
	case KindOrderCreated:
		return "order.created"
	case KindStatusChanged:
		return "order.status_changed"
	}
	return "order." + string(k)
}

type Item struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Unit      string  `json:"unit,omitempty"`
	UnitPrice float64 `json:"unitPrice"`
	Subtotal  float64 `json:"subtotal"`
}

// Notification es el mensaje que viaja hasta el worker de email.
type Notification struct {
	ID            string    `json:"id" bson:"id"`
	Kind          Kind      `json:"kind" bson:"kind"`
	OrderID       string    `json:"orderId" bson:"order_id"`
	OrderNumber   string    `json:"orderNumber" bson:"order_number"`
	TrackingCode  string    `json:"trackingCode" bson:"tracking_code"`
	CustomerName  string    `json:"customerName" bson:"customer_name"`
	CustomerEmail string    `json:"customerEmail" bson:"customer_email"`
	OldState      string    `json:"oldState,omitempty" bson:"old_state,omitempty"`
	NewState      string    `json:"newState,omitempty" bson:"new_state,omitempty"`
	Note          string    `json:"note,omitempty" bson:"note,omitempty"`
	Items         []Item    `json:"items,omitempty" bson:"items,omitempty"`
	Address       string    `json:"address,omitempty" bson:"address,omitempty"`
	Subtotal      float64   `json:"subtotal" bson:"subtotal"`
	DeliveryFee   float64   `json:"deliveryFee" bson:"delivery_fee"`
	Total         float64   `json:"total" bson:"total"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
}

// Publisher entrega una notificación a su transporte (broker o email directo).
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(context.Context, Notification) error

func (f PublisherFunc) Publish(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Enqueuer is what request handlers see: a non-blocking hand-off.
type Enqueuer interface {
	Enqueue(n Notification) bool
}

type DeadLetter struct {
	Notification Notification `json:"notification" bson:"notification"`
	Attempts     int          `json:"attempts" bson:"attempts"`
	LastError    string       `json:"lastError" bson:"last_error"`
	FailedAt     time.Time    `json:"failedAt" bson:"failed_at"`
}

type DeadLetterStore interface {
	Save(ctx context.Context, dl DeadLetter) error
}
