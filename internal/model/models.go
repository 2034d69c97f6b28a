// models.go
package model

import (
	"encoding/json"
	"math"
	"time"

	"agriconecta-api/internal/rbac"
)

// OrderState es el estado actual del pedido.
type OrderState string

const (
	StatePendente     OrderState = "PENDENTE"
	StatePago         OrderState = "PAGO"
	StateEmPreparacao OrderState = "EM_PREPARACAO"
	StateEmTransito   OrderState = "EM_TRANSITO"
	StateEntregue     OrderState = "ENTREGUE"
	StateCancelado    OrderState = "CANCELADO"
)

// AllStates en orden de avance.
var AllStates = []OrderState{
	StatePendente,
	StatePago,
	StateEmPreparacao,
	StateEmTransito,
	StateEntregue,
	StateCancelado,
}

func (s OrderState) Valid() bool {
	for _, v := range AllStates {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s OrderState) Terminal() bool {
	return s == StateEntregue || s == StateCancelado
}

// PaidOrLater covers PAGO, EM_PREPARACAO, EM_TRANSITO and ENTREGUE.
func (s OrderState) PaidOrLater() bool {
	switch s {
	case StatePago, StateEmPreparacao, StateEmTransito, StateEntregue:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentBankTransfer      PaymentMethod = "TRANSFERENCIA_BANCARIA"
	PaymentMulticaixaExpress PaymentMethod = "MULTICAIXA_EXPRESS"
)

type Order struct {
	ID           string `bson:"_id" json:"id"`
	Number       string `bson:"number" json:"number"`
	TrackingCode string `bson:"tracking_code" json:"trackingCode"`

	CustomerName  string `bson:"customer_name" json:"customerName"`
	CustomerEmail string `bson:"customer_email" json:"customerEmail"`
	CustomerPhone string `bson:"customer_phone,omitempty" json:"customerPhone,omitempty"`
	UserID        string `bson:"user_id,omitempty" json:"userId,omitempty"`

	Subtotal    float64 `bson:"subtotal" json:"subtotal"`
	DeliveryFee float64 `bson:"delivery_fee" json:"deliveryFee"`
	Discount    float64 `bson:"discount" json:"discount"`
	Total       float64 `bson:"total" json:"total"`

	Address     Address `bson:"address" json:"address"`
	AddressText string  `bson:"address_text" json:"-"`

	State       OrderState `bson:"state" json:"state"`
	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	PaidAt      *time.Time `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	ShippedAt   *time.Time `bson:"shipped_at,omitempty" json:"shippedAt,omitempty"`
	DeliveredAt *time.Time `bson:"delivered_at,omitempty" json:"deliveredAt,omitempty"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`

	PaymentMethod    PaymentMethod `bson:"payment_method" json:"paymentMethod"`
	PaymentReference string        `bson:"payment_reference,omitempty" json:"paymentReference,omitempty"`
	PaymentProofRef  string        `bson:"payment_proof_ref,omitempty" json:"paymentProofRef,omitempty"`

	Items   []OrderItem    `bson:"items" json:"items"`
	History []HistoryEntry `bson:"history" json:"history"`

	// Version se incrementa en cada escritura (control optimista).
	Version int64 `bson:"version" json:"version"`
}

type Address struct {
	Street       string `bson:"street" json:"street"`
	Neighborhood string `bson:"neighborhood" json:"neighborhood"`
	Municipality string `bson:"municipality" json:"municipality"`
	Province     string `bson:"province" json:"province"`
	Reference    string `bson:"reference,omitempty" json:"reference,omitempty"`
}

// Serialize returns the address as structured JSON text, the form kept in address_text.
func (a Address) Serialize() string {
	b, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	return string(b)
}

type OrderItem struct {
	ProductID string  `bson:"product_id" json:"productId"`
	Name      string  `bson:"name" json:"name"`
	UnitPrice float64 `bson:"unit_price" json:"unitPrice"`
	Unit      string  `bson:"unit" json:"unit"`
	ImageURL  string  `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	Subtotal  float64 `bson:"subtotal" json:"subtotal"`
}

type HistoryEntry struct {
	State     OrderState `bson:"state" json:"state"`
	Note      string     `bson:"note,omitempty" json:"note,omitempty"`
	Actor     string     `bson:"actor,omitempty" json:"actor,omitempty"`
	Timestamp time.Time  `bson:"timestamp" json:"timestamp"`
}

// RecalculateTotals recomputa subtotales de línea y el total del pedido.
// Se llama antes de cada escritura para que total == subtotal + deliveryFee - discount.
func (o *Order) RecalculateTotals() {
	var subtotal float64
	for i := range o.Items {
		o.Items[i].Subtotal = RoundMoney(o.Items[i].UnitPrice * float64(o.Items[i].Quantity))
		subtotal += o.Items[i].Subtotal
	}
	o.Subtotal = RoundMoney(subtotal)
	o.Total = RoundMoney(o.Subtotal + o.DeliveryFee - o.Discount)
}

// LastHistory devuelve la última entrada del historial, o nil.
func (o *Order) LastHistory() *HistoryEntry {
	if len(o.History) == 0 {
		return nil
	}
	return &o.History[len(o.History)-1]
}

// RoundMoney rounds to cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

type Category struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Slug        string    `bson:"slug" json:"slug"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	ImageURL    string    `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	Active      bool      `bson:"active" json:"active"`
	SortOrder   int       `bson:"sort_order" json:"sortOrder"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

type Product struct {
	ID           string    `bson:"_id" json:"id"`
	CategoryID   string    `bson:"category_id" json:"categoryId"`
	Name         string    `bson:"name" json:"name"`
	Slug         string    `bson:"slug" json:"slug"`
	Description  string    `bson:"description,omitempty" json:"description,omitempty"`
	Images       []string  `bson:"images" json:"images"`
	Price        float64   `bson:"price" json:"price"`
	Unit         string    `bson:"unit" json:"unit"`
	Stock        int       `bson:"stock" json:"stock"`
	Active       bool      `bson:"active" json:"active"`
	Featured     bool      `bson:"featured" json:"featured"`
	SortOrder    int       `bson:"sort_order" json:"sortOrder"`
	ProducerName string    `bson:"producer_name,omitempty" json:"producerName,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

// MainImage devuelve la primera imagen, si existe.
func (p *Product) MainImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

type User struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email,omitempty" json:"email,omitempty"`
	Phone        string    `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string    `bson:"password_hash,omitempty" json:"-"`
	Role         rbac.Role `bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}
