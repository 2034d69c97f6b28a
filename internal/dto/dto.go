// dto.go
package dto

import (
	"time"

	"agriconecta-api/internal/model"
)

// CheckoutRequest es el carrito confirmado por el cliente (checkout sin cuenta).
type CheckoutRequest struct {
	CustomerName  string        `json:"customerName" validate:"required,min=3"`
	CustomerEmail string        `json:"customerEmail" validate:"required,email"`
	CustomerPhone string        `json:"customerPhone" validate:"omitempty,ao_phone"`
	Address       AddressDTO    `json:"address"`
	Items         []CartItemDTO `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string        `json:"paymentMethod" validate:"omitempty,eq=TRANSFERENCIA_BANCARIA"`
	Notes         string        `json:"notes" validate:"max=500"`
	UserID        string        `json:"-"`
}

// AddressDTO para la dirección de entrega
type AddressDTO struct {
	Street       string `json:"street" validate:"required,min=5"`
	Neighborhood string `json:"neighborhood" validate:"required"`
	Municipality string `json:"municipality" validate:"required"`
	Province     string `json:"province" validate:"required"`
	Reference    string `json:"reference"`
}

type CartItemDTO struct {
	ProductID string  `json:"productId" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Price     float64 `json:"price" validate:"gt=0"`
	Quantity  int     `json:"quantity" validate:"min=1,max=99"`
	Unit      string  `json:"unit"`
	ImageURL  string  `json:"imageUrl"`
}

type PaymentInstructionsDTO struct {
	Method      string  `json:"method"`
	BankName    string  `json:"bankName"`
	IBAN        string  `json:"iban"`
	Beneficiary string  `json:"beneficiary"`
	Reference   string  `json:"reference"`
	Amount      float64 `json:"amount"`
}

type CheckoutResponse struct {
	OrderID             string                 `json:"orderId"`
	Number              string                 `json:"number"`
	TrackingCode        string                 `json:"trackingCode"`
	Subtotal            float64                `json:"subtotal"`
	DeliveryFee         float64                `json:"deliveryFee"`
	Total               float64                `json:"total"`
	PaymentInstructions PaymentInstructionsDTO `json:"paymentInstructions"`
}

// UpdateOrderRequest: cambio de estado y/o datos de pago.
type UpdateOrderRequest struct {
	State            string `json:"state"`
	Note             string `json:"note"`
	PaymentReference string `json:"paymentReference"`
	ProofDocumentRef string `json:"proofDocumentRef"`
}

type PaymentProofRequest struct {
	PaymentReference string `json:"paymentReference"`
	ProofDocumentRef string `json:"proofDocumentRef"`
}

type TrackingHistoryDTO struct {
	State     string    `json:"state"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type TrackingItemDTO struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit,omitempty"`
}

// TrackingResponse es la proyección pública: sin contacto ni montos.
type TrackingResponse struct {
	ID          string               `json:"id"`
	Number      string               `json:"number"`
	State       string               `json:"state"`
	CreatedAt   time.Time            `json:"createdAt"`
	PaidAt      *time.Time           `json:"paidAt,omitempty"`
	ShippedAt   *time.Time           `json:"shippedAt,omitempty"`
	DeliveredAt *time.Time           `json:"deliveredAt,omitempty"`
	History     []TrackingHistoryDTO `json:"history"`
	Items       []TrackingItemDTO    `json:"items"`
}

type PageResponse[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

type WhatsAppLinkResponse struct {
	URL string `json:"url"`
}

// Catálogo

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=80"`
	Description string `json:"description" validate:"max=1000"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
	Active      *bool  `json:"active"`
	SortOrder   int    `json:"sortOrder"`
}

type CategoryPatchRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=80"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
	Active      *bool   `json:"active"`
	SortOrder   *int    `json:"sortOrder"`
}

type ProductRequest struct {
	CategoryID   string   `json:"categoryId" validate:"required"`
	Name         string   `json:"name" validate:"required,min=2,max=120"`
	Description  string   `json:"description" validate:"max=5000"`
	Images       []string `json:"images" validate:"dive,url"`
	Price        float64  `json:"price" validate:"gt=0"`
	Unit         string   `json:"unit" validate:"required"`
	Stock        int      `json:"stock" validate:"gte=0"`
	Active       *bool    `json:"active"`
	Featured     bool     `json:"featured"`
	SortOrder    int      `json:"sortOrder"`
	ProducerName string   `json:"producerName"`
}

type ProductPatchRequest struct {
	CategoryID   *string   `json:"categoryId" validate:"omitempty,min=1"`
	Name         *string   `json:"name" validate:"omitempty,min=2,max=120"`
	Description  *string   `json:"description" validate:"omitempty,max=5000"`
	Images       *[]string `json:"images" validate:"omitempty,dive,url"`
	Price        *float64  `json:"price" validate:"omitempty,gt=0"`
	Unit         *string   `json:"unit" validate:"omitempty,min=1"`
	Stock        *int      `json:"stock" validate:"omitempty,gte=0"`
	Active       *bool     `json:"active"`
	Featured     *bool     `json:"featured"`
	SortOrder    *int      `json:"sortOrder"`
	ProducerName *string   `json:"producerName"`
}

// Auth

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=3"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,ao_phone"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	// Email o teléfono
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// Relatórios

type SalesPointDTO struct {
	Label   string    `json:"label"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Vendas  float64   `json:"vendas"`
	Pedidos int       `json:"pedidos"`
}

type TopProductDTO struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

type SalesSummaryDTO struct {
	TotalRevenue      float64 `json:"totalRevenue"`
	TotalOrders       int     `json:"totalOrders"`
	PaidOrders        int     `json:"paidOrders"`
	CancelledOrders   int     `json:"cancelledOrders"`
	AverageOrderValue float64 `json:"averageOrderValue"`
}

type SalesReportDTO struct {
	Start   time.Time       `json:"start"`
	End     time.Time       `json:"end"`
	Orders  []*model.Order  `json:"orders"`
	Summary SalesSummaryDTO `json:"summary"`
}

type LowStockDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
	Unit  string `json:"unit"`
}

type DashboardDTO struct {
	OrdersByState    map[string]int64 `json:"ordersByState"`
	RevenueToday     float64          `json:"revenueToday"`
	RevenueMonth     float64          `json:"revenueMonth"`
	OrdersToday      int              `json:"ordersToday"`
	PendingPayment   int64            `json:"pendingPayment"`
	ActiveProducts   int64            `json:"activeProducts"`
	LowStockProducts []LowStockDTO    `json:"lowStockProducts"`
	GeneratedAt      time.Time        `json:"generatedAt"`
}
