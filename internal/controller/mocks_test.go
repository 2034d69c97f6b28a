package controller

import (
	"context"
	"errors"
	"time"

	"agriconecta-api/internal/dto"
	"agriconecta-api/internal/model"
	"agriconecta-api/internal/service"

	"github.com/stretchr/testify/mock"
)

type mockOrders struct{ mock.Mock }

func (m *mockOrders) UpdateOrder(ctx context.Context, orderID string, in service.OrderUpdate) (*model.Order, error) {
	args := m.Called(ctx, orderID, in)
	return orderArg(args, 0), args.Error(1)
}

func (m *mockOrders) AttachPaymentProofByTrackingCode(ctx context.Context, code, reference, proofRef string) (*model.Order, error) {
	args := m.Called(ctx, code, reference, proofRef)
	return orderArg(args, 0), args.Error(1)
}

func (m *mockOrders) Get(ctx context.Context, id string) (*model.Order, error) {
	args := m.Called(ctx, id)
	return orderArg(args, 0), args.Error(1)
}

func (m *mockOrders) TrackByCode(ctx context.Context, code string) (*dto.TrackingResponse, error) {
	args := m.Called(ctx, code)
	res, _ := args.Get(0).(*dto.TrackingResponse)
	return res, args.Error(1)
}

func (m *mockOrders) List(ctx context.Context, q service.OrderListQuery) (*dto.PageResponse[*model.Order], error) {
	args := m.Called(ctx, q)
	res, _ := args.Get(0).(*dto.PageResponse[*model.Order])
	return res, args.Error(1)
}

func (m *mockOrders) WhatsAppLink(o *model.Order) (string, error) {
	args := m.Called(o)
	return args.String(0), args.Error(1)
}

func orderArg(args mock.Arguments, i int) *model.Order {
	o, _ := args.Get(i).(*model.Order)
	return o
}

type mockCheckout struct{ mock.Mock }

func (m *mockCheckout) Checkout(ctx context.Context, req dto.CheckoutRequest) (*service.CheckoutResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*service.CheckoutResult)
	return res, args.Error(1)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) ListCategories(ctx context.Context, activeOnly bool) ([]*model.Category, error) {
	args := m.Called(ctx, activeOnly)
	res, _ := args.Get(0).([]*model.Category)
	return res, args.Error(1)
}

func (m *mockCatalog) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*model.Category)
	return res, args.Error(1)
}

func (m *mockCatalog) GetPublicCategory(ctx context.Context, slug string) (*model.Category, error) {
	args := m.Called(ctx, slug)
	res, _ := args.Get(0).(*model.Category)
	return res, args.Error(1)
}

func (m *mockCatalog) CreateCategory(ctx context.Context, req dto.CategoryRequest) (*model.Category, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*model.Category)
	return res, args.Error(1)
}

func (m *mockCatalog) UpdateCategory(ctx context.Context, id string, req dto.CategoryPatchRequest) (*model.Category, error) {
	args := m.Called(ctx, id, req)
	res, _ := args.Get(0).(*model.Category)
	return res, args.Error(1)
}

func (m *mockCatalog) DeleteCategory(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCatalog) ListProducts(ctx context.Context, q service.ProductQuery) (*dto.PageResponse[*model.Product], error) {
	args := m.Called(ctx, q)
	res, _ := args.Get(0).(*dto.PageResponse[*model.Product])
	return res, args.Error(1)
}

func (m *mockCatalog) GetProduct(ctx context.Context, id string) (*service.ProductView, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*service.ProductView)
	return res, args.Error(1)
}

func (m *mockCatalog) GetPublicProduct(ctx context.Context, slug string) (*service.ProductView, error) {
	args := m.Called(ctx, slug)
	res, _ := args.Get(0).(*service.ProductView)
	return res, args.Error(1)
}

func (m *mockCatalog) CreateProduct(ctx context.Context, req dto.ProductRequest) (*model.Product, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*model.Product)
	return res, args.Error(1)
}

func (m *mockCatalog) UpdateProduct(ctx context.Context, id string, req dto.ProductPatchRequest) (*model.Product, error) {
	args := m.Called(ctx, id, req)
	res, _ := args.Get(0).(*model.Product)
	return res, args.Error(1)
}

func (m *mockCatalog) DeleteProduct(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockReports struct{ mock.Mock }

func (m *mockReports) ParseRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	args := m.Called(startRaw, endRaw)
	return args.Get(0).(time.Time), args.Get(1).(time.Time), args.Error(2)
}

func (m *mockReports) SalesSeries(ctx context.Context, start, end time.Time, groupBy string) ([]dto.SalesPointDTO, error) {
	args := m.Called(ctx, start, end, groupBy)
	res, _ := args.Get(0).([]dto.SalesPointDTO)
	return res, args.Error(1)
}

func (m *mockReports) TopProducts(ctx context.Context, start, end time.Time, limit int) ([]dto.TopProductDTO, error) {
	args := m.Called(ctx, start, end, limit)
	res, _ := args.Get(0).([]dto.TopProductDTO)
	return res, args.Error(1)
}

func (m *mockReports) SalesReport(ctx context.Context, start, end time.Time) (*dto.SalesReportDTO, error) {
	args := m.Called(ctx, start, end)
	res, _ := args.Get(0).(*dto.SalesReportDTO)
	return res, args.Error(1)
}

func (m *mockReports) Dashboard(ctx context.Context) (*dto.DashboardDTO, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*dto.DashboardDTO)
	return res, args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Register(ctx context.Context, req dto.RegisterRequest) (*model.User, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*model.User)
	return res, args.Error(1)
}

func (m *mockUsers) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*dto.LoginResponse)
	return res, args.Error(1)
}

func (m *mockUsers) Get(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*model.User)
	return res, args.Error(1)
}

func (m *mockUsers) SetRole(ctx context.Context, actor *service.AuthUser, id string, role string) (*model.User, error) {
	args := m.Called(ctx, actor, id, role)
	res, _ := args.Get(0).(*model.User)
	return res, args.Error(1)
}

type stubTokens map[string]*service.AuthUser

func (s stubTokens) Authenticate(_ context.Context, token string) (*service.AuthUser, error) {
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, errors.New("bad token")
}
