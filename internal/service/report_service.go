package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"agriconecta-api/internal/apperror"
	"agriconecta-api/internal/dto"
	"agriconecta-api/internal/model"

	"go.uber.org/zap"
)

const (
	defaultReportWindow = 30 * 24 * time.Hour
	defaultTopProducts  = 5
	maxTopProducts      = 50
	lowStockLimit       = 10
)

// LoadLocation carga la zona del reporte; si no existe en el sistema usa UTC+1 (hora de Angola).
func LoadLocation(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("WAT", 60*60)
}

type ReportOptions struct {
	Location          *time.Location
	Products          ProductStats
	LowStockThreshold int
	Logger            *zap.Logger
	Clock             func() time.Time
}

type ReportService struct {
	orders    OrderReportSource
	products  ProductStats
	loc       *time.Location
	threshold int
	logger    *zap.Logger
	clock     func() time.Time
}

func NewReportService(orders OrderReportSource, opts ReportOptions) *ReportService {
	if opts.Location == nil {
		opts.Location = LoadLocation("Africa/Luanda")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &ReportService{
		orders:    orders,
		products:  opts.Products,
		loc:       opts.Location,
		threshold: opts.LowStockThreshold,
		logger:    opts.Logger.With(zap.String("component", "reports")),
		clock:     opts.Clock,
	}
}

// ParseRange acepta RFC3339 o YYYY-MM-DD (en la zona del reporte). Una fecha de fin sin hora cubre el día entero.
// Sin fechas, la ventana son los últimos 30 días.
func (s *ReportService) ParseRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	var fields []apperror.FieldError
	start, ok := s.parseDate(startRaw, false)
	if !ok {
		fields = append(fields, apperror.FieldError{Field: "start", Rule: "date", Message: "data inválida"})
	}
	end, ok := s.parseDate(endRaw, true)
	if !ok {
		fields = append(fields, apperror.FieldError{Field: "end", Rule: "date", Message: "data inválida"})
	}
	if len(fields) > 0 {
		return time.Time{}, time.Time{}, &ValidationError{Fields: fields}
	}
	return s.window(start, end)
}

func (s *ReportService) parseDate(raw string, endOfDay bool) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	t, err := time.ParseInLocation("2006-01-02", raw, s.loc)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, true
}

func (s *ReportService) window(start, end time.Time) (time.Time, time.Time, error) {
	if end.IsZero() {
		end = s.clock()
	}
	if start.IsZero() {
		start = end.Add(-defaultReportWindow)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fieldError("start", "ltefield", "início depois do fim")
	}
	return start, end, nil
}

// SalesSeries agrega vendas (Σ total, redondeado) y pedidos por bucket; CANCELADO no cuenta.
func (s *ReportService) SalesSeries(ctx context.Context, start, end time.Time, groupBy string) ([]dto.SalesPointDTO, error) {
	g, ok := ParseGroupBy(groupBy)
	if !ok {
		return nil, fieldError("groupBy", "oneof", "use day, week ou month")
	}
	start, end, err := s.window(start, end)
	if err != nil {
		return nil, err
	}
	if bucketCount(start, end, g, s.loc) > maxBuckets[g] {
		return nil, fieldError("start", "max", fmt.Sprintf("intervalo demasiado longo: máximo %d períodos por %s", maxBuckets[g], g))
	}

	orders, err := s.orders.FindCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	buckets := buildBuckets(start, end, g, s.loc)
	index := make(map[int64]int, len(buckets))
	points := make([]dto.SalesPointDTO, len(buckets))
	sums := make([]float64, len(buckets))
	for i, b := range buckets {
		index[b.start.Unix()] = i
		points[i] = dto.SalesPointDTO{Label: b.label, Start: b.start, End: b.end}
	}

	for _, o := range orders {
		if o.State == model.StateCancelado {
			continue
		}
		i, ok := index[bucketStart(o.CreatedAt, g, s.loc).Unix()]
		if !ok {
			continue
		}
		sums[i] += o.Total
		points[i].Pedidos++
	}
	for i := range points {
		points[i].Vendas = math.Round(sums[i])
	}
	return points, nil
}

// TopProducts ordena por receita desc; los empates conservan el orden de aparición.
func (s *ReportService) TopProducts(ctx context.Context, start, end time.Time, limit int) ([]dto.TopProductDTO, error) {
	if limit <= 0 {
		limit = defaultTopProducts
	}
	if limit > maxTopProducts {
		limit = maxTopProducts
	}
	start, end, err := s.window(start, end)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.FindCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	byID := map[string]int{}
	out := make([]dto.TopProductDTO, 0)
	for _, o := range orders {
		if o.State == model.StateCancelado {
			continue
		}
		for _, it := range o.Items {
			i, ok := byID[it.ProductID]
			if !ok {
				i = len(out)
				byID[it.ProductID] = i
				out = append(out, dto.TopProductDTO{ProductID: it.ProductID, Name: it.Name})
			}
			out[i].Quantity += it.Quantity
			out[i].Revenue += it.UnitPrice * float64(it.Quantity)
		}
	}
	for i := range out {
		out[i].Revenue = model.RoundMoney(out[i].Revenue)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SalesReport lista todos los pedidos del rango (cualquier estado) con un resumen.
func (s *ReportService) SalesReport(ctx context.Context, start, end time.Time) (*dto.SalesReportDTO, error) {
	start, end, err := s.window(start, end)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.FindCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return &dto.SalesReportDTO{Start: start, End: end, Orders: orders, Summary: summarize(orders)}, nil
}

func summarize(orders []*model.Order) dto.SalesSummaryDTO {
	var sum dto.SalesSummaryDTO
	var paidTotal float64
	sum.TotalOrders = len(orders)
	for _, o := range orders {
		if o.State == model.StateCancelado {
			sum.CancelledOrders++
			continue
		}
		sum.TotalRevenue += o.Total
		if o.State.PaidOrLater() {
			sum.PaidOrders++
			paidTotal += o.Total
		}
	}
	sum.TotalRevenue = model.RoundMoney(sum.TotalRevenue)
	if sum.PaidOrders > 0 {
		sum.AverageOrderValue = model.RoundMoney(paidTotal / float64(sum.PaidOrders))
	}
	return sum
}

// Dashboard resume el estado actual de la tienda.
func (s *ReportService) Dashboard(ctx context.Context) (*dto.DashboardDTO, error) {
	now := s.clock().In(s.loc)
	dayStart := bucketStart(now, GroupByDay, s.loc)
	monthStart := bucketStart(now, GroupByMonth, s.loc)

	counts, err := s.orders.CountByState(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.FindCreatedBetween(ctx, monthStart, now)
	if err != nil {
		return nil, err
	}

	out := &dto.DashboardDTO{
		OrdersByState:    make(map[string]int64, len(model.AllStates)),
		PendingPayment:   counts[model.StatePendente],
		LowStockProducts: make([]dto.LowStockDTO, 0),
		GeneratedAt:      now,
	}
	for _, st := range model.AllStates {
		out.OrdersByState[string(st)] = counts[st]
	}
	for _, o := range orders {
		if o.State == model.StateCancelado {
			continue
		}
		out.RevenueMonth += o.Total
		if !o.CreatedAt.Before(dayStart) {
			out.RevenueToday += o.Total
			out.OrdersToday++
		}
	}
	out.RevenueMonth = model.RoundMoney(out.RevenueMonth)
	out.RevenueToday = model.RoundMoney(out.RevenueToday)

	if s.products != nil {
		if out.ActiveProducts, err = s.products.CountActive(ctx); err != nil {
			return nil, err
		}
		low, err := s.products.FindLowStock(ctx, s.threshold, lowStockLimit)
		if err != nil {
			return nil, err
		}
		for _, p := range low {
			out.LowStockProducts = append(out.LowStockProducts, dto.LowStockDTO{ID: p.ID, Name: p.Name, Stock: p.Stock, Unit: p.Unit})
		}
	}
	return out, nil
}
