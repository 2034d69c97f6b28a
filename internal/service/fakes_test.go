package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"agriconecta-api/internal/model"
	"agriconecta-api/internal/notify"
	"agriconecta-api/internal/rbac"
	"agriconecta-api/internal/repository"
)

// memOrderRepo imita las semánticas del repositorio Mongo (versión, historial embebido).
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	// beforeUpdate corre antes de cada escritura condicional; los tests lo usan para simular concurrencia.
	beforeUpdate func(id string)
	createErr    error
}

func newMemOrderRepo(orders ...*model.Order) *memOrderRepo {
	r := &memOrderRepo{orders: map[string]*model.Order{}}
	for _, o := range orders {
		if o.Version == 0 {
			o.Version = 1
		}
		r.orders[o.ID] = o
	}
	return r
}

func clone(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.OrderItem(nil), o.Items...)
	c.History = append([]model.HistoryEntry(nil), o.History...)
	return &c
}

func (r *memOrderRepo) Create(_ context.Context, o *model.Order) error {
	if r.createErr != nil {
		return r.createErr
	}
	if len(o.History) == 0 {
		return repository.ErrMissingHistory
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o.RecalculateTotals()
	o.AddressText = o.Address.Serialize()
	o.Version = 1
	r.orders[o.ID] = clone(o)
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(o), nil
}

func (r *memOrderRepo) FindByTrackingCode(_ context.Context, code string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.TrackingCode == code {
			return clone(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memOrderRepo) List(_ context.Context, f repository.OrderFilter) ([]*model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Order, 0)
	for _, o := range r.orders {
		if f.State == "" || o.State == f.State {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) FindCreatedBetween(_ context.Context, start, end time.Time) ([]*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Order, 0)
	for _, o := range r.orders {
		if !o.CreatedAt.Before(start) && !o.CreatedAt.After(end) {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memOrderRepo) CountByState(_ context.Context) (map[model.OrderState]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.OrderState]int64{}
	for _, o := range r.orders {
		out[o.State]++
	}
	return out, nil
}

func (r *memOrderRepo) conditional(id string, expected int64, apply func(o *model.Order)) (*model.Order, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if o.Version != expected {
		return nil, repository.ErrVersionConflict
	}
	apply(o)
	o.Version++
	return clone(o), nil
}

func (r *memOrderRepo) UpdateState(_ context.Context, id string, v int64, u repository.StateUpdate) (*model.Order, error) {
	return r.conditional(id, v, func(o *model.Order) {
		o.State = u.State
		if u.PaidAt != nil {
			o.PaidAt = u.PaidAt
		}
		if u.ShippedAt != nil {
			o.ShippedAt = u.ShippedAt
		}
		if u.DeliveredAt != nil {
			o.DeliveredAt = u.DeliveredAt
		}
		if u.PaymentReference != "" {
			o.PaymentReference = u.PaymentReference
		}
		if u.ProofDocumentRef != "" {
			o.PaymentProofRef = u.ProofDocumentRef
		}
		o.History = append(o.History, u.Entry)
	})
}

func (r *memOrderRepo) AppendHistory(_ context.Context, id string, v int64, e model.HistoryEntry) (*model.Order, error) {
	return r.conditional(id, v, func(o *model.Order) { o.History = append(o.History, e) })
}

func (r *memOrderRepo) UpdatePayment(_ context.Context, id string, v int64, ref, proof string) (*model.Order, error) {
	return r.conditional(id, v, func(o *model.Order) {
		if ref != "" {
			o.PaymentReference = ref
		}
		if proof != "" {
			o.PaymentProofRef = proof
		}
	})
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// bump simula otra escritura concurrente.
func (r *memOrderRepo) bump(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[id].Version++
}

type captureEnqueuer struct {
	mu    sync.Mutex
	items []notify.Notification
	full  bool
}

func (c *captureEnqueuer) Enqueue(n notify.Notification) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.items = append(c.items, n)
	return true
}

func (c *captureEnqueuer) all() []notify.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Notification(nil), c.items...)
}

type memCounter struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func (c *memCounter) Next(_ context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seqs == nil {
		c.seqs = map[string]int64{}
	}
	c.seqs[name]++
	return c.seqs[name], nil
}

// stubProducts: stub con campos función, como el resto de los tests del paquete.
type stubProducts struct {
	products map[string]*model.Product

	countByCategory func(ctx context.Context, categoryID string) (int64, error)
	onCreate        func(p *model.Product)
	slugTaken       map[string]bool
	created         []*model.Product
	updated         []*model.Product
	deleted         []string
}

func (s *stubProducts) Create(_ context.Context, p *model.Product) error {
	s.created = append(s.created, p)
	if s.products == nil {
		s.products = map[string]*model.Product{}
	}
	s.products[p.ID] = p
	if s.onCreate != nil {
		s.onCreate(p)
	}
	return nil
}

func (s *stubProducts) Update(_ context.Context, p *model.Product) error {
	if _, ok := s.products[p.ID]; !ok {
		return repository.ErrNotFound
	}
	s.updated = append(s.updated, p)
	s.products[p.ID] = p
	return nil
}

func (s *stubProducts) Delete(_ context.Context, id string) error {
	if _, ok := s.products[id]; !ok {
		return repository.ErrNotFound
	}
	s.deleted = append(s.deleted, id)
	delete(s.products, id)
	return nil
}

func (s *stubProducts) FindByID(_ context.Context, id string) (*model.Product, error) {
	if p, ok := s.products[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubProducts) FindBySlug(_ context.Context, slug string) (*model.Product, error) {
	for _, p := range s.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubProducts) FindByIDs(_ context.Context, ids []string) (map[string]*model.Product, error) {
	out := map[string]*model.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *stubProducts) List(_ context.Context, f repository.ProductFilter) ([]*model.Product, int64, error) {
	out := make([]*model.Product, 0)
	for _, p := range s.products {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.ActiveOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (s *stubProducts) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	if s.countByCategory != nil {
		return s.countByCategory(ctx, categoryID)
	}
	var n int64
	for _, p := range s.products {
		if p.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (s *stubProducts) SlugExists(_ context.Context, slug, excludeID string) (bool, error) {
	if s.slugTaken[slug] {
		return true, nil
	}
	for _, p := range s.products {
		if p.Slug == slug && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubProducts) CountActive(context.Context) (int64, error) {
	var n int64
	for _, p := range s.products {
		if p.Active {
			n++
		}
	}
	return n, nil
}

func (s *stubProducts) FindLowStock(_ context.Context, threshold int, limit int64) ([]*model.Product, error) {
	out := make([]*model.Product, 0)
	for _, p := range s.products {
		if p.Active && p.Stock <= threshold {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stock < out[j].Stock })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubCategories struct {
	categories map[string]*model.Category
	deleted    []string
}

func (s *stubCategories) Create(_ context.Context, c *model.Category) error {
	if s.categories == nil {
		s.categories = map[string]*model.Category{}
	}
	s.categories[c.ID] = c
	return nil
}

func (s *stubCategories) Update(_ context.Context, c *model.Category) error {
	if _, ok := s.categories[c.ID]; !ok {
		return repository.ErrNotFound
	}
	s.categories[c.ID] = c
	return nil
}

func (s *stubCategories) Delete(_ context.Context, id string) error {
	if _, ok := s.categories[id]; !ok {
		return repository.ErrNotFound
	}
	s.deleted = append(s.deleted, id)
	delete(s.categories, id)
	return nil
}

func (s *stubCategories) FindByID(_ context.Context, id string) (*model.Category, error) {
	if c, ok := s.categories[id]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubCategories) FindBySlug(_ context.Context, slug string) (*model.Category, error) {
	for _, c := range s.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubCategories) List(_ context.Context, activeOnly bool) ([]*model.Category, error) {
	out := make([]*model.Category, 0)
	for _, c := range s.categories {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (s *stubCategories) SlugExists(_ context.Context, slug, excludeID string) (bool, error) {
	for _, c := range s.categories {
		if c.Slug == slug && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type memUsers struct {
	users map[string]*model.User
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	if m.users == nil {
		m.users = map[string]*model.User{}
	}
	for _, existing := range m.users {
		if (u.Email != "" && existing.Email == u.Email) || (u.Phone != "" && existing.Phone == u.Phone) {
			return repository.ErrDuplicate
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) FindByPhone(_ context.Context, phone string) (*model.User, error) {
	for _, u := range m.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) UpdateRole(_ context.Context, id string, role rbac.Role) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = role
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
