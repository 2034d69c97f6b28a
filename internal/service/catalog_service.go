package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"agriconecta-api/internal/dto"
	"agriconecta-api/internal/model"
	"agriconecta-api/internal/repository"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugAttempts = 50

type CatalogService struct {
	categories CategoryRepository
	products   ProductRepository
	markdown   goldmark.Markdown
	policy     *bluemonday.Policy
	logger     *zap.Logger
	clock      func() time.Time
}

func NewCatalogService(categories CategoryRepository, products ProductRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	return &CatalogService{
		categories: categories,
		products:   products,
		markdown:   goldmark.New(),
		policy:     policy,
		logger:     logger.With(zap.String("component", "catalog")),
		clock:      time.Now,
	}
}

// ProductView agrega la descripción renderizada a HTML seguro.
type ProductView struct {
	*model.Product
	DescriptionHTML string `json:"descriptionHtml,omitempty"`
}

// ---- Categorías ----

func (s *CatalogService) ListCategories(ctx context.Context, activeOnly bool) ([]*model.Category, error) {
	return s.categories.List(ctx, activeOnly)
}

func (s *CatalogService) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	c, err := s.categories.FindByID(ctx, id)
	return c, mapRepoErr(err)
}

// GetPublicCategory: las categorías inactivas no existen para la tienda.
func (s *CatalogService) GetPublicCategory(ctx context.Context, slug string) (*model.Category, error) {
	c, err := s.categories.FindBySlug(ctx, slug)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !c.Active {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, req dto.CategoryRequest) (*model.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	slug, err := s.uniqueSlug(ctx, Slugify(req.Name), "", s.categories.SlugExists)
	if err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	c := &model.Category{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Slug:        slug,
		Description: strings.TrimSpace(req.Description),
		ImageURL:    req.ImageURL,
		Active:      req.Active == nil || *req.Active,
		SortOrder:   req.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, mapRepoErr(err)
	}
	s.logger.Info("category created", zap.String("category_id", c.ID), zap.String("slug", c.Slug))
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, req dto.CategoryPatchRequest) (*model.Category, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	c, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) != c.Name {
		c.Name = strings.TrimSpace(*req.Name)
		if c.Slug, err = s.uniqueSlug(ctx, Slugify(c.Name), c.ID, s.categories.SlugExists); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		c.Description = strings.TrimSpace(*req.Description)
	}
	if req.ImageURL != nil {
		c.ImageURL = *req.ImageURL
	}
	if req.Active != nil {
		c.Active = *req.Active
	}
	if req.SortOrder != nil {
		c.SortOrder = *req.SortOrder
	}
	c.UpdatedAt = s.clock().UTC()
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, mapRepoErr(err)
	}
	return c, nil
}

// DeleteCategory se rechaza mientras la categoría tenga productos.
// Sin transacciones: se vuelve a contar después de borrar y, si entró un producto
// entre medias, la categoría se restaura. Las escrituras de productos hacen la
// comprobación inversa (confirmCategory), así nunca queda un producto huérfano.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	c, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	n, err := s.products.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d produto(s)", ErrCategoryHasProducts, n)
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return mapRepoErr(err)
	}

	if n, err = s.products.CountByCategory(ctx, id); err != nil || n > 0 {
		if restoreErr := s.categories.Create(ctx, c); restoreErr != nil {
			s.logger.Error("category restore failed", zap.String("category_id", id), zap.Error(restoreErr))
		}
		if err != nil {
			return err
		}
		s.logger.Warn("category delete raced with product write, restored", zap.String("category_id", id))
		return fmt.Errorf("%w: %d produto(s)", ErrCategoryHasProducts, n)
	}
	s.logger.Info("category deleted", zap.String("category_id", id))
	return nil
}

// ---- Productos ----

type ProductQuery struct {
	CategorySlug string
	CategoryID   string
	Featured     *bool
	Search       string
	Page         int
	PageSize     int
	// Public limita a productos activos.
	Public bool
}

func (s *CatalogService) ListProducts(ctx context.Context, q ProductQuery) (*dto.PageResponse[*model.Product], error) {
	page := repository.Page{Number: q.Page, Size: q.PageSize}
	n := page.Normalized()
	filter := repository.ProductFilter{
		CategoryID: q.CategoryID,
		ActiveOnly: q.Public,
		Featured:   q.Featured,
		Search:     q.Search,
		Page:       page,
	}
	if q.CategorySlug != "" {
		c, err := s.categories.FindBySlug(ctx, q.CategorySlug)
		switch {
		case errors.Is(err, repository.ErrNotFound), err == nil && q.Public && !c.Active:
			return &dto.PageResponse[*model.Product]{Items: []*model.Product{}, Page: n.Number, PageSize: n.Size}, nil
		case err != nil:
			return nil, err
		}
		filter.CategoryID = c.ID
	}

	items, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.PageResponse[*model.Product]{Items: items, Total: total, Page: n.Number, PageSize: n.Size}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*ProductView, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return s.view(p), nil
}

func (s *CatalogService) GetPublicProduct(ctx context.Context, slug string) (*ProductView, error) {
	p, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !p.Active {
		return nil, ErrNotFound
	}
	return s.view(p), nil
}

func (s *CatalogService) view(p *model.Product) *ProductView {
	return &ProductView{Product: p, DescriptionHTML: s.RenderDescription(p.Description)}
}

// RenderDescription convierte markdown a HTML y lo sanea.
func (s *CatalogService) RenderDescription(markdown string) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		s.logger.Warn("markdown render failed", zap.Error(err))
		return s.policy.Sanitize(markdown)
	}
	return strings.TrimSpace(string(s.policy.SanitizeBytes(buf.Bytes())))
}

func (s *CatalogService) CreateProduct(ctx context.Context, req dto.ProductRequest) (*model.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}
	slug, err := s.uniqueSlug(ctx, Slugify(req.Name), "", s.products.SlugExists)
	if err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	p := &model.Product{
		ID:           uuid.NewString(),
		CategoryID:   req.CategoryID,
		Name:         req.Name,
		Slug:         slug,
		Description:  strings.TrimSpace(req.Description),
		Images:       append([]string{}, req.Images...),
		Price:        model.RoundMoney(req.Price),
		Unit:         strings.TrimSpace(req.Unit),
		Stock:        req.Stock,
		Active:       req.Active == nil || *req.Active,
		Featured:     req.Featured,
		SortOrder:    req.SortOrder,
		ProducerName: strings.TrimSpace(req.ProducerName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, mapRepoErr(err)
	}
	if err := s.confirmCategory(ctx, p.CategoryID); err != nil {
		if delErr := s.products.Delete(ctx, p.ID); delErr != nil {
			s.logger.Error("product rollback failed", zap.String("product_id", p.ID), zap.Error(delErr))
		}
		return nil, err
	}
	s.logger.Info("product created", zap.String("product_id", p.ID), zap.String("slug", p.Slug))
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, req dto.ProductPatchRequest) (*model.Product, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	prevCategory := p.CategoryID
	if req.CategoryID != nil && *req.CategoryID != p.CategoryID {
		if err := s.ensureCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		p.CategoryID = *req.CategoryID
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) != p.Name {
		p.Name = strings.TrimSpace(*req.Name)
		if p.Slug, err = s.uniqueSlug(ctx, Slugify(p.Name), p.ID, s.products.SlugExists); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Images != nil {
		p.Images = append([]string{}, (*req.Images)...)
	}
	if req.Price != nil {
		p.Price = model.RoundMoney(*req.Price)
	}
	if req.Unit != nil {
		p.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if req.Featured != nil {
		p.Featured = *req.Featured
	}
	if req.SortOrder != nil {
		p.SortOrder = *req.SortOrder
	}
	if req.ProducerName != nil {
		p.ProducerName = strings.TrimSpace(*req.ProducerName)
	}
	p.UpdatedAt = s.clock().UTC()
	if err := s.products.Update(ctx, p); err != nil {
		return nil, mapRepoErr(err)
	}
	if p.CategoryID != prevCategory {
		if err := s.confirmCategory(ctx, p.CategoryID); err != nil {
			p.CategoryID = prevCategory
			if rbErr := s.products.Update(ctx, p); rbErr != nil {
				s.logger.Error("product rollback failed", zap.String("product_id", p.ID), zap.Error(rbErr))
			}
			return nil, err
		}
	}
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

// confirmCategory repite ensureCategory después de escribir el producto;
// cubre un DeleteCategory que se coló entre la comprobación y la escritura.
func (s *CatalogService) confirmCategory(ctx context.Context, id string) error {
	err := s.ensureCategory(ctx, id)
	if err != nil {
		s.logger.Warn("category vanished during product write", zap.String("category_id", id))
	}
	return err
}

func (s *CatalogService) ensureCategory(ctx context.Context, id string) error {
	_, err := s.categories.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fieldError("categoryId", "exists", "categoria inexistente")
	}
	return err
}

type slugChecker func(ctx context.Context, slug, excludeID string) (bool, error)

// uniqueSlug agrega -2, -3... hasta encontrar uno libre.
func (s *CatalogService) uniqueSlug(ctx context.Context, base, excludeID string, exists slugChecker) (string, error) {
	if base == "" {
		return "", fieldError("name", "slug", "o nome não gera um identificador válido")
	}
	candidate := base
	for i := 2; i <= maxSlugAttempts; i++ {
		taken, err := exists(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("%w: slug %s", ErrConflict, base)
}

// Slugify: "Feijão Macunde (1kg)" -> "feijao-macunde-1kg".
func Slugify(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
