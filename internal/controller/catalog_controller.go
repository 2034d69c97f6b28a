package controller

import (
	"context"
	"net/http"

	"agriconecta-api/internal/dto"
	"agriconecta-api/internal/model"
	"agriconecta-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CatalogService interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]*model.Category, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	GetPublicCategory(ctx context.Context, slug string) (*model.Category, error)
	CreateCategory(ctx context.Context, req dto.CategoryRequest) (*model.Category, error)
	UpdateCategory(ctx context.Context, id string, req dto.CategoryPatchRequest) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListProducts(ctx context.Context, q service.ProductQuery) (*dto.PageResponse[*model.Product], error)
	GetProduct(ctx context.Context, id string) (*service.ProductView, error)
	GetPublicProduct(ctx context.Context, slug string) (*service.ProductView, error)
	CreateProduct(ctx context.Context, req dto.ProductRequest) (*model.Product, error)
	UpdateProduct(ctx context.Context, id string, req dto.ProductPatchRequest) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type CatalogController struct {
	Service CatalogService
	Logger  *zap.Logger
}

func NewCatalogController(s CatalogService, logger *zap.Logger) *CatalogController {
	return &CatalogController{Service: s, Logger: logger}
}

// Categorías

// GET /categories
func (ctl *CatalogController) PublicCategories(c *gin.Context) {
	ctl.listCategories(c, true)
}

// GET /admin/categories
func (ctl *CatalogController) AdminCategories(c *gin.Context) {
	ctl.listCategories(c, false)
}

func (ctl *CatalogController) listCategories(c *gin.Context, activeOnly bool) {
	cats, err := ctl.Service.ListCategories(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cats})
}

// GET /categories/:slug
func (ctl *CatalogController) PublicCategory(c *gin.Context) {
	cat, err := ctl.Service.GetPublicCategory(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// GET /admin/categories/:id
func (ctl *CatalogController) GetCategory(c *gin.Context) {
	cat, err := ctl.Service.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// POST /admin/categories
func (ctl *CatalogController) CreateCategory(c *gin.Context) {
	var req dto.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := ctl.Service.CreateCategory(c.Request.Context(), req)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// PATCH /admin/categories/:id
func (ctl *CatalogController) UpdateCategory(c *gin.Context) {
	var req dto.CategoryPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := ctl.Service.UpdateCategory(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// DELETE /admin/categories/:id
func (ctl *CatalogController) DeleteCategory(c *gin.Context) {
	if err := ctl.Service.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Productos

// GET /products?category=&featured=&q=&page=&pageSize=
func (ctl *CatalogController) PublicProducts(c *gin.Context) {
	ctl.listProducts(c, service.ProductQuery{CategorySlug: c.Query("category"), Public: true})
}

// GET /admin/products?categoryId=&featured=&q=&page=&pageSize=
func (ctl *CatalogController) AdminProducts(c *gin.Context) {
	ctl.listProducts(c, service.ProductQuery{CategoryID: c.Query("categoryId")})
}

func (ctl *CatalogController) listProducts(c *gin.Context, q service.ProductQuery) {
	q.Featured = queryBool(c, "featured")
	q.Search = c.Query("q")
	q.Page = queryInt(c, "page")
	q.PageSize = queryInt(c, "pageSize")

	page, err := ctl.Service.ListProducts(c.Request.Context(), q)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /products/:slug
func (ctl *CatalogController) PublicProduct(c *gin.Context) {
	p, err := ctl.Service.GetPublicProduct(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /admin/products/:id
func (ctl *CatalogController) GetProduct(c *gin.Context) {
	p, err := ctl.Service.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// POST /admin/products
func (ctl *CatalogController) CreateProduct(c *gin.Context) {
	var req dto.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := ctl.Service.CreateProduct(c.Request.Context(), req)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// PATCH /admin/products/:id
func (ctl *CatalogController) UpdateProduct(c *gin.Context) {
	var req dto.ProductPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := ctl.Service.UpdateProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DELETE /admin/products/:id
func (ctl *CatalogController) DeleteProduct(c *gin.Context) {
	if err := ctl.Service.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, ctl.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
