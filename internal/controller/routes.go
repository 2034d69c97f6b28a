package controller

import (
	"agriconecta-api/internal/middleware"
	"agriconecta-api/internal/rbac"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Orders   *OrderController
	Checkout *CheckoutController
	Catalog  *CatalogController
	Reports  *ReportController
	Auth     *AuthController
	Health   *HealthController

	Notifications *NotificationController
}

// RegisterRoutes monta las rutas públicas y las de administración.
func RegisterRoutes(r gin.IRouter, h Handlers, tokens middleware.TokenValidator) {
	can := middleware.RequireCapability

	// Rutas públicas
	r.GET("/health", h.Health.Health)
	r.POST("/checkout", middleware.OptionalAuth(tokens), h.Checkout.Checkout)
	r.GET("/orders/tracking/:code", h.Orders.Track)
	r.POST("/orders/tracking/:code/payment-proof", h.Orders.SubmitPaymentProof)

	r.GET("/categories", h.Catalog.PublicCategories)
	r.GET("/categories/:slug", h.Catalog.PublicCategory)
	r.GET("/products", h.Catalog.PublicProducts)
	r.GET("/products/:slug", h.Catalog.PublicProduct)

	r.POST("/auth/register", h.Auth.Register)
	r.POST("/auth/login", h.Auth.Login)

	// Rutas protegidas (requieren token)
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(tokens))
	auth.GET("/auth/me", can(rbac.CapProfileSelf), h.Auth.Me)

	// Rutas admin
	admin := auth.Group("/admin")
	admin.GET("/orders", can(rbac.CapOrdersRead), h.Orders.List)
	admin.GET("/orders/:id", can(rbac.CapOrdersRead), h.Orders.Get)
	admin.PATCH("/orders/:id", can(rbac.CapOrdersManage), h.Orders.Update)
	admin.GET("/orders/:id/whatsapp", can(rbac.CapOrdersRead), h.Orders.WhatsApp)

	admin.GET("/categories", can(rbac.CapCategoriesRead), h.Catalog.AdminCategories)
	admin.GET("/categories/:id", can(rbac.CapCategoriesRead), h.Catalog.GetCategory)
	admin.POST("/categories", can(rbac.CapCategoriesManage), h.Catalog.CreateCategory)
	admin.PATCH("/categories/:id", can(rbac.CapCategoriesManage), h.Catalog.UpdateCategory)
	admin.DELETE("/categories/:id", can(rbac.CapCategoriesManage), h.Catalog.DeleteCategory)

	admin.GET("/products", can(rbac.CapProductsRead), h.Catalog.AdminProducts)
	admin.GET("/products/:id", can(rbac.CapProductsRead), h.Catalog.GetProduct)
	admin.POST("/products", can(rbac.CapProductsManage), h.Catalog.CreateProduct)
	admin.PATCH("/products/:id", can(rbac.CapProductsManage), h.Catalog.UpdateProduct)
	admin.DELETE("/products/:id", can(rbac.CapProductsManage), h.Catalog.DeleteProduct)

	reports := admin.Group("/reports", can(rbac.CapReportsView))
	reports.GET("/sales-series", h.Reports.SalesSeries)
	reports.GET("/top-products", h.Reports.TopProducts)
	reports.GET("/sales", h.Reports.Sales)
	reports.GET("/dashboard", h.Reports.Dashboard)

	admin.PATCH("/users/:id/role", can(rbac.CapUsersManage), h.Auth.SetRole)

	if h.Notifications != nil {
		admin.GET("/notifications/dead-letters", can(rbac.CapUsersManage), h.Notifications.ListDeadLetters)
	}
}
