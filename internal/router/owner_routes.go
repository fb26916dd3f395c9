package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-dashboard/internal/middleware"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

// RegisterOwner registers catalog edits, refunds, reports and the
// device registry. All routes require the OWNER role.
func RegisterOwner(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner),
	)

	g.POST("/menu/items", h.Menu.CreateItem)
	g.PUT("/menu/items/:id", h.Menu.UpdateItem)
	g.DELETE("/menu/items/:id", h.Menu.DeleteItem)
	g.POST("/menu/categories", h.Menu.CreateCategory)
	g.DELETE("/menu/categories/:id", h.Menu.DeleteCategory)
	g.POST("/menu/categories/import", h.Menu.ImportCategories)
	g.POST("/menu/reload", h.Menu.Reload)

	g.POST("/transactions/:id/refund", h.Transactions.Refund)
	g.GET("/outbox", h.Transactions.Outbox)

	g.GET("/reports/summary", h.Reports.Summary)
	g.DELETE("/reports", h.Reports.Clear)

	g.GET("/devices", h.Devices.List)
	g.POST("/devices", h.Devices.Register)
}
