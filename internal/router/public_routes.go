package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterPublic registers the customer display endpoints. They need no
// account and are rate limited. Orders placed here are always tagged
// with the customer display source.
func RegisterPublic(e *echo.Echo, h Handlers, mw Middleware) {
	g := e.Group("/v1/public", mw.RateLimit)
	carts := h.Carts.ForCustomerDisplay()

	g.GET("/menu", h.Menu.GetMenu, mw.MenuCache)
	g.GET("/carts/:view", carts.Get)
	g.POST("/carts/:view/items", carts.AddItem)
	g.DELETE("/carts/:view/lines/:index", carts.RemoveLine)
	g.POST("/carts/:view/checkout", carts.Checkout)
	g.GET("/events/ws", h.Events.ForCustomerDisplay().Stream)
}
