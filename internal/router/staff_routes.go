package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-dashboard/internal/middleware"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

// RegisterStaff registers the floor endpoints used by terminals and the
// kitchen display. Any signed-in role may call them.
func RegisterStaff(e *echo.Echo, h Handlers, mw Middleware, jwtSecret string) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner, model.RoleStaff),
	)

	g.GET("/menu", h.Menu.GetMenu, mw.MenuCache)
	g.GET("/menu/categories", h.Menu.ListCategories)

	g.GET("/carts/:view", h.Carts.Get)
	g.POST("/carts/:view/items", h.Carts.AddItem)
	g.DELETE("/carts/:view/lines/:index", h.Carts.RemoveLine)
	g.PUT("/carts/:view/lines/:index", h.Carts.SetQuantity)
	g.DELETE("/carts/:view", h.Carts.Clear)
	g.POST("/carts/:view/checkout", h.Carts.Checkout)

	g.GET("/transactions", h.Transactions.List)
	g.POST("/transactions/:id/void", h.Transactions.Void)

	g.GET("/kitchen/orders", h.Kitchen.List)
	g.POST("/kitchen/orders/:id/items/:index/advance", h.Kitchen.Advance)
	g.DELETE("/kitchen/orders", h.Kitchen.Clear)

	g.GET("/tables", h.Tables.List)
	g.GET("/tables/available", h.Tables.Available)
	g.POST("/tables/:id/occupy", h.Tables.Occupy)
	g.POST("/tables/:id/reserve", h.Tables.Reserve)
	g.POST("/tables/:id/checkin", h.Tables.CheckIn)
	g.POST("/tables/:id/clear", h.Tables.Clear)
	g.POST("/tables/:id/cancel-reservation", h.Tables.CancelReservation)
	g.POST("/tables/:id/hold", h.Tables.Hold)
	g.GET("/waiting", h.Tables.Waiting)
	g.POST("/waiting", h.Tables.AddWaiting)
	g.DELETE("/waiting/:id", h.Tables.RemoveWaiting)
	g.POST("/waiting/:id/seat", h.Tables.SeatWaiting)
	g.GET("/no-shows", h.Tables.NoShows)

	g.POST("/devices/:id/heartbeat", h.Devices.Heartbeat)
	g.GET("/events/ws", h.Events.Stream)
}
