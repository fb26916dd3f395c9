// Package router registers the HTTP API on an echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-dashboard/internal/handler"
	"github.com/iliyamo/pos-dashboard/internal/metrics"
	"github.com/iliyamo/pos-dashboard/internal/middleware"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Auth         *handler.AuthHandler
	Menu         *handler.MenuHandler
	Carts        *handler.CartHandler
	Transactions *handler.TransactionHandler
	Kitchen      *handler.KitchenHandler
	Tables       *handler.TableHandler
	Reports      *handler.ReportHandler
	Devices      *handler.DeviceHandler
	Events       *handler.EventsHandler
	Health       echo.HandlerFunc
}

// Middleware carries the optional redis-backed layers. Either may be a
// pass-through when redis is unavailable.
type Middleware struct {
	MenuCache echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// Register wires every route.
func Register(e *echo.Echo, h Handlers, mw Middleware, jwtSecret string) {
	if mw.MenuCache == nil {
		mw.MenuCache = noop
	}
	if mw.RateLimit == nil {
		mw.RateLimit = noop
	}
	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, jwtSecret)
	RegisterStaff(e, h, mw, jwtSecret)
	RegisterOwner(e, h, jwtSecret)
	RegisterPublic(e, h, mw)
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
	e.GET("/metrics", metrics.Handler())
}

// RegisterAuth registers sign-in under /v1/auth and the session check.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }
