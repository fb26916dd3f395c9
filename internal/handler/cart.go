package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/pos-dashboard/internal/cart"
	"github.com/iliyamo/pos-dashboard/internal/catalog"
	"github.com/iliyamo/pos-dashboard/internal/checkout"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

// maxAddQuantity caps a single add request.
const maxAddQuantity = 99

// CartHandler drives the per-view carts and checkout. A handler made
// by ForCustomerDisplay keeps its own carts and stamps every order with
// the customer display source whatever the client sends.
type CartHandler struct {
	Carts   *cart.Registry
	Catalog *catalog.Catalog
	Orders  *checkout.Service
	Log     *slog.Logger

	source model.OrderSource
}

func NewCartHandler(carts *cart.Registry, cat *catalog.Catalog, svc *checkout.Service, log *slog.Logger) *CartHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CartHandler{Carts: carts, Catalog: cat, Orders: svc, Log: log}
}

// ForCustomerDisplay returns a copy that serves the public endpoints.
// Its carts are separate from the staff ones, so an anonymous client
// cannot reach a terminal's cart by guessing its view id.
func (h *CartHandler) ForCustomerDisplay() *CartHandler {
	cp := *h
	cp.Carts = cart.NewRegistry()
	cp.source = model.SourceCustomerDisplay
	return &cp
}

type cartResp struct {
	View  string           `json:"view"`
	Lines []model.CartLine `json:"lines"`
	Total decimal.Decimal  `json:"total"`
}

type addItemReq struct {
	ItemID     string           `json:"item_id"`
	Selections model.Selections `json:"selections"`
	Quantity   int              `json:"quantity"`
}

type quantityReq struct {
	Quantity *int `json:"quantity"`
}

// Get returns the cart of a view.
func (h *CartHandler) Get(c echo.Context) error {
	view, ok := viewParam(c)
	if !ok {
		return badRequest(c, "invalid view")
	}
	return c.JSON(http.StatusOK, h.render(view))
}

// AddItem adds quantity units (default one) of a menu item with the
// given selections. Identical selections merge into one line.
func (h *CartHandler) AddItem(c echo.Context) error {
	view, ok := viewParam(c)
	if !ok {
		return badRequest(c, "invalid view")
	}
	var req addItemReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.ItemID) == "" {
		return badRequest(c, "item_id required")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > maxAddQuantity {
		return badRequest(c, "quantity must be between 1 and 99")
	}
	item, err := h.Catalog.Item(req.ItemID)
	if err != nil {
		return fail(c, h.Log, "cart_add", err)
	}
	idx, err := h.Carts.Get(view).AddN(item, req.Selections, req.Quantity)
	if err != nil {
		return fail(c, h.Log, "cart_add", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"line": idx, "cart": h.render(view)})
}

// RemoveLine takes one unit off a line.
func (h *CartHandler) RemoveLine(c echo.Context) error {
	view, ok := viewParam(c)
	if !ok {
		return badRequest(c, "invalid view")
	}
	idx, ok := indexParam(c, "index")
	if !ok {
		return badRequest(c, "invalid line index")
	}
	if err := h.Carts.Get(view).Remove(idx); err != nil {
		return fail(c, h.Log, "cart_remove", err)
	}
	return c.JSON(http.StatusOK, h.render(view))
}

// SetQuantity overwrites a line's quantity; zero drops it.
func (h *CartHandler) SetQuantity(c echo.Context) error {
	view, ok := viewParam(c)
	if !ok {
		return badRequest(c, "invalid view")
	}
	idx, ok := indexParam(c, "index")
	if !ok {
		return badRequest(c, "invalid line index")
	}
	var req quantityReq
	if err := c.Bind(&req); err != nil || req.Quantity == nil {
		return badRequest(c, "quantity required")
	}
	if err := h.Carts.Get(view).SetQuantity(idx, *req.Quantity); err != nil {
		return fail(c, h.Log, "cart_set_quantity", err)
	}
	return c.JSON(http.StatusOK, h.render(view))
}

// Clear empties the cart of a view.
func (h *CartHandler) Clear(c echo.Context) error {
	view, ok := viewParam(c)
	if !ok {
		return badRequest(c, "invalid view")
	}
	h.Carts.Get(view).Clear()
	return c.NoContent(http.StatusNoContent)
}

// Checkout turns the view's cart into an order.
func (h *CartHandler) Checkout(c echo.Context) error {
	view, ok := viewParam(c)
	if !ok {
		return badRequest(c, "invalid view")
	}
	var oc checkout.Context
	if err := c.Bind(&oc); err != nil {
		return badRequest(c, "invalid body")
	}
	if h.source != "" {
		oc.Source = h.source
		// customers cannot seat themselves; dine-in becomes walk-in
		oc.TableID, oc.Guests = "", 0
	}
	res, err := h.Orders.Checkout(c.Request().Context(), h.Carts.Get(view), oc)
	if err != nil {
		return fail(c, h.Log, "checkout", err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *CartHandler) render(view string) cartResp {
	ct := h.Carts.Get(view)
	lines := ct.Lines()
	if lines == nil {
		lines = []model.CartLine{}
	}
	return cartResp{View: view, Lines: lines, Total: ct.Total()}
}

// viewParam validates the :view path segment.
func viewParam(c echo.Context) (string, bool) {
	v := strings.TrimSpace(c.Param("view"))
	return v, v != "" && len(v) <= 64
}
