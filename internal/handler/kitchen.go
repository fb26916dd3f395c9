package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/kitchen"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

// KitchenHandler serves the kitchen display.
type KitchenHandler struct {
	Board *kitchen.Board
	Hub   *broadcast.Hub
	Log   *slog.Logger
}

func NewKitchenHandler(b *kitchen.Board, hub *broadcast.Hub, log *slog.Logger) *KitchenHandler {
	if log == nil {
		log = slog.Default()
	}
	return &KitchenHandler{Board: b, Hub: hub, Log: log}
}

func (h *KitchenHandler) List(c echo.Context) error {
	out := h.Board.Orders()
	if out == nil {
		out = []kitchen.Ticket{}
	}
	return c.JSON(http.StatusOK, out)
}

type advanceReq struct {
	Status model.OrderStatus `json:"status"`
}

// Advance moves one item to its next status, or to the status in the
// body when one is given.
func (h *KitchenHandler) Advance(c echo.Context) error {
	idx, ok := indexParam(c, "index")
	if !ok {
		return badRequest(c, "invalid item index")
	}
	var req advanceReq
	_ = c.Bind(&req)

	var (
		t   kitchen.Ticket
		err error
	)
	if req.Status != "" {
		t, err = h.Board.SetStatus(c.Param("id"), idx, req.Status)
	} else {
		t, err = h.Board.Advance(c.Param("id"), idx)
	}
	if err != nil {
		return fail(c, h.Log, "kitchen_advance", err)
	}
	return c.JSON(http.StatusOK, t)
}

// Clear empties the board on every kitchen display. The board itself
// is cleared synchronously so the response reflects it.
func (h *KitchenHandler) Clear(c echo.Context) error {
	h.Board.Clear()
	if _, err := h.Hub.Publish(broadcast.ClearKitchenOrders, nil); err != nil {
		return fail(c, h.Log, "kitchen_clear", err)
	}
	return c.NoContent(http.StatusNoContent)
}
