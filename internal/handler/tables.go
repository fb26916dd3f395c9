package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-dashboard/internal/tables"
)

// TableHandler serves the floor plan, reservations and the waiting list.
type TableHandler struct {
	Tracker *tables.Tracker
	Log     *slog.Logger
}

func NewTableHandler(t *tables.Tracker, log *slog.Logger) *TableHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TableHandler{Tracker: t, Log: log}
}

type occupyReq struct {
	Guests  int `json:"guests"`
	Minutes int `json:"minutes"`
}

type reserveReq struct {
	Name   string    `json:"name"`
	Phone  string    `json:"phone"`
	Guests int       `json:"guests"`
	At     time.Time `json:"at"`
}

type waitingReq struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Guests int    `json:"guests"`
}

type seatReq struct {
	TableID string `json:"table_id"`
}

func (h *TableHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, nonNil(h.Tracker.List()))
}

// Available lists free tables, smallest first.
func (h *TableHandler) Available(c echo.Context) error {
	return c.JSON(http.StatusOK, nonNil(h.Tracker.Available()))
}

// Occupy seats a walk-in party. minutes defaults to the standard
// occupancy window.
func (h *TableHandler) Occupy(c echo.Context) error {
	var req occupyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Minutes < 0 {
		return badRequest(c, "minutes must not be negative")
	}
	tb, err := h.Tracker.Occupy(c.Request().Context(), c.Param("id"), req.Guests, time.Duration(req.Minutes)*time.Minute)
	if err != nil {
		return fail(c, h.Log, "table_occupy", err)
	}
	return c.JSON(http.StatusOK, tb)
}

func (h *TableHandler) Reserve(c echo.Context) error {
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.At.IsZero() {
		return badRequest(c, "at required")
	}
	tb, err := h.Tracker.Reserve(c.Request().Context(), c.Param("id"), req.Name, req.Phone, req.Guests, req.At)
	if err != nil {
		return fail(c, h.Log, "table_reserve", err)
	}
	return c.JSON(http.StatusOK, tb)
}

func (h *TableHandler) CheckIn(c echo.Context) error {
	tb, err := h.Tracker.CheckIn(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, "table_checkin", err)
	}
	return c.JSON(http.StatusOK, tb)
}

func (h *TableHandler) CancelReservation(c echo.Context) error {
	tb, err := h.Tracker.CancelReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, "table_cancel_reservation", err)
	}
	return c.JSON(http.StatusOK, tb)
}

// Clear frees a table after the party leaves.
func (h *TableHandler) Clear(c echo.Context) error {
	tb, err := h.Tracker.Clear(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, "table_clear", err)
	}
	return c.JSON(http.StatusOK, tb)
}

// Hold keeps a free table for the next party on the waiting list.
func (h *TableHandler) Hold(c echo.Context) error {
	tb, err := h.Tracker.HoldForWaiting(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, "table_hold", err)
	}
	return c.JSON(http.StatusOK, tb)
}

func (h *TableHandler) Waiting(c echo.Context) error {
	return c.JSON(http.StatusOK, nonNil(h.Tracker.Waiting()))
}

func (h *TableHandler) AddWaiting(c echo.Context) error {
	var req waitingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	e, err := h.Tracker.AddWaiting(c.Request().Context(), req.Name, req.Phone, req.Guests)
	if err != nil {
		return fail(c, h.Log, "waiting_add", err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *TableHandler) RemoveWaiting(c echo.Context) error {
	if err := h.Tracker.RemoveWaiting(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, h.Log, "waiting_remove", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SeatWaiting moves a waiting party onto a table.
func (h *TableHandler) SeatWaiting(c echo.Context) error {
	var req seatReq
	if err := c.Bind(&req); err != nil || req.TableID == "" {
		return badRequest(c, "table_id required")
	}
	tb, err := h.Tracker.SeatWaiting(c.Request().Context(), c.Param("id"), req.TableID)
	if err != nil {
		return fail(c, h.Log, "waiting_seat", err)
	}
	return c.JSON(http.StatusOK, tb)
}

func (h *TableHandler) NoShows(c echo.Context) error {
	return c.JSON(http.StatusOK, nonNil(h.Tracker.NoShows()))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

