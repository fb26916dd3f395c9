package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-dashboard/internal/checkout"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

type TransactionHandler struct {
	Checkout *checkout.Service
	Log      *slog.Logger
}

func NewTransactionHandler(svc *checkout.Service, log *slog.Logger) *TransactionHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TransactionHandler{Checkout: svc, Log: log}
}

// List returns the session history, newest first. ?status= filters.
func (h *TransactionHandler) List(c echo.Context) error {
	status := model.TransactionStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status"))))
	txs := h.Checkout.Transactions()
	out := make([]model.Transaction, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		if status == "" || txs[i].Status == status {
			out = append(out, txs[i])
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *TransactionHandler) Void(c echo.Context) error {
	comp, err := h.Checkout.Void(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, "transaction_void", err)
	}
	return c.JSON(http.StatusOK, comp)
}

func (h *TransactionHandler) Refund(c echo.Context) error {
	comp, err := h.Checkout.Refund(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, "transaction_refund", err)
	}
	return c.JSON(http.StatusOK, comp)
}

// Outbox reports writes still waiting for MySQL and those abandoned.
func (h *TransactionHandler) Outbox(c echo.Context) error {
	ob := h.Checkout.Outbox()
	if ob == nil {
		return c.JSON(http.StatusOK, checkout.OutboxStatus{Dead: []checkout.Entry{}})
	}
	st, err := ob.Status(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, "outbox_status", err)
	}
	if st.Dead == nil {
		st.Dead = []checkout.Entry{}
	}
	return c.JSON(http.StatusOK, st)
}
