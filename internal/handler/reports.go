package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/checkout"
	"github.com/iliyamo/pos-dashboard/internal/reporting"
)

type ReportHandler struct {
	Reports  *reporting.Aggregator
	Checkout *checkout.Service
	Hub      *broadcast.Hub
	Log      *slog.Logger
}

func NewReportHandler(r *reporting.Aggregator, svc *checkout.Service, hub *broadcast.Hub, log *slog.Logger) *ReportHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReportHandler{Reports: r, Checkout: svc, Hub: hub, Log: log}
}

// Summary returns totals, daily sales, source split and top items.
func (h *ReportHandler) Summary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Reports.Summary())
}

// Clear resets the session's reports and transaction history on every
// screen. Rows already written to MySQL are kept.
func (h *ReportHandler) Clear(c echo.Context) error {
	h.Reports.Clear()
	h.Checkout.ClearHistory()
	if _, err := h.Hub.Publish(broadcast.ClearTransactions, nil); err != nil {
		return fail(c, h.Log, "reports_clear", err)
	}
	return c.NoContent(http.StatusNoContent)
}
