package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-dashboard/internal/cart"
	"github.com/iliyamo/pos-dashboard/internal/catalog"
	"github.com/iliyamo/pos-dashboard/internal/checkout"
	"github.com/iliyamo/pos-dashboard/internal/kitchen"
	"github.com/iliyamo/pos-dashboard/internal/logger"
	"github.com/iliyamo/pos-dashboard/internal/repository"
	"github.com/iliyamo/pos-dashboard/internal/tables"
)

// dbTimeout bounds every request that reaches MySQL.
const dbTimeout = 5 * time.Second

// statusTable maps domain sentinels to HTTP statuses. The first match
// wins, so more specific errors come first.
var statusTable = []struct {
	err    error
	status int
}{
	{cart.ErrLineNotFound, http.StatusNotFound},
	{cart.ErrInvalidSelection, http.StatusUnprocessableEntity},
	{cart.ErrInvalidQuantity, http.StatusBadRequest},

	{catalog.ErrNotFound, http.StatusNotFound},
	{catalog.ErrConflict, http.StatusConflict},
	{catalog.ErrInvalidItem, http.StatusUnprocessableEntity},

	{checkout.ErrEmptyCart, http.StatusUnprocessableEntity},
	{checkout.ErrPaymentRequired, http.StatusBadRequest},
	{checkout.ErrInvalidSource, http.StatusBadRequest},
	{checkout.ErrInvalidService, http.StatusBadRequest},
	{checkout.ErrTransactionNotFound, http.StatusNotFound},
	{checkout.ErrNotCompleted, http.StatusConflict},

	{kitchen.ErrOrderNotFound, http.StatusNotFound},
	{kitchen.ErrItemNotFound, http.StatusNotFound},
	{kitchen.ErrInvalidTransition, http.StatusConflict},

	{tables.ErrTableNotFound, http.StatusNotFound},
	{tables.ErrEntryNotFound, http.StatusNotFound},
	{tables.ErrOverCapacity, http.StatusUnprocessableEntity},
	{tables.ErrInvalidGuests, http.StatusBadRequest},
	{tables.ErrNameRequired, http.StatusBadRequest},
	{tables.ErrReservationAge, http.StatusUnprocessableEntity},
	{tables.ErrTableBusy, http.StatusConflict},
	{tables.ErrNotReserved, http.StatusConflict},

	{repository.ErrNotFound, http.StatusNotFound},
	{repository.ErrConflict, http.StatusConflict},
	{repository.ErrEmailExists, http.StatusConflict},
}

// fail writes err as {"error": ...}. Unknown errors are logged and
// reported as 500 without detail.
func fail(c echo.Context, log *slog.Logger, action string, err error) error {
	for _, s := range statusTable {
		if errors.Is(err, s.err) {
			return c.JSON(s.status, echo.Map{"error": err.Error()})
		}
	}
	if log == nil {
		log = slog.Default()
	}
	log.Error("request failed", slog.String("action", action), slog.String("path", c.Path()), logger.Err(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// indexParam reads a non-negative integer path parameter.
func indexParam(c echo.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	return n, err == nil && n >= 0
}

func dbContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}
