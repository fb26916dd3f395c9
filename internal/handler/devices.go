package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-dashboard/internal/model"
)

// DeviceStore is the device registry persistence.
type DeviceStore interface {
	Create(ctx context.Context, d model.Device) error
	Heartbeat(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Device, error)
}

type DeviceHandler struct {
	Devices DeviceStore
	Log     *slog.Logger
	now     func() time.Time
}

func NewDeviceHandler(d DeviceStore, log *slog.Logger) *DeviceHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DeviceHandler{Devices: d, Log: log, now: time.Now}
}

type deviceReq struct {
	ID   string           `json:"id"`
	Name string           `json:"name"`
	Kind model.DeviceKind `json:"kind"`
}

func (h *DeviceHandler) List(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	ds, err := h.Devices.List(ctx)
	if err != nil {
		return fail(c, h.Log, "device_list", err)
	}
	return c.JSON(http.StatusOK, nonNil(ds))
}

// Register adds a terminal, display or printer. The id may be chosen
// by the device; otherwise one is generated.
func (h *DeviceHandler) Register(c echo.Context) error {
	var req deviceReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return badRequest(c, "name required")
	}
	if !req.Kind.Valid() {
		return badRequest(c, "kind must be terminal, kitchen_display, customer_display or printer")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := h.now().UTC()
	d := model.Device{ID: req.ID, Name: req.Name, Kind: req.Kind, Status: "online", LastSeen: now, CreatedAt: now}

	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Devices.Create(ctx, d); err != nil {
		return fail(c, h.Log, "device_register", err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *DeviceHandler) Heartbeat(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Devices.Heartbeat(ctx, c.Param("id")); err != nil {
		return fail(c, h.Log, "device_heartbeat", err)
	}
	return c.NoContent(http.StatusNoContent)
}
