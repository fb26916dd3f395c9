package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-dashboard/internal/catalog"
	"github.com/iliyamo/pos-dashboard/internal/logger"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

// Purger drops cached GET responses after the menu changes.
type Purger interface {
	Purge(ctx context.Context) error
}

// MenuHandler exposes the catalog. Every successful edit purges the
// response cache so the next GET /v1/menu sees it.
type MenuHandler struct {
	Catalog *catalog.Catalog
	Cache   Purger
	Log     *slog.Logger
}

func NewMenuHandler(cat *catalog.Catalog, cache Purger, log *slog.Logger) *MenuHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MenuHandler{Catalog: cat, Cache: cache, Log: log}
}

// GetMenu returns items and categories.
func (h *MenuHandler) GetMenu(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Catalog.Snapshot())
}

func (h *MenuHandler) CreateItem(c echo.Context) error {
	var item model.MenuItem
	if err := c.Bind(&item); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	created, err := h.Catalog.CreateItem(ctx, item)
	if err != nil {
		return fail(c, h.Log, "menu_create_item", err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, created)
}

func (h *MenuHandler) UpdateItem(c echo.Context) error {
	var item model.MenuItem
	if err := c.Bind(&item); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	updated, err := h.Catalog.UpdateItem(ctx, c.Param("id"), item)
	if err != nil {
		return fail(c, h.Log, "menu_update_item", err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, updated)
}

func (h *MenuHandler) DeleteItem(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Catalog.DeleteItem(ctx, c.Param("id")); err != nil {
		return fail(c, h.Log, "menu_delete_item", err)
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

func (h *MenuHandler) ListCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Catalog.Categories())
}

type categoryReq struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

func (h *MenuHandler) CreateCategory(c echo.Context) error {
	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	cat, err := h.Catalog.CreateCategory(ctx, req.Name, req.SortOrder)
	if err != nil {
		return fail(c, h.Log, "menu_create_category", err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, cat)
}

func (h *MenuHandler) DeleteCategory(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Catalog.DeleteCategory(ctx, c.Param("id")); err != nil {
		return fail(c, h.Log, "menu_delete_category", err)
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

type importReq struct {
	Names []string `json:"names"`
}

// ImportCategories adds a batch of category names. Names that already
// exist are skipped; the response lists only what was created.
func (h *MenuHandler) ImportCategories(c echo.Context) error {
	var req importReq
	if err := c.Bind(&req); err != nil || len(req.Names) == 0 {
		return badRequest(c, "names required")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	added, err := h.Catalog.ImportCategories(ctx, req.Names)
	if len(added) > 0 {
		h.purge(ctx)
	}
	if err != nil {
		return fail(c, h.Log, "menu_import_categories", err)
	}
	if added == nil {
		added = []model.Category{}
	}
	return c.JSON(http.StatusCreated, echo.Map{"imported": added})
}

// Reload re-reads the menu from MySQL.
func (h *MenuHandler) Reload(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Catalog.Reload(ctx); err != nil {
		h.Log.Error("menu reload failed", slog.String("action", "menu_reload"), logger.Err(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "menu reload failed"})
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, h.Catalog.Snapshot())
}

func (h *MenuHandler) purge(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Purge(ctx); err != nil {
		h.Log.Warn("menu cache purge failed", slog.String("action", "cache_purge"), logger.Err(err))
	}
}
