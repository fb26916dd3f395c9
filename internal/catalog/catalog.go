// Package catalog owns the sellable menu: items with their typed option
// groups, and the categories they are shown under. The remote MySQL
// tables are the source of truth; the key-value store keeps a snapshot
// so the terminals can start while the database is unreachable. Every
// change is announced on menu-items-updated.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/clock"
	"github.com/iliyamo/pos-dashboard/internal/logger"
	"github.com/iliyamo/pos-dashboard/internal/model"
	"github.com/iliyamo/pos-dashboard/internal/store"
)

var (
	ErrNotFound = errors.New("menu entry not found")
	ErrConflict = errors.New("menu entry in use")
)

// Repository is the remote persistence the catalog writes through to.
type Repository interface {
	ListItems(ctx context.Context) ([]model.MenuItem, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpsertItem(ctx context.Context, item model.MenuItem) error
	DeleteItem(ctx context.Context, id string) error
	UpsertCategory(ctx context.Context, c model.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

// Publisher is the part of the broadcast hub the catalog needs.
type Publisher interface {
	Publish(topic broadcast.Topic, payload any) (broadcast.Event, error)
}

// Snapshot is the payload of menu-items-updated.
type Snapshot struct {
	Items      []model.MenuItem `json:"items"`
	Categories []model.Category `json:"categories"`
}

// Catalog is safe for concurrent use. Concurrent edits are serialized;
// the last one wins.
type Catalog struct {
	mu         sync.RWMutex
	items      []model.MenuItem
	categories []model.Category

	repo  Repository
	kv    store.Store
	pub   Publisher
	clock clock.Clock
	log   *slog.Logger
}

// New builds a catalog. repo may be nil, in which case edits only reach
// the local snapshot, and pub may be nil to skip announcements.
func New(repo Repository, kv store.Store, pub Publisher, clk clock.Clock, log *slog.Logger) *Catalog {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{repo: repo, kv: kv, pub: pub, clock: clk, log: log}
}

// Load fills the catalog from the local snapshot. Malformed cached data
// is logged and replaced by an empty list. When nothing is cached the
// remote tables are read instead.
func (c *Catalog) Load(ctx context.Context) error {
	var items []model.MenuItem
	var cats []model.Category
	if err := store.GetJSON(ctx, c.kv, store.KeyMenuItems, &items); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.log.Warn("cached menu unreadable, starting empty", slog.String("action", "catalog_load"), logger.Err(err))
		items = nil
	}
	if err := store.GetJSON(ctx, c.kv, store.KeyCategories, &cats); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.log.Warn("cached categories unreadable, starting empty", slog.String("action", "catalog_load"), logger.Err(err))
		cats = nil
	}
	if len(items) == 0 && len(cats) == 0 && c.repo != nil {
		if err := c.Reload(ctx); err != nil {
			c.log.Error("menu reload failed", slog.String("action", "catalog_load"), logger.Err(err))
		} else {
			return nil
		}
	}
	c.mu.Lock()
	c.items, c.categories = items, cats
	c.mu.Unlock()
	c.announce()
	return nil
}

// Reload replaces the catalog with the remote tables and refreshes the
// local snapshot.
func (c *Catalog) Reload(ctx context.Context) error {
	if c.repo == nil {
		return errors.New("catalog: no remote repository configured")
	}
	items, err := c.repo.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	cats, err := c.repo.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	c.mu.Lock()
	c.items, c.categories = items, cats
	c.mu.Unlock()
	c.persistLocal(ctx)
	c.announce()
	return nil
}

// Items returns every item in display order.
func (c *Catalog) Items() []model.MenuItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

// Item looks up one item by id.
func (c *Catalog) Item(id string) (model.MenuItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.ID == id {
			return it, nil
		}
	}
	return model.MenuItem{}, ErrNotFound
}

// Categories returns the categories sorted by SortOrder then name.
func (c *Catalog) Categories() []model.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Category, len(c.categories))
	copy(out, c.categories)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Snapshot returns items and categories together.
func (c *Catalog) Snapshot() Snapshot {
	return Snapshot{Items: c.Items(), Categories: c.Categories()}
}

// CreateItem validates and stores a new item. An empty ID is assigned.
func (c *Catalog) CreateItem(ctx context.Context, item model.MenuItem) (model.MenuItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Name = strings.TrimSpace(item.Name)
	if err := Validate(item); err != nil {
		return model.MenuItem{}, err
	}
	now := c.clock.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if it.ID == item.ID {
			return model.MenuItem{}, fmt.Errorf("%w: id %s already exists", ErrConflict, item.ID)
		}
	}
	if err := c.writeItem(ctx, item); err != nil {
		return model.MenuItem{}, err
	}
	c.items = append(c.items, item)
	c.afterChangeLocked(ctx)
	return item, nil
}

// UpdateItem replaces an existing item, keeping its creation time.
func (c *Catalog) UpdateItem(ctx context.Context, id string, item model.MenuItem) (model.MenuItem, error) {
	item.ID = id
	item.Name = strings.TrimSpace(item.Name)
	if err := Validate(item); err != nil {
		return model.MenuItem{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.indexLocked(id)
	if idx < 0 {
		return model.MenuItem{}, ErrNotFound
	}
	item.CreatedAt = c.items[idx].CreatedAt
	item.UpdatedAt = c.clock.Now().UTC()
	if err := c.writeItem(ctx, item); err != nil {
		return model.MenuItem{}, err
	}
	c.items[idx] = item
	c.afterChangeLocked(ctx)
	return item, nil
}

// DeleteItem removes an item.
func (c *Catalog) DeleteItem(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.indexLocked(id)
	if idx < 0 {
		return ErrNotFound
	}
	if c.repo != nil {
		if err := c.repo.DeleteItem(ctx, id); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	c.afterChangeLocked(ctx)
	return nil
}

// CreateCategory adds a category. Names are unique ignoring case.
func (c *Catalog) CreateCategory(ctx context.Context, name string, sortOrder int) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, fmt.Errorf("%w: category name is required", ErrInvalidItem)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.categoryByNameLocked(name) >= 0 {
		return model.Category{}, fmt.Errorf("%w: category %q exists", ErrConflict, name)
	}
	cat := model.Category{ID: uuid.NewString(), Name: name, SortOrder: sortOrder}
	if c.repo != nil {
		if err := c.repo.UpsertCategory(ctx, cat); err != nil {
			return model.Category{}, fmt.Errorf("save category: %w", err)
		}
	}
	c.categories = append(c.categories, cat)
	c.afterChangeLocked(ctx)
	return cat, nil
}

// DeleteCategory removes a category that no item refers to.
func (c *Catalog) DeleteCategory(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := -1
	for i, cat := range c.categories {
		if cat.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	name := c.categories[idx].Name
	for _, it := range c.items {
		if strings.EqualFold(it.Category, name) {
			return fmt.Errorf("%w: %s is used by %s", ErrConflict, name, it.Name)
		}
	}
	if c.repo != nil {
		if err := c.repo.DeleteCategory(ctx, id); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
	}
	c.categories = append(c.categories[:idx], c.categories[idx+1:]...)
	c.afterChangeLocked(ctx)
	return nil
}

// ImportCategories adds every name not already present and returns the
// categories that were created. Blank names are skipped.
func (c *Catalog) ImportCategories(ctx context.Context, names []string) ([]model.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var added []model.Category
	next := len(c.categories)
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" || c.categoryByNameLocked(name) >= 0 {
			continue
		}
		cat := model.Category{ID: uuid.NewString(), Name: name, SortOrder: next}
		next++
		if c.repo != nil {
			if err := c.repo.UpsertCategory(ctx, cat); err != nil {
				// Keep what was already written so a retry only adds the rest.
				if len(added) > 0 {
					c.afterChangeLocked(ctx)
				}
				return added, fmt.Errorf("import category %q: %w", name, err)
			}
		}
		c.categories = append(c.categories, cat)
		added = append(added, cat)
	}
	if len(added) > 0 {
		c.afterChangeLocked(ctx)
		c.publish(broadcast.CategoriesImported, added, "catalog_import")
	}
	return added, nil
}

func (c *Catalog) writeItem(ctx context.Context, item model.MenuItem) error {
	if c.repo == nil {
		return nil
	}
	if err := c.repo.UpsertItem(ctx, item); err != nil {
		return fmt.Errorf("save item: %w", err)
	}
	return nil
}

func (c *Catalog) indexLocked(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) categoryByNameLocked(name string) int {
	for i, cat := range c.categories {
		if strings.EqualFold(cat.Name, name) {
			return i
		}
	}
	return -1
}

// afterChangeLocked refreshes the local snapshot and announces the new
// menu. Must be called with c.mu held.
func (c *Catalog) afterChangeLocked(ctx context.Context) {
	snap := Snapshot{
		Items:      append([]model.MenuItem(nil), c.items...),
		Categories: append([]model.Category(nil), c.categories...),
	}
	c.writeLocal(ctx, snap)
	c.publish(broadcast.MenuItemsUpdated, snap, "catalog_broadcast")
}

func (c *Catalog) persistLocal(ctx context.Context) {
	c.writeLocal(ctx, c.Snapshot())
}

func (c *Catalog) writeLocal(ctx context.Context, snap Snapshot) {
	if err := store.SetJSON(ctx, c.kv, store.KeyMenuItems, snap.Items); err != nil {
		c.log.Error("cache menu failed", slog.String("action", "catalog_cache"), logger.Err(err))
	}
	if err := store.SetJSON(ctx, c.kv, store.KeyCategories, snap.Categories); err != nil {
		c.log.Error("cache categories failed", slog.String("action", "catalog_cache"), logger.Err(err))
	}
}

func (c *Catalog) announce() {
	c.publish(broadcast.MenuItemsUpdated, c.Snapshot(), "catalog_broadcast")
}

func (c *Catalog) publish(topic broadcast.Topic, payload any, action string) {
	if c.pub == nil {
		return
	}
	if _, err := c.pub.Publish(topic, payload); err != nil {
		c.log.Error("broadcast failed", slog.String("action", action),
			slog.String("topic", string(topic)), logger.Err(err))
	}
}
