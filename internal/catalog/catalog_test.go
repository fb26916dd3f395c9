package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/model"
	"github.com/iliyamo/pos-dashboard/internal/store"
)

type fakeRepo struct {
	mu    sync.Mutex
	items map[string]model.MenuItem
	cats  map[string]model.Category
	fail  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: map[string]model.MenuItem{}, cats: map[string]model.Category{}}
}

func (r *fakeRepo) ListItems(context.Context) ([]model.MenuItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.MenuItem
	for _, it := range r.items {
		out = append(out, it)
	}
	return out, r.fail
}

func (r *fakeRepo) ListCategories(context.Context) ([]model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Category
	for _, c := range r.cats {
		out = append(out, c)
	}
	return out, r.fail
}

func (r *fakeRepo) UpsertItem(_ context.Context, it model.MenuItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.items[it.ID] = it
	return nil
}

func (r *fakeRepo) DeleteItem(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return r.fail
}

func (r *fakeRepo) UpsertCategory(_ context.Context, c model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.cats[c.ID] = c
	return nil
}

func (r *fakeRepo) DeleteCategory(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cats, id)
	return r.fail
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func burger() model.MenuItem {
	return model.MenuItem{
		Name:     "Chicken Burger",
		Price:    decimal.RequireFromString("8.50"),
		Type:     model.ItemFood,
		Category: "Mains",
		Customizations: []model.OptionGroup{
			{Kind: model.OptionSpice, Required: true, Choices: []model.Choice{
				{Label: "Mild"}, {Label: "Hot"},
			}},
		},
	}
}

func TestCreateItemPersistsAndAnnounces(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	kv := store.NewMemory()
	hub := broadcast.NewHub()
	sub := hub.Subscribe(broadcast.MenuItemsUpdated)
	defer sub.Close()

	c := New(repo, kv, hub, nil, quiet)
	item, err := c.CreateItem(ctx, burger())
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Contains(t, repo.items, item.ID)

	var cached []model.MenuItem
	require.NoError(t, store.GetJSON(ctx, kv, store.KeyMenuItems, &cached))
	require.Len(t, cached, 1)
	assert.Equal(t, "Chicken Burger", cached[0].Name)

	ev := <-sub.Events
	var snap Snapshot
	require.NoError(t, ev.Decode(&snap))
	require.Len(t, snap.Items, 1)
	assert.Equal(t, item.ID, snap.Items[0].ID)
}

func TestCreateItemRemoteFailureLeavesCatalogUnchanged(t *testing.T) {
	repo := newFakeRepo()
	repo.fail = errors.New("db down")
	c := New(repo, store.NewMemory(), broadcast.NewHub(), nil, quiet)

	_, err := c.CreateItem(context.Background(), burger())
	require.Error(t, err)
	assert.Empty(t, c.Items())
}

func TestValidateRejectsMismatchedGroups(t *testing.T) {
	it := burger()
	it.Customizations = append(it.Customizations, model.OptionGroup{
		Kind: model.OptionSweetness, Choices: []model.Choice{{Label: "50%"}},
	})
	assert.ErrorIs(t, Validate(it), ErrInvalidItem, "sweetness is a drink option")

	it = burger()
	it.Customizations[0].Choices = append(it.Customizations[0].Choices, model.Choice{Label: "Hot"})
	assert.ErrorIs(t, Validate(it), ErrInvalidItem, "duplicate label")

	it = burger()
	it.Customizations = append(it.Customizations, model.OptionGroup{
		Kind: model.OptionExtras, Choices: []model.Choice{{Label: "Cheese", PriceDelta: decimal.RequireFromString("-1")}},
	})
	assert.ErrorIs(t, Validate(it), ErrInvalidItem, "negative extra")

	it = burger()
	it.Customizations = append(it.Customizations, model.OptionGroup{Kind: "garnish", Choices: []model.Choice{{Label: "x"}}})
	assert.ErrorIs(t, Validate(it), ErrInvalidItem)

	it = burger()
	it.Type = "dessert"
	assert.ErrorIs(t, Validate(it), ErrInvalidItem)

	assert.NoError(t, Validate(burger()))
}

func TestSizeMayDiscount(t *testing.T) {
	it := burger()
	it.Customizations = append(it.Customizations, model.OptionGroup{
		Kind: model.OptionSize, Choices: []model.Choice{
			{Label: "Slider", PriceDelta: decimal.RequireFromString("-2.00")},
			{Label: "Regular"},
		},
	})
	assert.NoError(t, Validate(it))
}

func TestLoadSubstitutesEmptyMenuForCorruptCache(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, store.KeyMenuItems, []byte("[{broken")))

	c := New(nil, kv, broadcast.NewHub(), nil, quiet)
	require.NoError(t, c.Load(ctx))
	assert.Empty(t, c.Items())
}

func TestLoadFallsBackToRemote(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.items["x"] = model.MenuItem{ID: "x", Name: "Latte", Type: model.ItemBeverage, Price: decimal.RequireFromString("4")}
	kv := store.NewMemory()

	c := New(repo, kv, broadcast.NewHub(), nil, quiet)
	require.NoError(t, c.Load(ctx))
	require.Len(t, c.Items(), 1)

	var cached []model.MenuItem
	require.NoError(t, store.GetJSON(ctx, kv, store.KeyMenuItems, &cached))
	assert.Len(t, cached, 1)
}

func TestUpdateAndDeleteItem(t *testing.T) {
	ctx := context.Background()
	c := New(newFakeRepo(), store.NewMemory(), broadcast.NewHub(), nil, quiet)
	created, err := c.CreateItem(ctx, burger())
	require.NoError(t, err)

	upd := burger()
	upd.Price = decimal.RequireFromString("9.00")
	got, err := c.UpdateItem(ctx, created.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
	assert.True(t, decimal.RequireFromString("9").Equal(got.Price))

	_, err = c.UpdateItem(ctx, "missing", upd)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.DeleteItem(ctx, created.ID))
	assert.ErrorIs(t, c.DeleteItem(ctx, created.ID), ErrNotFound)
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	hub := broadcast.NewHub()
	imported := hub.Subscribe(broadcast.CategoriesImported)
	defer imported.Close()
	c := New(newFakeRepo(), store.NewMemory(), hub, nil, quiet)

	mains, err := c.CreateCategory(ctx, "Mains", 0)
	require.NoError(t, err)
	_, err = c.CreateCategory(ctx, "mains", 1)
	assert.ErrorIs(t, err, ErrConflict)

	added, err := c.ImportCategories(ctx, []string{"Drinks", "MAINS", " ", "Desserts", "Drinks"})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, "Drinks", added[0].Name)
	assert.Equal(t, "Desserts", added[1].Name)
	assert.Len(t, c.Categories(), 3)
	ev := <-imported.Events
	assert.Equal(t, broadcast.CategoriesImported, ev.Topic)

	_, err = c.CreateItem(ctx, burger())
	require.NoError(t, err)
	assert.ErrorIs(t, c.DeleteCategory(ctx, mains.ID), ErrConflict)
}

func TestEditsWithoutPublisher(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	c := New(nil, kv, nil, nil, quiet)

	_, err := c.CreateItem(ctx, burger())
	require.NoError(t, err)
	added, err := c.ImportCategories(ctx, []string{"Mains"})
	require.NoError(t, err)
	assert.Len(t, added, 1)
	assert.Len(t, c.Items(), 1)

	var cached []model.MenuItem
	require.NoError(t, store.GetJSON(ctx, kv, store.KeyMenuItems, &cached))
	assert.Len(t, cached, 1)
}

func TestParseSeed(t *testing.T) {
	data := []byte(`
categories: [Tea, Snacks]
items:
  - name: Jasmine Green Tea
    price: "4.99"
    type: beverage
    category: Tea
    options:
      - kind: size
        required: true
        choices:
          - {label: Small}
          - {label: Large, delta: "2.00"}
  - name: Spring Rolls
    price: "5.50"
    type: food
    category: Snacks
`)
	cats, items, err := ParseSeed(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tea", "Snacks"}, cats)
	require.Len(t, items, 2)
	g, ok := items[0].Group(model.OptionSize)
	require.True(t, ok)
	large, ok := g.Choice("Large")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("2").Equal(large.PriceDelta))
	assert.NoError(t, Validate(items[1]))
}
