package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/cart"
	"github.com/iliyamo/pos-dashboard/internal/catalog"
	"github.com/iliyamo/pos-dashboard/internal/checkout"
	"github.com/iliyamo/pos-dashboard/internal/clock"
	"github.com/iliyamo/pos-dashboard/internal/config"
	"github.com/iliyamo/pos-dashboard/internal/kitchen"
	"github.com/iliyamo/pos-dashboard/internal/middleware"
	"github.com/iliyamo/pos-dashboard/internal/model"
	"github.com/iliyamo/pos-dashboard/internal/reporting"
	"github.com/iliyamo/pos-dashboard/internal/repository"
	"github.com/iliyamo/pos-dashboard/internal/store"
	"github.com/iliyamo/pos-dashboard/internal/tables"
	"github.com/iliyamo/pos-dashboard/internal/utils"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var start = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

const secret = "test-secret"

type fakeUsers struct {
	mu    sync.Mutex
	users []model.User
}

func (f *fakeUsers) Create(_ context.Context, email, name, password, role string, cost int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	id := uint64(len(f.users) + 1)
	f.users = append(f.users, model.User{ID: id, Email: email, DisplayName: name, PasswordHash: hash, Role: role, IsActive: true})
	return id, nil
}

func (f *fakeUsers) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

type refreshRow struct {
	userID  uint64
	revoked bool
}

type fakeTokens struct {
	mu   sync.Mutex
	rows map[string]*refreshRow
}

func (f *fakeTokens) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[hash] = &refreshRow{userID: userID}
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[hash]
	if !ok || r.revoked {
		return 0, repository.ErrTokenInvalid
	}
	return r.userID, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[hash]
	if !ok || r.revoked {
		return false, nil
	}
	r.revoked = true
	return true, nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.userID == userID {
			r.revoked = true
		}
	}
	return nil
}

func (f *fakeTokens) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if !r.revoked {
			n++
		}
	}
	return n
}

type fakeDevices struct {
	mu      sync.Mutex
	devices []model.Device
}

func (f *fakeDevices) Create(_ context.Context, d model.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.devices {
		if x.ID == d.ID {
			return repository.ErrConflict
		}
	}
	f.devices = append(f.devices, d)
	return nil
}

func (f *fakeDevices) Heartbeat(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.devices {
		if x.ID == id {
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeDevices) List(context.Context) ([]model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Device(nil), f.devices...), nil
}

type nullSink struct{}

func (nullSink) SaveTransaction(context.Context, model.Transaction) error { return nil }

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("dial tcp: connection refused") }

type fixture struct {
	e       *echo.Echo
	hub     *broadcast.Hub
	catalog *catalog.Catalog
	svc     *checkout.Service
	board   *kitchen.Board
	reports *reporting.Aggregator
	tokens  *fakeTokens
	burger  model.MenuItem
	tea     model.MenuItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(start)
	hub := broadcast.NewHub(broadcast.WithClock(clk), broadcast.WithLogger(quiet))
	kv := store.NewMemory()
	ctx := context.Background()

	cat := catalog.New(nil, kv, hub, clk, quiet)
	burger, err := cat.CreateItem(ctx, model.MenuItem{ID: "burger", Name: "Burger", Price: decimal.RequireFromString("8.50"), Type: model.ItemFood})
	require.NoError(t, err)
	tea, err := cat.CreateItem(ctx, model.MenuItem{
		ID: "tea", Name: "Milk Tea", Price: decimal.RequireFromString("4.00"), Type: model.ItemBeverage,
		Customizations: []model.OptionGroup{{
			Kind: model.OptionSize, Required: true,
			Choices: []model.Choice{{Label: "Regular"}, {Label: "Large", PriceDelta: decimal.RequireFromString("1.00")}},
		}},
	})
	require.NoError(t, err)

	tr := tables.New(tables.DefaultLayout(), kv, hub, clk, quiet)
	t.Cleanup(tr.Stop)
	outbox := checkout.NewOutbox(checkout.NewMemoryQueue(), nullSink{}, 3, clk, quiet)
	svc := checkout.New(checkout.NewSequencer(kv, clk, time.UTC, quiet), outbox, hub, tr, clk, quiet)
	board := kitchen.NewBoard(hub, clk, quiet)
	reports := reporting.New(time.UTC, quiet)

	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	tokens := &fakeTokens{rows: map[string]*refreshRow{}}
	auth := NewAuthHandler(cfg, &fakeUsers{}, tokens, quiet)
	carts := NewCartHandler(cart.NewRegistry(), cat, svc, quiet)
	public := carts.ForCustomerDisplay()
	txs := NewTransactionHandler(svc, quiet)
	kh := NewKitchenHandler(board, hub, quiet)
	th := NewTableHandler(tr, quiet)
	rh := NewReportHandler(reports, svc, hub, quiet)
	dh := NewDeviceHandler(&fakeDevices{}, quiet)
	mh := NewMenuHandler(cat, nil, quiet)

	e := echo.New()
	e.POST("/auth/register", auth.Register)
	e.POST("/auth/login", auth.Login)
	e.POST("/auth/refresh", auth.Refresh)
	e.POST("/auth/logout", auth.Logout)
	e.GET("/me", auth.Me, middleware.JWTAuth(secret))

	e.GET("/menu", mh.GetMenu)
	e.POST("/menu/items", mh.CreateItem)
	e.DELETE("/menu/items/:id", mh.DeleteItem)

	e.GET("/carts/:view", carts.Get)
	e.POST("/carts/:view/items", carts.AddItem)
	e.DELETE("/carts/:view/lines/:index", carts.RemoveLine)
	e.PUT("/carts/:view/lines/:index", carts.SetQuantity)
	e.DELETE("/carts/:view", carts.Clear)
	e.POST("/carts/:view/checkout", carts.Checkout)
	e.POST("/public/carts/:view/items", public.AddItem)
	e.POST("/public/carts/:view/checkout", public.Checkout)

	e.GET("/transactions", txs.List)
	e.POST("/transactions/:id/void", txs.Void)
	e.POST("/transactions/:id/refund", txs.Refund)
	e.GET("/transactions/outbox", txs.Outbox)

	e.GET("/kitchen/orders", kh.List)
	e.POST("/kitchen/orders/:id/items/:index", kh.Advance)
	e.DELETE("/kitchen/orders", kh.Clear)

	e.GET("/tables", th.List)
	e.POST("/tables/:id/occupy", th.Occupy)
	e.POST("/tables/:id/reserve", th.Reserve)
	e.POST("/tables/:id/clear", th.Clear)

	e.GET("/reports", rh.Summary)
	e.DELETE("/reports", rh.Clear)

	e.POST("/devices", dh.Register)
	e.POST("/devices/:id/heartbeat", dh.Heartbeat)

	return &fixture{e: e, hub: hub, catalog: cat, svc: svc, board: board, reports: reports, tokens: tokens, burger: burger, tea: tea}
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// checkout puts one burger in view and pays for it in cash.
func (f *fixture) checkout(t *testing.T, view string) checkout.Result {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/carts/"+view+"/items", echo.Map{"item_id": "burger"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, "/carts/"+view+"/checkout", echo.Map{"payment_method": "cash"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[checkout.Result](t, rec)
}

func TestRegisterFirstAccountIsOwner(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/register", echo.Map{"email": "Boss@Example.com", "password": "password123", "role": "STAFF"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	owner := decode[authResp](t, rec)
	assert.Equal(t, model.RoleOwner, owner.User.Role)
	assert.Equal(t, "boss@example.com", owner.User.Email)
	assert.NotEmpty(t, owner.Access.Token)
	assert.Len(t, owner.Refresh.Token, 96)

	rec = f.do(t, http.MethodPost, "/auth/register", echo.Map{"email": "cook@example.com", "password": "password123"}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/register", echo.Map{"email": "cook@example.com", "password": "password123"}, owner.Access.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	staff := decode[authResp](t, rec)
	assert.Equal(t, model.RoleStaff, staff.User.Role)

	rec = f.do(t, http.MethodPost, "/auth/register", echo.Map{"email": "host@example.com", "password": "password123"}, staff.Access.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/register", echo.Map{"email": "cook@example.com", "password": "password123"}, owner.Access.Token)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/register", echo.Map{"email": "a@example.com", "password": "short"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/auth/register", echo.Map{"password": "password123"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginAndMe(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/auth/register", echo.Map{"email": "boss@example.com", "display_name": "Boss", "password": "password123"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", echo.Map{"email": "boss@example.com", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(t, http.MethodPost, "/auth/login", echo.Map{"email": "nobody@example.com", "password": "password123"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", echo.Map{"email": " BOSS@example.com ", "password": "password123"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[authResp](t, rec)

	rec = f.do(t, http.MethodGet, "/me", nil, login.Access.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[userPart](t, rec)
	assert.Equal(t, "Boss", me.DisplayName)
	assert.Equal(t, model.RoleOwner, me.Role)

	rec = f.do(t, http.MethodGet, "/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/auth/register", echo.Map{"email": "boss@example.com", "password": "password123"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[authResp](t, rec)

	rec = f.do(t, http.MethodPost, "/auth/refresh", echo.Map{"refresh_token": first.Refresh.Token}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[authResp](t, rec)
	assert.NotEqual(t, first.Refresh.Token, second.Refresh.Token)

	rec = f.do(t, http.MethodPost, "/auth/refresh", echo.Map{"refresh_token": first.Refresh.Token}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/refresh", echo.Map{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/auth/register", echo.Map{"email": "boss@example.com", "password": "password123"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	reg := decode[authResp](t, rec)
	rec = f.do(t, http.MethodPost, "/auth/login", echo.Map{"email": "boss@example.com", "password": "password123"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, f.tokens.live())

	rec = f.do(t, http.MethodPost, "/auth/logout", echo.Map{"refresh_token": reg.Refresh.Token}, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, f.tokens.live())

	rec = f.do(t, http.MethodPost, "/auth/logout", nil, reg.Access.Token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, f.tokens.live())

	rec = f.do(t, http.MethodPost, "/auth/logout", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartMergesIdenticalSelections(t *testing.T) {
	f := newFixture(t)
	large := echo.Map{"item_id": "tea", "selections": echo.Map{"size": []string{"Large"}}}

	rec := f.do(t, http.MethodPost, "/carts/terminal/items", large, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, "/carts/terminal/items", large, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/carts/terminal/items", echo.Map{"item_id": "burger", "quantity": 2}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/carts/terminal", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[cartResp](t, rec)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, 2, got.Lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("5").Equal(got.Lines[0].UnitPrice))
	assert.Equal(t, 2, got.Lines[1].Quantity)
	assert.True(t, decimal.RequireFromString("27").Equal(got.Total), got.Total.String())

	rec = f.do(t, http.MethodGet, "/carts/kitchen", nil, "")
	assert.Empty(t, decode[cartResp](t, rec).Lines)
}

func TestCartRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/carts/terminal/items", echo.Map{"item_id": "tea"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "required size missing")
	rec = f.do(t, http.MethodPost, "/carts/terminal/items", echo.Map{"item_id": "ghost"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodPost, "/carts/terminal/items", echo.Map{"item_id": "burger", "quantity": 100}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/carts/terminal/items", echo.Map{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodDelete, "/carts/terminal/lines/3", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodDelete, "/carts/terminal/lines/x", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartRemoveAndSetQuantity(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/carts/terminal/items", echo.Map{"item_id": "burger", "quantity": 3}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/carts/terminal/lines/0", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[cartResp](t, rec).Lines[0].Quantity)

	rec = f.do(t, http.MethodPut, "/carts/terminal/lines/0", echo.Map{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/carts/terminal/lines/0", echo.Map{"quantity": 0}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartResp](t, rec).Lines)

	f.do(t, http.MethodPost, "/carts/terminal/items", echo.Map{"item_id": "burger"}, "")
	rec = f.do(t, http.MethodDelete, "/carts/terminal", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/carts/terminal", nil, "")
	assert.True(t, decode[cartResp](t, rec).Total.IsZero())
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/carts/terminal/checkout", echo.Map{"payment_method": "cash"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "empty cart")

	f.do(t, http.MethodPost, "/carts/terminal/items", echo.Map{"item_id": "burger"}, "")
	rec = f.do(t, http.MethodPost, "/carts/terminal/checkout", echo.Map{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "payment missing")
	rec = f.do(t, http.MethodPost, "/carts/terminal/checkout", echo.Map{"payment_method": "cash", "service_type": "dine_in", "table_id": "T9"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/carts/terminal/checkout", echo.Map{"payment_method": "cash"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[checkout.Result](t, rec)
	assert.Equal(t, "ORD_20260301_001", res.Order.Number)
	assert.True(t, decimal.RequireFromString("8.50").Equal(res.Transaction.Amount))

	rec = f.do(t, http.MethodGet, "/carts/terminal", nil, "")
	assert.Empty(t, decode[cartResp](t, rec).Lines)

	rec = f.do(t, http.MethodGet, "/transactions/outbox", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[checkout.OutboxStatus](t, rec)
	assert.EqualValues(t, 1, st.Pending)
	assert.Empty(t, st.Dead)
}

func TestPublicCheckoutIsCustomerDisplay(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/public/carts/kiosk/items", echo.Map{"item_id": "burger"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/public/carts/kiosk/checkout", echo.Map{"payment_method": "card", "source": "terminal"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[checkout.Result](t, rec)
	assert.Equal(t, model.SourceCustomerDisplay, res.Order.Source)
	assert.Equal(t, model.SourceCustomerDisplay, res.Transaction.Source)
}

func TestVoidAndRefund(t *testing.T) {
	f := newFixture(t)
	first := f.checkout(t, "terminal")
	second := f.checkout(t, "terminal")

	rec := f.do(t, http.MethodPost, "/transactions/"+first.Transaction.ID+"/void", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	comp := decode[model.Transaction](t, rec)
	assert.True(t, decimal.RequireFromString("-8.50").Equal(comp.Amount))
	assert.Equal(t, first.Transaction.ID, comp.CompensatesID)

	rec = f.do(t, http.MethodPost, "/transactions/"+first.Transaction.ID+"/refund", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = f.do(t, http.MethodPost, "/transactions/"+comp.ID+"/void", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code, "a compensation cannot be reversed")
	rec = f.do(t, http.MethodPost, "/transactions/nope/void", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/transactions/"+second.Transaction.ID+"/refund", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TxRefunded, decode[model.Transaction](t, rec).Status)

	rec = f.do(t, http.MethodGet, "/transactions", nil, "")
	all := decode[[]model.Transaction](t, rec)
	require.Len(t, all, 4)
	assert.Equal(t, second.Transaction.ID, all[0].CompensatesID, "newest first")

	rec = f.do(t, http.MethodGet, "/transactions?status=voided", nil, "")
	assert.Len(t, decode[[]model.Transaction](t, rec), 2)
}

func TestKitchenAdvance(t *testing.T) {
	f := newFixture(t)
	res := f.checkout(t, "terminal")
	f.board.Receive(res.Order)
	path := "/kitchen/orders/" + res.Order.ID + "/items/0"

	rec := f.do(t, http.MethodPost, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tk := decode[kitchen.Ticket](t, rec)
	assert.Equal(t, model.StatusPreparing, tk.Items[0].Status)
	assert.Equal(t, model.StatusPreparing, tk.Status)

	rec = f.do(t, http.MethodPost, path, echo.Map{"status": "pending"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, path, echo.Map{"status": "ready"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusReady, decode[kitchen.Ticket](t, rec).Status)

	rec = f.do(t, http.MethodPost, "/kitchen/orders/"+res.Order.ID+"/items/5", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodPost, "/kitchen/orders/ghost/items/0", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKitchenClearBroadcasts(t *testing.T) {
	f := newFixture(t)
	res := f.checkout(t, "terminal")
	f.board.Receive(res.Order)
	sub := f.hub.Subscribe(broadcast.ClearKitchenOrders)
	defer sub.Close()

	rec := f.do(t, http.MethodDelete, "/kitchen/orders", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, broadcast.ClearKitchenOrders, (<-sub.Events).Topic)

	rec = f.do(t, http.MethodGet, "/kitchen/orders", nil, "")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestTableEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/tables/T1/occupy", echo.Map{"guests": 3}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "T1 seats two")
	rec = f.do(t, http.MethodPost, "/tables/T1/occupy", echo.Map{"guests": 2, "minutes": 45}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tb := decode[model.Table](t, rec)
	assert.Equal(t, model.TableOccupied, tb.Status)
	require.NotNil(t, tb.EndsAt)
	assert.Equal(t, start.Add(45*time.Minute), tb.EndsAt.UTC())

	rec = f.do(t, http.MethodPost, "/tables/T1/occupy", echo.Map{"guests": 1}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = f.do(t, http.MethodPost, "/tables/T1/occupy", echo.Map{"guests": 1, "minutes": -5}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/tables/T42/occupy", echo.Map{"guests": 1}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/tables/T1/clear", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TableAvailable, decode[model.Table](t, rec).Status)

	rec = f.do(t, http.MethodPost, "/tables/T3/reserve", echo.Map{"name": "Lee", "guests": 4}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "at missing")

	rec = f.do(t, http.MethodGet, "/tables", nil, "")
	assert.Len(t, decode[[]model.Table](t, rec), 8)
}

func TestReportsClear(t *testing.T) {
	f := newFixture(t)
	res := f.checkout(t, "terminal")
	f.reports.Add(res.Transaction)

	rec := f.do(t, http.MethodGet, "/reports", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[reporting.Summary](t, rec)
	assert.Equal(t, 1, sum.Orders)
	assert.True(t, decimal.RequireFromString("8.50").Equal(sum.Gross))

	sub := f.hub.Subscribe(broadcast.ClearTransactions)
	defer sub.Close()
	rec = f.do(t, http.MethodDelete, "/reports", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, broadcast.ClearTransactions, (<-sub.Events).Topic)

	assert.Zero(t, f.reports.Summary().Orders)
	assert.Empty(t, f.svc.Transactions())
}

func TestMenuEdits(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/menu/items", echo.Map{"name": "Fries", "price": "3.00", "type": "food"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fries := decode[model.MenuItem](t, rec)
	assert.NotEmpty(t, fries.ID)

	rec = f.do(t, http.MethodPost, "/menu/items", echo.Map{"name": "", "price": "3.00", "type": "food"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodGet, "/menu", nil, "")
	assert.Len(t, decode[catalog.Snapshot](t, rec).Items, 3)

	rec = f.do(t, http.MethodDelete, "/menu/items/"+fries.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/menu/items/"+fries.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDevices(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/devices", echo.Map{"name": "Front", "kind": "toaster"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/devices", echo.Map{"kind": "terminal"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/devices", echo.Map{"id": "term-1", "name": "Front", "kind": "terminal"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "online", decode[model.Device](t, rec).Status)
	rec = f.do(t, http.MethodPost, "/devices", echo.Map{"id": "term-1", "name": "Front", "kind": "terminal"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/devices/term-1/heartbeat", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodPost, "/devices/ghost/heartbeat", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/up", Health(nil))
	e.GET("/down", Health(downDB{}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/up", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParseTopics(t *testing.T) {
	all, err := parseTopics("", nil)
	require.NoError(t, err)
	assert.Equal(t, broadcast.All(), all)

	got, err := parseTopics("", customerTopics)
	require.NoError(t, err)
	assert.ElementsMatch(t, []broadcast.Topic{broadcast.MenuItemsUpdated, broadcast.AvailableTables}, got)

	got, err = parseTopics(" new-order , ,new-transaction", nil)
	require.NoError(t, err)
	assert.Equal(t, []broadcast.Topic{broadcast.NewOrder, broadcast.NewTransaction}, got)

	_, err = parseTopics("new-order,bogus", nil)
	assert.Error(t, err)
	_, err = parseTopics("new-transaction", customerTopics)
	assert.Error(t, err)
}
