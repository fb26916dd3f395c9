// Package tables keeps the floor plan: which tables are free, seated,
// reserved or held for the waiting list, plus the waiting list and the
// no-show log. State is persisted to the key-value store after every
// change and the list of free tables is announced on available-tables.
package tables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/clock"
	"github.com/iliyamo/pos-dashboard/internal/logger"
	"github.com/iliyamo/pos-dashboard/internal/metrics"
	"github.com/iliyamo/pos-dashboard/internal/model"
	"github.com/iliyamo/pos-dashboard/internal/store"
)

// Timing rules for reservations and seated parties.
const (
	ReminderLead     = 10 * time.Minute
	NoShowGrace      = 30 * time.Minute
	DefaultOccupancy = 2 * time.Hour
)

var (
	ErrTableNotFound  = errors.New("table not found")
	ErrEntryNotFound  = errors.New("waiting entry not found")
	ErrOverCapacity   = errors.New("party exceeds table capacity")
	ErrInvalidGuests  = errors.New("guest count must be positive")
	ErrTableBusy      = errors.New("table is not available")
	ErrNotReserved    = errors.New("table has no reservation")
	ErrNameRequired   = errors.New("name is required")
	ErrReservationAge = errors.New("reservation time has already passed the no-show window")
)

// Publisher is the part of the broadcast hub the tracker needs.
type Publisher interface {
	Publish(topic broadcast.Topic, payload any) (broadcast.Event, error)
}

// Reminder is the payload of table-reminder.
type Reminder struct {
	TableID   string    `json:"table_id"`
	TableName string    `json:"table_name"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	At        time.Time `json:"at"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	tables  []*model.Table
	waiting []model.WaitingEntry
	noShows []model.NoShow
	timers  map[string][]*clock.Timer

	kv    store.Store
	pub   Publisher
	clock clock.Clock
	log   *slog.Logger
}

// New builds a tracker over a static table list.
func New(layout []model.Table, kv store.Store, pub Publisher, clk clock.Clock, log *slog.Logger) *Tracker {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	t := &Tracker{timers: map[string][]*clock.Timer{}, kv: kv, pub: pub, clock: clk, log: log}
	for _, tb := range layout {
		tb := tb
		tb.Reset()
		t.tables = append(t.tables, &tb)
	}
	return t
}

// Load overlays persisted state on the static layout, settles anything
// that came due while the service was down, and re-arms timers.
func (t *Tracker) Load(ctx context.Context) {
	var saved []model.Table
	if err := store.GetJSON(ctx, t.kv, store.KeyTableStatus, &saved); err != nil && !errors.Is(err, store.ErrNotFound) {
		t.log.Warn("cached table state unreadable, starting with all tables free", slog.String("action", "tables_load"), logger.Err(err))
		saved = nil
	}
	if err := store.GetJSON(ctx, t.kv, store.KeyWaitingList, &t.waiting); err != nil && !errors.Is(err, store.ErrNotFound) {
		t.log.Warn("cached waiting list unreadable", slog.String("action", "tables_load"), logger.Err(err))
		t.waiting = nil
	}
	if err := store.GetJSON(ctx, t.kv, store.KeyNoShows, &t.noShows); err != nil && !errors.Is(err, store.ErrNotFound) {
		t.log.Warn("cached no-show list unreadable", slog.String("action", "tables_load"), logger.Err(err))
		t.noShows = nil
	}

	t.mu.Lock()
	for _, s := range saved {
		if tb := t.findLocked(s.ID); tb != nil {
			s.Name, s.Capacity = tb.Name, tb.Capacity
			*tb = s
		}
	}
	t.mu.Unlock()

	t.Sweep(ctx)
	t.mu.Lock()
	for _, tb := range t.tables {
		t.armLocked(tb)
	}
	t.mu.Unlock()
	t.announce()
}

// List returns every table in layout order.
func (t *Tracker) List() []model.Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Table, len(t.tables))
	for i, tb := range t.tables {
		out[i] = copyTable(tb)
	}
	return out
}

// Available returns the tables a new party can be seated at.
func (t *Tracker) Available() []model.Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.availableLocked()
}

// Get returns one table.
func (t *Tracker) Get(id string) (model.Table, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tb := t.findLocked(id)
	if tb == nil {
		return model.Table{}, ErrTableNotFound
	}
	return copyTable(tb), nil
}

// Occupy seats a party. A reserved table may be occupied directly, which
// counts as check-in. duration <= 0 uses DefaultOccupancy.
func (t *Tracker) Occupy(ctx context.Context, id string, guests int, duration time.Duration) (model.Table, error) {
	if guests <= 0 {
		return model.Table{}, ErrInvalidGuests
	}
	if duration <= 0 {
		duration = DefaultOccupancy
	}
	t.mu.Lock()
	tb := t.findLocked(id)
	if tb == nil {
		t.mu.Unlock()
		return model.Table{}, ErrTableNotFound
	}
	if guests > tb.Capacity {
		t.mu.Unlock()
		return model.Table{}, fmt.Errorf("%w: %d guests at %s (seats %d)", ErrOverCapacity, guests, tb.Name, tb.Capacity)
	}
	if tb.Status == model.TableOccupied {
		t.mu.Unlock()
		return model.Table{}, fmt.Errorf("%w: %s is occupied", ErrTableBusy, tb.Name)
	}
	t.seatLocked(tb, guests, duration)
	out := copyTable(tb)
	t.mu.Unlock()

	t.changed(ctx)
	return out, nil
}

// Reserve books an available table for a named party at a given time.
func (t *Tracker) Reserve(ctx context.Context, id, name, phone string, guests int, at time.Time) (model.Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Table{}, ErrNameRequired
	}
	if guests <= 0 {
		return model.Table{}, ErrInvalidGuests
	}
	if !at.Add(NoShowGrace).After(t.clock.Now()) {
		return model.Table{}, ErrReservationAge
	}
	t.mu.Lock()
	tb := t.findLocked(id)
	if tb == nil {
		t.mu.Unlock()
		return model.Table{}, ErrTableNotFound
	}
	if guests > tb.Capacity {
		t.mu.Unlock()
		return model.Table{}, fmt.Errorf("%w: %d guests at %s (seats %d)", ErrOverCapacity, guests, tb.Name, tb.Capacity)
	}
	if tb.Status != model.TableAvailable {
		t.mu.Unlock()
		return model.Table{}, fmt.Errorf("%w: %s is %s", ErrTableBusy, tb.Name, tb.Status)
	}
	t.cancelTimersLocked(tb.ID)
	tb.Reset()
	tb.Status = model.TableReserved
	tb.Reservation = &model.Reservation{Name: name, Phone: strings.TrimSpace(phone), Guests: guests, At: at.UTC()}
	t.armLocked(tb)
	out := copyTable(tb)
	t.mu.Unlock()

	t.changed(ctx)
	return out, nil
}

// CheckIn seats the party holding a reservation and cancels its timers.
func (t *Tracker) CheckIn(ctx context.Context, id string) (model.Table, error) {
	t.mu.Lock()
	tb := t.findLocked(id)
	if tb == nil {
		t.mu.Unlock()
		return model.Table{}, ErrTableNotFound
	}
	if tb.Status != model.TableReserved || tb.Reservation == nil {
		t.mu.Unlock()
		return model.Table{}, ErrNotReserved
	}
	t.seatLocked(tb, tb.Reservation.Guests, DefaultOccupancy)
	out := copyTable(tb)
	t.mu.Unlock()

	t.changed(ctx)
	return out, nil
}

// CancelReservation frees a reserved table without recording a no-show.
func (t *Tracker) CancelReservation(ctx context.Context, id string) (model.Table, error) {
	t.mu.Lock()
	tb := t.findLocked(id)
	if tb == nil {
		t.mu.Unlock()
		return model.Table{}, ErrTableNotFound
	}
	if tb.Status != model.TableReserved {
		t.mu.Unlock()
		return model.Table{}, ErrNotReserved
	}
	t.cancelTimersLocked(tb.ID)
	tb.Reset()
	out := copyTable(tb)
	t.mu.Unlock()

	t.changed(ctx)
	return out, nil
}

// Clear returns a table to available, dropping every occupancy and
// reservation field together.
func (t *Tracker) Clear(ctx context.Context, id string) (model.Table, error) {
	t.mu.Lock()
	tb := t.findLocked(id)
	if tb == nil {
		t.mu.Unlock()
		return model.Table{}, ErrTableNotFound
	}
	t.cancelTimersLocked(tb.ID)
	tb.Reset()
	out := copyTable(tb)
	t.mu.Unlock()

	t.changed(ctx)
	return out, nil
}

// HoldForWaiting marks an available table as held for the waiting list.
func (t *Tracker) HoldForWaiting(ctx context.Context, id string) (model.Table, error) {
	t.mu.Lock()
	tb := t.findLocked(id)
	if tb == nil {
		t.mu.Unlock()
		return model.Table{}, ErrTableNotFound
	}
	if tb.Status != model.TableAvailable {
		t.mu.Unlock()
		return model.Table{}, fmt.Errorf("%w: %s is %s", ErrTableBusy, tb.Name, tb.Status)
	}
	tb.Status = model.TableWaiting
	out := copyTable(tb)
	t.mu.Unlock()

	t.changed(ctx)
	return out, nil
}

// Waiting returns the waiting list, first come first.
func (t *Tracker) Waiting() []model.WaitingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.WaitingEntry(nil), t.waiting...)
}

// AddWaiting appends a party to the waiting list.
func (t *Tracker) AddWaiting(ctx context.Context, name, phone string, guests int) (model.WaitingEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.WaitingEntry{}, ErrNameRequired
	}
	if guests <= 0 {
		return model.WaitingEntry{}, ErrInvalidGuests
	}
	e := model.WaitingEntry{
		ID:      uuid.NewString(),
		Name:    name,
		Phone:   strings.TrimSpace(phone),
		Guests:  guests,
		AddedAt: t.clock.Now().UTC(),
	}
	t.mu.Lock()
	t.waiting = append(t.waiting, e)
	t.mu.Unlock()
	t.changed(ctx)
	return e, nil
}

// RemoveWaiting drops a party from the waiting list.
func (t *Tracker) RemoveWaiting(ctx context.Context, entryID string) error {
	t.mu.Lock()
	idx := t.waitingIndexLocked(entryID)
	if idx < 0 {
		t.mu.Unlock()
		return ErrEntryNotFound
	}
	t.waiting = append(t.waiting[:idx], t.waiting[idx+1:]...)
	t.mu.Unlock()
	t.changed(ctx)
	return nil
}

// SeatWaiting moves a waiting party onto a table.
func (t *Tracker) SeatWaiting(ctx context.Context, entryID, tableID string) (model.Table, error) {
	t.mu.Lock()
	idx := t.waitingIndexLocked(entryID)
	if idx < 0 {
		t.mu.Unlock()
		return model.Table{}, ErrEntryNotFound
	}
	e := t.waiting[idx]
	tb := t.findLocked(tableID)
	if tb == nil {
		t.mu.Unlock()
		return model.Table{}, ErrTableNotFound
	}
	if e.Guests > tb.Capacity {
		t.mu.Unlock()
		return model.Table{}, fmt.Errorf("%w: %d guests at %s (seats %d)", ErrOverCapacity, e.Guests, tb.Name, tb.Capacity)
	}
	if tb.Status != model.TableAvailable && tb.Status != model.TableWaiting {
		t.mu.Unlock()
		return model.Table{}, fmt.Errorf("%w: %s is %s", ErrTableBusy, tb.Name, tb.Status)
	}
	t.seatLocked(tb, e.Guests, DefaultOccupancy)
	t.waiting = append(t.waiting[:idx], t.waiting[idx+1:]...)
	out := copyTable(tb)
	t.mu.Unlock()

	t.changed(ctx)
	return out, nil
}

// NoShows returns the recorded no-shows, oldest first.
func (t *Tracker) NoShows() []model.NoShow {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.NoShow(nil), t.noShows...)
}

// Sweep re-checks every time rule against the clock. Timers normally do
// this work; Sweep catches up after a restart and runs once a minute as
// a safety net.
func (t *Tracker) Sweep(ctx context.Context) {
	now := t.clock.Now()
	var reminders []Reminder
	dirty := false

	t.mu.Lock()
	for _, tb := range t.tables {
		if r := tb.Reservation; tb.Status == model.TableReserved && r != nil {
			if !now.Before(r.At.Add(NoShowGrace)) {
				t.evictLocked(tb, now)
				dirty = true
				continue
			}
			if !r.Reminded && !now.Before(r.At.Add(-ReminderLead)) {
				r.Reminded = true
				reminders = append(reminders, reminderFor(tb))
				dirty = true
			}
		}
		if tb.Status == model.TableOccupied && tb.EndsAt != nil && !tb.Overdue && !now.Before(*tb.EndsAt) {
			tb.Overdue = true
			dirty = true
		}
	}
	t.mu.Unlock()

	for _, r := range reminders {
		t.remind(r)
	}
	if dirty {
		t.changed(ctx)
	}
}

// Run sweeps on every tick until ctx ends.
func (t *Tracker) Run(ctx context.Context, every time.Duration) {
	tk := t.clock.NewTicker(every)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			t.Sweep(ctx)
		}
	}
}

// Stop cancels every pending timer.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.timers {
		t.cancelTimersLocked(id)
	}
}

// Announce republishes the available table list.
func (t *Tracker) Announce() { t.announce() }

func (t *Tracker) seatLocked(tb *model.Table, guests int, duration time.Duration) {
	t.cancelTimersLocked(tb.ID)
	now := t.clock.Now().UTC()
	end := now.Add(duration)
	tb.Reset()
	tb.Status = model.TableOccupied
	tb.Guests = guests
	tb.OccupiedAt = &now
	tb.EndsAt = &end
	t.armLocked(tb)
}

// evictLocked releases a reservation nobody showed up for.
func (t *Tracker) evictLocked(tb *model.Table, now time.Time) {
	r := tb.Reservation
	t.noShows = append(t.noShows, model.NoShow{
		TableID:     tb.ID,
		TableName:   tb.Name,
		Name:        r.Name,
		Phone:       r.Phone,
		ReservedFor: r.At,
		RecordedAt:  now.UTC(),
	})
	t.cancelTimersLocked(tb.ID)
	tb.Reset()
	metrics.TableNoShows.Inc()
	t.log.Info("reservation released as no-show",
		slog.String("action", "table_no_show"),
		slog.String("table", tb.Name),
		slog.String("name", r.Name))
}

func (t *Tracker) findLocked(id string) *model.Table {
	for _, tb := range t.tables {
		if tb.ID == id {
			return tb
		}
	}
	return nil
}

func (t *Tracker) waitingIndexLocked(id string) int {
	for i, e := range t.waiting {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (t *Tracker) availableLocked() []model.Table {
	var out []model.Table
	for _, tb := range t.tables {
		if tb.Status == model.TableAvailable {
			out = append(out, copyTable(tb))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Capacity < out[j].Capacity })
	return out
}

// changed persists state and announces the free tables.
func (t *Tracker) changed(ctx context.Context) {
	t.mu.Lock()
	tables := make([]model.Table, len(t.tables))
	for i, tb := range t.tables {
		tables[i] = copyTable(tb)
	}
	waiting := append([]model.WaitingEntry(nil), t.waiting...)
	noShows := append([]model.NoShow(nil), t.noShows...)
	t.mu.Unlock()

	for key, v := range map[string]any{
		store.KeyTableStatus: tables,
		store.KeyWaitingList: waiting,
		store.KeyNoShows:     noShows,
	} {
		if err := store.SetJSON(ctx, t.kv, key, v); err != nil {
			t.log.Error("persist table state failed", slog.String("action", "tables_persist"),
				slog.String("key", key), logger.Err(err))
		}
	}
	t.announce()
}

func (t *Tracker) announce() {
	if t.pub == nil {
		return
	}
	if _, err := t.pub.Publish(broadcast.AvailableTables, t.Available()); err != nil {
		t.log.Error("announce tables failed", slog.String("action", "tables_broadcast"), logger.Err(err))
	}
}

func (t *Tracker) remind(r Reminder) {
	t.log.Info("reservation due soon",
		slog.String("action", "table_reminder"),
		slog.String("table", r.TableName),
		slog.String("name", r.Name))
	if t.pub == nil {
		return
	}
	if _, err := t.pub.Publish(broadcast.TableReminder, r); err != nil {
		t.log.Error("announce reminder failed", slog.String("action", "tables_broadcast"), logger.Err(err))
	}
}

func reminderFor(tb *model.Table) Reminder {
	return Reminder{
		TableID:   tb.ID,
		TableName: tb.Name,
		Name:      tb.Reservation.Name,
		Phone:     tb.Reservation.Phone,
		At:        tb.Reservation.At,
	}
}

func copyTable(tb *model.Table) model.Table {
	c := *tb
	if tb.Reservation != nil {
		r := *tb.Reservation
		c.Reservation = &r
	}
	if tb.OccupiedAt != nil {
		v := *tb.OccupiedAt
		c.OccupiedAt = &v
	}
	if tb.EndsAt != nil {
		v := *tb.EndsAt
		c.EndsAt = &v
	}
	return c
}
