package tables

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/pos-dashboard/internal/model"
)

// minDelay keeps a timer that is already due from firing while the
// tracker lock is held; the callback runs on the next clock step instead.
const minDelay = time.Millisecond

// armLocked replaces the timers for tb with the ones its current state
// calls for.
func (t *Tracker) armLocked(tb *model.Table) {
	t.cancelTimersLocked(tb.ID)
	now := t.clock.Now()
	id := tb.ID

	switch tb.Status {
	case model.TableReserved:
		if tb.Reservation == nil {
			return
		}
		at := tb.Reservation.At
		if !tb.Reservation.Reminded {
			t.addTimerLocked(id, at.Add(-ReminderLead).Sub(now), func() { t.fireReminder(id, at) })
		}
		t.addTimerLocked(id, at.Add(NoShowGrace).Sub(now), func() { t.fireNoShow(id, at) })
	case model.TableOccupied:
		if tb.EndsAt == nil || tb.Overdue {
			return
		}
		end := *tb.EndsAt
		t.addTimerLocked(id, end.Sub(now), func() { t.fireOverdue(id, end) })
	}
}

func (t *Tracker) addTimerLocked(id string, d time.Duration, fn func()) {
	if d < minDelay {
		d = minDelay
	}
	t.timers[id] = append(t.timers[id], t.clock.AfterFunc(d, fn))
}

func (t *Tracker) cancelTimersLocked(id string) {
	for _, tm := range t.timers[id] {
		tm.Stop()
	}
	delete(t.timers, id)
}

// The fire* callbacks re-check state under the lock: a timer that lost
// a race with check-in or clear must do nothing.

func (t *Tracker) fireReminder(id string, at time.Time) {
	t.mu.Lock()
	tb := t.findLocked(id)
	if tb == nil || tb.Status != model.TableReserved || tb.Reservation == nil ||
		!tb.Reservation.At.Equal(at) || tb.Reservation.Reminded {
		t.mu.Unlock()
		return
	}
	tb.Reservation.Reminded = true
	r := reminderFor(tb)
	t.mu.Unlock()

	t.remind(r)
	t.changed(context.Background())
}

func (t *Tracker) fireNoShow(id string, at time.Time) {
	t.mu.Lock()
	tb := t.findLocked(id)
	if tb == nil || tb.Status != model.TableReserved || tb.Reservation == nil || !tb.Reservation.At.Equal(at) {
		t.mu.Unlock()
		return
	}
	t.evictLocked(tb, t.clock.Now())
	t.mu.Unlock()

	t.changed(context.Background())
}

func (t *Tracker) fireOverdue(id string, end time.Time) {
	t.mu.Lock()
	tb := t.findLocked(id)
	if tb == nil || tb.Status != model.TableOccupied || tb.EndsAt == nil || !tb.EndsAt.Equal(end) || tb.Overdue {
		t.mu.Unlock()
		return
	}
	tb.Overdue = true
	name := tb.Name
	t.mu.Unlock()

	t.log.Info("table past its seating window", slog.String("action", "table_overdue"), slog.String("table", name))
	t.changed(context.Background())
}
