package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/pos-dashboard/internal/clock"
	"github.com/iliyamo/pos-dashboard/internal/logger"
	"github.com/iliyamo/pos-dashboard/internal/store"
)

// Sequencer hands out order numbers of the form ORD_YYYYMMDD_NNN. The
// counter restarts every local day and lives in the shared store so
// several terminals do not collide; when the store is unreachable an
// in-process counter keeps checkout working.
type Sequencer struct {
	kv    store.Store
	clock clock.Clock
	loc   *time.Location
	log   *slog.Logger

	mu       sync.Mutex
	fallback map[string]int64
}

// NewSequencer counts days in loc (UTC when nil).
func NewSequencer(kv store.Store, clk clock.Clock, loc *time.Location, log *slog.Logger) *Sequencer {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sequencer{kv: kv, clock: clk, loc: loc, log: log, fallback: map[string]int64{}}
}

// Next returns the next order number for today.
func (s *Sequencer) Next(ctx context.Context) string {
	day := s.clock.Now().In(s.loc).Format("20060102")
	n, err := s.kv.Incr(ctx, "order_seq:"+day, 48*time.Hour)
	if err != nil {
		s.log.Error("order counter unavailable, numbering locally",
			slog.String("action", "order_sequence"), logger.Err(err))
		s.mu.Lock()
		s.fallback[day]++
		n = s.fallback[day]
		s.mu.Unlock()
	}
	return fmt.Sprintf("ORD_%s_%03d", day, n)
}
