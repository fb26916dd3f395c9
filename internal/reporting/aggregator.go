// Package reporting derives the sales dashboard from the transaction
// stream. Every arrival recomputes the summary from the full history, so
// the figures never drift from the transactions they came from.
package reporting

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/logger"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

// TopN bounds the best seller list.
const TopN = 10

type DaySales struct {
	Day    string          `json:"day"`
	Amount decimal.Decimal `json:"amount"`
	Orders int             `json:"orders"`
}

type SourceShare struct {
	Source model.OrderSource `json:"source"`
	Amount decimal.Decimal   `json:"amount"`
	Orders int               `json:"orders"`
}

type ItemStat struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Summary is the dashboard payload. Gross counts sales only; Net also
// subtracts voids and refunds.
type Summary struct {
	Gross    decimal.Decimal `json:"gross"`
	Net      decimal.Decimal `json:"net"`
	Orders   int             `json:"orders"`
	ByDay    []DaySales      `json:"by_day"`
	BySource []SourceShare   `json:"by_source"`
	TopItems []ItemStat      `json:"top_items"`
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu      sync.RWMutex
	history []model.Transaction
	seen    map[string]bool
	summary Summary

	loc *time.Location
	log *slog.Logger
}

// New groups days in loc (UTC when nil).
func New(loc *time.Location, log *slog.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	a := &Aggregator{seen: map[string]bool{}, loc: loc, log: log}
	a.summary = compute(nil, loc)
	return a
}

// Topics lists what Run expects its subscription to cover.
func Topics() []broadcast.Topic {
	return []broadcast.Topic{broadcast.NewAnalyticsTransaction, broadcast.ClearTransactions}
}

// Add records one transaction. A transaction id seen before is ignored.
func (a *Aggregator) Add(tx model.Transaction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seen[tx.ID] {
		return
	}
	a.seen[tx.ID] = true
	a.history = append(a.history, tx)
	a.summary = compute(a.history, a.loc)
}

// Seed loads persisted history ahead of anything already received.
func (a *Aggregator) Seed(txs []model.Transaction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var fresh []model.Transaction
	for _, tx := range txs {
		if !a.seen[tx.ID] {
			a.seen[tx.ID] = true
			fresh = append(fresh, tx)
		}
	}
	a.history = append(fresh, a.history...)
	a.summary = compute(a.history, a.loc)
}

// Clear forgets every transaction.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
	a.seen = map[string]bool{}
	a.summary = compute(nil, a.loc)
}

// Summary returns the latest computed figures.
func (a *Aggregator) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.summary
}

// Apply handles one hub event.
func (a *Aggregator) Apply(ev broadcast.Event) error {
	switch ev.Topic {
	case broadcast.NewAnalyticsTransaction:
		var tx model.Transaction
		if err := ev.Decode(&tx); err != nil {
			return err
		}
		a.Add(tx)
	case broadcast.ClearTransactions:
		a.Clear()
	}
	return nil
}

// Run consumes sub until ctx ends or the subscription closes.
func (a *Aggregator) Run(ctx context.Context, sub broadcast.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := a.Apply(ev); err != nil {
				a.log.Warn("analytics event ignored", slog.String("action", "reporting_receive"),
					slog.String("topic", string(ev.Topic)), logger.Err(err))
			}
		}
	}
}

func compute(history []model.Transaction, loc *time.Location) Summary {
	s := Summary{Gross: decimal.Zero, Net: decimal.Zero}
	days := map[string]*DaySales{}
	sources := map[model.OrderSource]*SourceShare{}
	items := map[string]*ItemStat{}

	for _, tx := range history {
		positive := tx.Amount.IsPositive()
		s.Net = s.Net.Add(tx.Amount)
		if positive {
			s.Gross = s.Gross.Add(tx.Amount)
			s.Orders++
		}

		day := tx.CreatedAt.In(loc).Format("2006-01-02")
		d, ok := days[day]
		if !ok {
			d = &DaySales{Day: day, Amount: decimal.Zero}
			days[day] = d
		}
		d.Amount = d.Amount.Add(tx.Amount)

		src, ok := sources[tx.Source]
		if !ok {
			src = &SourceShare{Source: tx.Source, Amount: decimal.Zero}
			sources[tx.Source] = src
		}
		src.Amount = src.Amount.Add(tx.Amount)
		if positive {
			d.Orders++
			src.Orders++
		}

		for _, l := range tx.Lines {
			it, ok := items[l.Name]
			if !ok {
				it = &ItemStat{Name: l.Name, Revenue: decimal.Zero}
				items[l.Name] = it
			}
			it.Quantity += l.Quantity
			it.Revenue = it.Revenue.Add(l.Total)
		}
	}

	s.ByDay = make([]DaySales, 0, len(days))
	for _, d := range days {
		s.ByDay = append(s.ByDay, *d)
	}
	sort.Slice(s.ByDay, func(i, j int) bool { return s.ByDay[i].Day < s.ByDay[j].Day })

	s.BySource = make([]SourceShare, 0, len(sources))
	for _, src := range sources {
		s.BySource = append(s.BySource, *src)
	}
	sort.Slice(s.BySource, func(i, j int) bool { return s.BySource[i].Source < s.BySource[j].Source })

	s.TopItems = make([]ItemStat, 0, len(items))
	for _, it := range items {
		if it.Quantity > 0 {
			s.TopItems = append(s.TopItems, *it)
		}
	}
	sort.Slice(s.TopItems, func(i, j int) bool {
		a, b := s.TopItems[i], s.TopItems[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if c := a.Revenue.Cmp(b.Revenue); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})
	if len(s.TopItems) > TopN {
		s.TopItems = s.TopItems[:TopN]
	}
	return s
}
