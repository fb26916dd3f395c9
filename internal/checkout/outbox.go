package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/pos-dashboard/internal/clock"
	"github.com/iliyamo/pos-dashboard/internal/logger"
	"github.com/iliyamo/pos-dashboard/internal/metrics"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

// Entry is one pending database write.
type Entry struct {
	ID          string            `json:"id"`
	Transaction model.Transaction `json:"transaction"`
	Attempts    int               `json:"attempts"`
	NextAt      time.Time         `json:"next_at"`
	LastError   string            `json:"last_error,omitempty"`
	EnqueuedAt  time.Time         `json:"enqueued_at"`
}

// Queue is the durable list behind the outbox.
type Queue interface {
	Push(ctx context.Context, e Entry) error
	// Pop removes the oldest entry. ok is false when the queue is empty.
	Pop(ctx context.Context) (e Entry, ok bool, err error)
	Len(ctx context.Context) (int64, error)
	// List returns the pending entries, oldest first, without removing them.
	List(ctx context.Context) ([]Entry, error)
	PushDead(ctx context.Context, e Entry) error
	Dead(ctx context.Context) ([]Entry, error)
}

// Sink writes a transaction to the system of record. Writes must be
// idempotent on Transaction.ID since an entry may be retried after a
// write whose acknowledgement was lost.
type Sink interface {
	SaveTransaction(ctx context.Context, tx model.Transaction) error
}

// Backoff bounds.
const (
	backoffBase = time.Second
	backoffMax  = 5 * time.Minute
)

func backoff(attempts int) time.Duration {
	d := backoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= backoffMax {
			return backoffMax
		}
	}
	return d
}

// OutboxStatus is what GET /v1/outbox reports.
type OutboxStatus struct {
	Pending int64   `json:"pending"`
	Dead    []Entry `json:"dead"`
}

// Outbox retries transaction writes until they succeed or run out of
// attempts.
type Outbox struct {
	q           Queue
	sink        Sink
	maxAttempts int
	clock       clock.Clock
	log         *slog.Logger

	mu       sync.Mutex
	reversed map[string]bool
}

// NewOutbox wires a queue to its sink.
func NewOutbox(q Queue, sink Sink, maxAttempts int, clk clock.Clock, log *slog.Logger) *Outbox {
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Outbox{q: q, sink: sink, maxAttempts: maxAttempts, clock: clk, log: log, reversed: map[string]bool{}}
}

// Enqueue schedules tx for an immediate first attempt.
func (o *Outbox) Enqueue(ctx context.Context, tx model.Transaction) error {
	now := o.clock.Now().UTC()
	e := Entry{ID: uuid.NewString(), Transaction: tx, NextAt: now, EnqueuedAt: now}
	if err := o.q.Push(ctx, e); err != nil {
		return fmt.Errorf("outbox enqueue %s: %w", tx.ID, err)
	}
	o.gauge(ctx)
	return nil
}

// Drain makes one pass over the queue, attempting every entry that is
// due. Entries not yet due go back to the tail untouched.
func (o *Outbox) Drain(ctx context.Context) error {
	n, err := o.q.Len(ctx)
	if err != nil {
		return err
	}
	defer o.gauge(ctx)
	for i := int64(0); i < n; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e, ok, err := o.q.Pop(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		now := o.clock.Now()
		if e.NextAt.After(now) {
			if err := o.q.Push(ctx, e); err != nil {
				return err
			}
			continue
		}
		o.attempt(ctx, e, now)
	}
	return nil
}

func (o *Outbox) attempt(ctx context.Context, e Entry, now time.Time) {
	if o.superseded(e.Transaction) {
		o.log.Info("stale transaction write dropped", slog.String("action", "outbox_superseded"),
			slog.String("transaction_id", e.Transaction.ID), slog.String("status", string(e.Transaction.Status)))
		return
	}
	err := o.sink.SaveTransaction(ctx, e.Transaction)
	if err == nil {
		if e.Transaction.Status.Reversed() {
			o.mu.Lock()
			o.reversed[e.Transaction.ID] = true
			o.mu.Unlock()
		}
		o.log.Debug("transaction persisted", slog.String("action", "outbox_flush"),
			slog.String("transaction_id", e.Transaction.ID), slog.Int("attempts", e.Attempts+1))
		return
	}
	e.Attempts++
	e.LastError = err.Error()
	metrics.OutboxFailures.Inc()

	if e.Attempts >= o.maxAttempts {
		metrics.OutboxDeadLetters.Inc()
		o.log.Error("transaction write abandoned after retries",
			slog.String("action", "outbox_dead_letter"),
			slog.String("transaction_id", e.Transaction.ID),
			slog.Int("attempts", e.Attempts), logger.Err(err))
		if perr := o.q.PushDead(ctx, e); perr != nil {
			o.log.Error("dead letter write failed", slog.String("action", "outbox_dead_letter"),
				slog.String("transaction_id", e.Transaction.ID), logger.Err(perr))
		}
		return
	}
	e.NextAt = now.Add(backoff(e.Attempts)).UTC()
	o.log.Warn("transaction write failed, will retry",
		slog.String("action", "outbox_retry"),
		slog.String("transaction_id", e.Transaction.ID),
		slog.Int("attempts", e.Attempts),
		slog.Time("next_at", e.NextAt), logger.Err(err))
	if perr := o.q.Push(ctx, e); perr != nil {
		o.log.Error("requeue failed", slog.String("action", "outbox_retry"),
			slog.String("transaction_id", e.Transaction.ID), logger.Err(perr))
	}
}

// superseded reports whether a void or refund of tx has already been
// written, making this earlier version obsolete.
func (o *Outbox) superseded(tx model.Transaction) bool {
	if tx.Status.Reversed() {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reversed[tx.ID]
}

// Run drains the queue on every tick until ctx ends.
func (o *Outbox) Run(ctx context.Context, every time.Duration) {
	tk := o.clock.NewTicker(every)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if err := o.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.log.Error("outbox drain failed", slog.String("action", "outbox_drain"), logger.Err(err))
			}
		}
	}
}

// Status reports the backlog and the abandoned entries.
func (o *Outbox) Status(ctx context.Context) (OutboxStatus, error) {
	n, err := o.q.Len(ctx)
	if err != nil {
		return OutboxStatus{}, err
	}
	dead, err := o.q.Dead(ctx)
	if err != nil {
		return OutboxStatus{}, err
	}
	return OutboxStatus{Pending: n, Dead: dead}, nil
}

// Pending returns the transactions still waiting to be written, one per
// transaction id. A void or refund wins over an earlier completed copy.
func (o *Outbox) Pending(ctx context.Context) ([]model.Transaction, error) {
	entries, err := o.q.List(ctx)
	if err != nil {
		return nil, err
	}
	txs := make([]model.Transaction, 0, len(entries))
	for _, e := range entries {
		txs = append(txs, e.Transaction)
	}
	return MergeHistory(nil, txs), nil
}

// MergeHistory overlays queued transactions on the stored ones, keyed by
// id, keeping the stored order and appending ids seen only in queued.
// A reversed status is never replaced by an earlier one.
func MergeHistory(stored, queued []model.Transaction) []model.Transaction {
	out := append([]model.Transaction(nil), stored...)
	at := make(map[string]int, len(out))
	for i, tx := range out {
		at[tx.ID] = i
	}
	for _, tx := range queued {
		i, ok := at[tx.ID]
		if !ok {
			at[tx.ID] = len(out)
			out = append(out, tx)
			continue
		}
		if out[i].Status.Reversed() && !tx.Status.Reversed() {
			continue
		}
		out[i] = tx
	}
	return out
}

func (o *Outbox) gauge(ctx context.Context) {
	if n, err := o.q.Len(ctx); err == nil {
		metrics.OutboxPending.Set(float64(n))
	}
}

// RedisQueue keeps the outbox in two redis lists so pending writes
// survive a restart.
type RedisQueue struct {
	rdb        *redis.Client
	pendingKey string
	deadKey    string
}

// NewRedisQueue uses <prefix>:outbox and <prefix>:outbox:dead.
func NewRedisQueue(rdb *redis.Client, prefix string) *RedisQueue {
	base := "outbox"
	if prefix != "" {
		base = prefix + ":outbox"
	}
	return &RedisQueue{rdb: rdb, pendingKey: base, deadKey: base + ":dead"}
}

func (r *RedisQueue) Push(ctx context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.rdb.RPush(ctx, r.pendingKey, b).Err()
}

func (r *RedisQueue) Pop(ctx context.Context) (Entry, bool, error) {
	b, err := r.rdb.LPop(ctx, r.pendingKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		// keep the raw value for inspection rather than losing it
		_ = r.rdb.RPush(ctx, r.deadKey, b).Err()
		return Entry{}, false, fmt.Errorf("outbox: decode entry: %w", err)
	}
	return e, true, nil
}

func (r *RedisQueue) Len(ctx context.Context) (int64, error) {
	return r.rdb.LLen(ctx, r.pendingKey).Result()
}

func (r *RedisQueue) List(ctx context.Context) ([]Entry, error) {
	return r.decodeAll(ctx, r.pendingKey)
}

func (r *RedisQueue) PushDead(ctx context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.rdb.RPush(ctx, r.deadKey, b).Err()
}

func (r *RedisQueue) Dead(ctx context.Context) ([]Entry, error) {
	return r.decodeAll(ctx, r.deadKey)
}

func (r *RedisQueue) decodeAll(ctx context.Context, key string) ([]Entry, error) {
	raw, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, s := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// MemoryQueue is the outbox used without redis and in tests.
type MemoryQueue struct {
	mu      sync.Mutex
	pending []Entry
	dead    []Entry
}

func NewMemoryQueue() *MemoryQueue { return &MemoryQueue{} }

func (m *MemoryQueue) Push(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, e)
	return nil
}

func (m *MemoryQueue) Pop(_ context.Context) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return Entry{}, false, nil
	}
	e := m.pending[0]
	m.pending = m.pending[1:]
	return e, true, nil
}

func (m *MemoryQueue) Len(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pending)), nil
}

func (m *MemoryQueue) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.pending...), nil
}

func (m *MemoryQueue) PushDead(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = append(m.dead, e)
	return nil
}

func (m *MemoryQueue) Dead(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.dead...), nil
}
