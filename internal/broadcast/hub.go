package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/pos-dashboard/internal/clock"
)

const (
	defaultSubscriberCapacity = 128
	defaultDedupeWindow       = 1024
)

// Option customizes a Hub.
type Option func(*Hub)

// WithLogger sets the logger used for drop diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithClock overrides the clock used to stamp events.
func WithClock(c clock.Clock) Option {
	return func(h *Hub) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithSubscriberCapacity sets the buffered channel size per subscriber.
func WithSubscriberCapacity(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// WithDropHook registers a callback invoked for every event dropped
// because a subscriber's buffer was full.
func WithDropHook(fn func(Topic)) Option {
	return func(h *Hub) { h.onDrop = fn }
}

// Hub fans events out to subscribers. Delivery into each subscriber's
// buffer happens inside Publish, in subscription order. A full buffer
// drops its oldest event.
type Hub struct {
	mu        sync.RWMutex
	subs      []*subscriber
	retained  map[Topic]Event
	recentIDs map[string]struct{}
	recent    []string
	capacity  int
	window    int
	clock     clock.Clock
	log       *slog.Logger
	onDrop    func(Topic)
}

// NewHub builds a hub with default buffering and deduplication.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		retained:  map[Topic]Event{},
		recentIDs: map[string]struct{}{},
		capacity:  defaultSubscriberCapacity,
		window:    defaultDedupeWindow,
		clock:     clock.Real(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Subscription is a live registration on one or more topics.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close unregisters the subscription and closes Events.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Subscribe registers for the given topics. Retained snapshots of those
// topics are queued first, so the subscriber starts from current state.
func (h *Hub) Subscribe(topics ...Topic) Subscription {
	sub := newSubscriber(h.capacity, topics)
	h.mu.Lock()
	h.subs = append(h.subs, sub)
	for _, t := range topics {
		if ev, ok := h.retained[t]; ok {
			h.deliver(sub, ev)
		}
	}
	h.mu.Unlock()
	return Subscription{
		Events: sub.ch,
		cancel: func() { h.remove(sub) },
	}
}

// Publish wraps payload in a new event on topic and routes it.
func (h *Hub) Publish(topic Topic, payload any) (Event, error) {
	ev := Event{
		ID:      uuid.NewString(),
		Topic:   topic,
		Version: SchemaVersion,
		At:      h.clock.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("broadcast %s: %w", topic, err)
		}
		ev.Payload = raw
	}
	h.Route(ev)
	return ev, nil
}

// Route delivers a fully formed event. Events whose ID was seen recently
// are ignored. A request topic also re-sends the snapshot it asks for.
func (h *Hub) Route(ev Event) {
	if ev.ID != "" && h.seen(ev.ID) {
		return
	}
	if ev.Version == 0 {
		ev.Version = SchemaVersion
	}
	h.mu.Lock()
	if snapshotTopics[ev.Topic] {
		h.retained[ev.Topic] = ev
	}
	subs := h.listeners(ev.Topic)
	var resend []*subscriber
	snap, hasSnap := Event{}, false
	if target, ok := requestTopics[ev.Topic]; ok {
		snap, hasSnap = h.retained[target]
		if hasSnap {
			resend = h.listeners(target)
		}
	}
	h.mu.Unlock()

	for _, s := range subs {
		h.deliver(s, ev)
	}
	for _, s := range resend {
		h.deliver(s, snap)
	}
}

// Snapshot returns the retained event of a snapshot topic.
func (h *Hub) Snapshot(topic Topic) (Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ev, ok := h.retained[topic]
	return ev, ok
}

// listeners must be called with h.mu held.
func (h *Hub) listeners(topic Topic) []*subscriber {
	var out []*subscriber
	for _, s := range h.subs {
		if s.topics[topic] {
			out = append(out, s)
		}
	}
	return out
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	for i, s := range h.subs {
		if s == sub {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	sub.close()
}

func (h *Hub) seen(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.recentIDs[id]; ok {
		return true
	}
	h.recentIDs[id] = struct{}{}
	h.recent = append(h.recent, id)
	if len(h.recent) > h.window {
		delete(h.recentIDs, h.recent[0])
		h.recent = h.recent[1:]
	}
	return false
}

func (h *Hub) deliver(s *subscriber, ev Event) {
	if dropped, ok := s.push(ev); ok {
		h.log.Warn("broadcast buffer full, dropped oldest event",
			slog.String("action", "broadcast_drop"),
			slog.String("topic", string(dropped.Topic)),
			slog.String("event_id", dropped.ID))
		if h.onDrop != nil {
			h.onDrop(dropped.Topic)
		}
	}
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	topics map[Topic]bool
	closed bool
}

func newSubscriber(capacity int, topics []Topic) *subscriber {
	set := make(map[Topic]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	return &subscriber{ch: make(chan Event, capacity), topics: set}
}

// push queues ev. When the buffer is full the oldest queued event is
// discarded and returned with ok set.
func (s *subscriber) push(ev Event) (dropped Event, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Event{}, false
	}
	for {
		select {
		case s.ch <- ev:
			return dropped, ok
		default:
		}
		select {
		case dropped = <-s.ch:
			ok = true
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
