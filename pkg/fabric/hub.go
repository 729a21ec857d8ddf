// Package fabric is the in-process subscription fabric: per-user channels
// feeding Gotify-style clients and per-topic channels feeding topic
// streams. Publishers never block; slow subscribers lose their oldest
// buffered frames and carry a lag count.
package fabric

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pushbolt/pushbolt/pkg/metrics"
	"github.com/pushbolt/pushbolt/pkg/models"
)

// ChannelCapacity is the per-subscriber buffer size. When a subscriber
// falls this far behind, delivery drops its oldest pending frame.
const ChannelCapacity = 256

// sweepInterval is how often channels with no subscribers are removed.
const sweepInterval = 60 * time.Second

// Subscription is one attached consumer. Frames arrive on C; Close must be
// called exactly once when the consumer goes away.
type Subscription struct {
	ch     chan *models.MessageView
	lagged atomic.Int64
	parent *channel
	once   sync.Once
}

// C is the frame stream. It is closed when the subscription is closed.
func (s *Subscription) C() <-chan *models.MessageView { return s.ch }

// Lagged returns how many frames were dropped because this subscriber's
// buffer was full.
func (s *Subscription) Lagged() int64 { return s.lagged.Load() }

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.parent.remove(s)
		metrics.ActiveSubscribers.Dec()
	})
}

type channel struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newChannel() *channel {
	return &channel{subs: make(map[*Subscription]struct{})}
}

func (c *channel) add(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[s] = struct{}{}
}

func (c *channel) remove(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[s]; ok {
		delete(c.subs, s)
		close(s.ch)
	}
}

func (c *channel) empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs) == 0
}

// send delivers to every subscriber without ever blocking the caller. A
// full buffer sheds its oldest frame first; if the buffer is still full
// the new frame is counted as lagged and dropped.
func (c *channel) send(v *models.MessageView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.subs {
		select {
		case s.ch <- v:
			continue
		default:
		}
		select {
		case <-s.ch:
			s.lagged.Add(1)
			metrics.LaggedFrames.Inc()
		default:
		}
		select {
		case s.ch <- v:
		default:
			s.lagged.Add(1)
			metrics.LaggedFrames.Inc()
		}
	}
}

// Hub owns the user and topic channel maps.
type Hub struct {
	mu     sync.RWMutex
	users  map[int64]*channel
	topics map[string]*channel
	logger *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		users:  make(map[int64]*channel),
		topics: make(map[string]*channel),
		logger: slog.With("component", "fabric"),
	}
}

// SubscribeUser attaches a subscriber to the user's channel. The common
// case rides the read lock; the write lock is taken only to create the
// channel on first use, re-checking the map after the upgrade.
func (h *Hub) SubscribeUser(userID int64) *Subscription {
	h.mu.RLock()
	ch := h.users[userID]
	h.mu.RUnlock()
	if ch == nil {
		h.mu.Lock()
		ch = h.users[userID]
		if ch == nil {
			ch = newChannel()
			h.users[userID] = ch
		}
		h.mu.Unlock()
	}
	return attach(ch)
}

// SubscribeTopic attaches a subscriber to the named topic's channel, with
// the same two-phase lookup as SubscribeUser.
func (h *Hub) SubscribeTopic(name string) *Subscription {
	h.mu.RLock()
	ch := h.topics[name]
	h.mu.RUnlock()
	if ch == nil {
		h.mu.Lock()
		ch = h.topics[name]
		if ch == nil {
			ch = newChannel()
			h.topics[name] = ch
		}
		h.mu.Unlock()
	}
	return attach(ch)
}

func attach(ch *channel) *Subscription {
	s := &Subscription{
		ch:     make(chan *models.MessageView, ChannelCapacity),
		parent: ch,
	}
	ch.add(s)
	metrics.ActiveSubscribers.Inc()
	return s
}

// BroadcastToUser fans a frame out to the user's subscribers. A missing
// channel means nobody is listening, which is not an error.
func (h *Hub) BroadcastToUser(userID int64, v *models.MessageView) {
	h.mu.RLock()
	ch := h.users[userID]
	h.mu.RUnlock()
	if ch != nil {
		ch.send(v)
	}
}

// BroadcastToTopic fans a frame out to the topic's subscribers.
func (h *Hub) BroadcastToTopic(name string, v *models.MessageView) {
	h.mu.RLock()
	ch := h.topics[name]
	h.mu.RUnlock()
	if ch != nil {
		ch.send(v)
	}
}

// Sweep removes channels that have no subscribers and returns how many
// were removed.
func (h *Hub) Sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for id, ch := range h.users {
		if ch.empty() {
			delete(h.users, id)
			removed++
		}
	}
	for name, ch := range h.topics {
		if ch.empty() {
			delete(h.topics, name)
			removed++
		}
	}
	return removed
}

// Run sweeps idle channels every minute until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.Sweep(); n > 0 {
				h.logger.Debug("swept idle channels", "removed", n)
			}
		}
	}
}
