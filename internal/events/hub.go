// Package events fans bounty lifecycle events out to in-process subscribers.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeBountyCreated     = "bounty.created"
	TypeBountyDeleted     = "bounty.deleted"
	TypeBountyEnded       = "bounty.ended"
	TypeSubmissionCreated = "submission.created"
	TypeSubmissionUpdated = "submission.updated"
	TypeWinnersAnnounced  = "winners.announced"
)

// Event is a single lifecycle notification
type Event struct {
	Type     string      `json:"type"`
	BountyID string      `json:"bounty_id"`
	Data     interface{} `json:"data,omitempty"`
	At       time.Time   `json:"at"`
}

// Subscription receives events for one subscriber
type Subscription struct {
	id       string
	bountyID string
	ch       chan Event
	hub      *Hub
}

// C returns the channel events are delivered on. It is closed on Unsubscribe.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Unsubscribe detaches the subscription from the hub
func (s *Subscription) Unsubscribe() {
	s.hub.remove(s.id)
}

// Hub manages subscribers
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
}

// NewHub creates a new event hub. buffer is the per-subscriber queue length.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. An empty bountyID receives every event.
func (h *Hub) Subscribe(bountyID string) *Subscription {
	sub := &Subscription{
		id:       uuid.NewString(),
		bountyID: bountyID,
		ch:       make(chan Event, h.buffer),
		hub:      h,
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	return sub
}

// Publish delivers e to every matching subscriber. Slow subscribers whose
// queue is full miss the event rather than block the publisher.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.bountyID != "" && sub.bountyID != e.BountyID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			slog.Warn("dropping event for slow subscriber",
				"subscriber", sub.id,
				"type", e.Type,
				"bounty_id", e.BountyID,
			)
		}
	}
}

// Count returns the number of active subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close detaches all subscribers
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		close(sub.ch)
		delete(h.subs, id)
	}
}
