// Package events carries chat lifecycle notifications from the services to
// subscribed clients.
package events

import (
	"context"
	"sync"
	"time"
)

type Type string

const (
	SessionCreated         Type = "session.created"
	SessionMessageAppended Type = "session.message_appended"
	SessionRenamed         Type = "session.renamed"
	SessionDeleted         Type = "session.deleted"
)

type ChatEvent struct {
	Type     Type      `json:"type"`
	ChatID   string    `json:"chatId"`
	OwnerID  string    `json:"userId"`
	Title    string    `json:"title,omitempty"`
	ChatType string    `json:"chatType,omitempty"`
	Role     string    `json:"role,omitempty"`
	At       time.Time `json:"at"`
}

const subscriberBuffer = 16

// Hub fans events out to in-process subscribers keyed by owner. Slow
// subscribers miss events rather than block publishers.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]chan ChatEvent
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]chan ChatEvent)}
}

// Subscribe returns a channel of events for ownerID and a cancel func that
// closes it. The channel is also closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, ownerID string) (<-chan ChatEvent, func()) {
	ch := make(chan ChatEvent, subscriberBuffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[uint64]chan ChatEvent)
	}
	h.subs[ownerID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[ownerID], id)
			if len(h.subs[ownerID]) == 0 {
				delete(h.subs, ownerID)
			}
			h.mu.Unlock()
			close(ch)
			close(done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel
}

// Deliver hands ev to every current subscriber of its owner.
func (h *Hub) Deliver(ev ChatEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[ev.OwnerID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Publish satisfies the services' publisher contract for single instance
// deployments.
func (h *Hub) Publish(_ context.Context, ev ChatEvent) error {
	h.Deliver(ev)
	return nil
}

func (h *Hub) Subscribers(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ownerID])
}
