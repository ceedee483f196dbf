package push

import (
	"context"
	"fmt"
	"sync"
)

const defaultBuffer = 32

// Hub is the in-process Broker used when Redis is not configured.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*hubSubscription]struct{}
	buffer int
}

// NewHub returns a Hub whose subscriptions buffer up to buffer messages.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[string]map[*hubSubscription]struct{}), buffer: buffer}
}

// Publish delivers payload without blocking. A user with no live
// subscription is not an error; a full subscriber buffer is.
func (h *Hub) Publish(_ context.Context, userID string, payload []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for sub := range h.subs[userID] {
		msg := append([]byte(nil), payload...)
		select {
		case sub.ch <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: %d slow subscriber(s) for %s", ErrUndelivered, dropped, userID)
	}
	return nil
}

// Subscribe registers a feed for userID.
func (h *Hub) Subscribe(_ context.Context, userID string) (Subscription, error) {
	sub := &hubSubscription{hub: h, userID: userID, ch: make(chan []byte, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*hubSubscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return sub, nil
}

// Subscribers counts live feeds for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *Hub) remove(sub *hubSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.userID]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.userID)
	}
	close(sub.ch)
}

type hubSubscription struct {
	hub    *Hub
	userID string
	ch     chan []byte
}

func (s *hubSubscription) Messages() <-chan []byte {
	return s.ch
}

func (s *hubSubscription) Close() error {
	s.hub.remove(s)
	return nil
}
