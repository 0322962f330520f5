package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"coinforge/internal/game"
)

const DefaultChannel = "coinforge:price_updates"

type Message struct {
	Type    string             `json:"type"`
	Updates []game.PriceUpdate `json:"updates"`
	SentAt  time.Time          `json:"sent_at"`
}

func encode(updates []game.PriceUpdate) ([]byte, error) {
	return json.Marshal(Message{Type: "prices", Updates: updates, SentAt: time.Now().UTC()})
}

// Hub fans price payloads out to in-process subscribers. Slow subscribers
// lose their oldest buffered payload instead of blocking the hub.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan []byte]struct{})}
}

func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub <- payload:
		default:
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- payload:
			default:
			}
		}
	}
}

// PublishPrices lets the hub act as the price sink when no broker is configured.
func (h *Hub) PublishPrices(_ context.Context, updates []game.PriceUpdate) error {
	payload, err := encode(updates)
	if err != nil {
		return err
	}
	h.Broadcast(payload)
	return nil
}

func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 64)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, unsubscribe
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
