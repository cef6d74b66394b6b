// internal/notify/hub.go
//
// Per-player fan-out of status messages.
// Every operation that produces a session.Status publishes it here; WebSocket
// subscribers (one per open browser tab) receive it as a toast notification.
//
// Publish never blocks: a subscriber whose buffer is full misses the message.

package notify

import (
	"sync"

	"github.com/robalobadob/hiddenpicture/internal/session"
)

const bufferSize = 16

// Hub routes statuses to subscribers by player key.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan session.Status]struct{}
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan session.Status]struct{})}
}

// Subscribe registers a listener for player. The returned cancel func must be
// called once; it closes the channel.
func (h *Hub) Subscribe(player string) (<-chan session.Status, func()) {
	ch := make(chan session.Status, bufferSize)
	h.mu.Lock()
	set, ok := h.subs[player]
	if !ok {
		set = make(map[chan session.Status]struct{})
		h.subs[player] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[player], ch)
			if len(h.subs[player]) == 0 {
				delete(h.subs, player)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers st to every subscriber of player and reports how many
// received it.
func (h *Hub) Publish(player string, st session.Status) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for ch := range h.subs[player] {
		select {
		case ch <- st:
			n++
		default:
		}
	}
	return n
}

// Subscribers counts listeners for player.
func (h *Hub) Subscribers(player string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[player])
}
