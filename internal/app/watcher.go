/**
 * @description
 * This file implements the watch hub behind the live dashboard streams. The
 * hub consumes account events from the portal events exchange and fans each
 * snapshot out to the subscribers watching that account. Subscribers are
 * plain channels, so the API layer can drive Server-Sent Events from them
 * without knowing anything about the broker.
 *
 * Streams are a display concern only: settlement correctness never reads
 * from the hub, which may lag behind committed state.
 */

package app

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/unitymfi/portal-service/internal/domain"
)

const watchBufferSize = 8

// WatchHub fans account snapshots out to per-account subscribers.
type WatchHub struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[uuid.UUID]map[int]chan domain.AccountEvent
}

// NewWatchHub creates an empty hub.
func NewWatchHub() *WatchHub {
	return &WatchHub{
		subscribers: make(map[uuid.UUID]map[int]chan domain.AccountEvent),
	}
}

// Subscribe registers interest in one account's snapshots. The returned
// cancel function must be called when the stream ends.
func (h *WatchHub) Subscribe(accountID uuid.UUID) (<-chan domain.AccountEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan domain.AccountEvent, watchBufferSize)
	if h.subscribers[accountID] == nil {
		h.subscribers[accountID] = make(map[int]chan domain.AccountEvent)
	}
	h.subscribers[accountID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subscribers[accountID]; ok {
			if ch, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.subscribers, accountID)
			}
		}
	}
	return ch, cancel
}

// Broadcast delivers a snapshot to every subscriber of the account. Slow
// subscribers with a full buffer miss the event rather than block delivery;
// they catch up on the next one.
func (h *WatchHub) Broadcast(event domain.AccountEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers[event.Account.ID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// HandleAccountEvent is the RabbitMQ consumer binding for account.created and
// account.updated messages. It always acks: a malformed payload is logged and
// dropped, since re-queuing it would loop forever.
func (h *WatchHub) HandleAccountEvent(body []byte) bool {
	var event domain.AccountEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=watch_hub msg=\"malformed account event dropped\" err=%v", err)
		return true
	}
	h.Broadcast(event)
	return true
}
