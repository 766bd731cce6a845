package events

import (
	"sync"

	"github.com/rs/zerolog"

	"mindfulbot/internal/domain/model"
	"mindfulbot/internal/domain/ports/adapter"
)

var (
	_ adapter.EventPublisher  = (*Hub)(nil)
	_ adapter.EventSubscriber = (*Hub)(nil)
)

const defaultBuffer = 16

// Hub fans conversation events out to per-session subscribers. Publish never
// blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan model.Event
	nextID int
	buffer int
	log    *zerolog.Logger
}

func NewHub(buffer int, logger *zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{subs: make(map[string]map[int]chan model.Event), buffer: buffer, log: logger}
}

func (h *Hub) Publish(ev model.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			h.log.Warn().Str("session_id", ev.SessionID).Str("kind", string(ev.Kind)).Msg("subscriber lagging; event dropped")
		}
	}
}

// Subscribe returns a channel of events for sessionID and a cancel func
// that unregisters and closes it. Cancel is safe to call more than once.
func (h *Hub) Subscribe(sessionID string) (<-chan model.Event, func()) {
	ch := make(chan model.Event, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[int]chan model.Event)
	}
	h.subs[sessionID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[sessionID], id)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			close(ch)
		})
	}
}

// Subscribers reports the live subscriber count for a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
