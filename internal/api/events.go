package api

import (
	"net/http"
	"sync"

	"github.com/screenshotos/screenshotos/internal/logger"
)

// event is one message on the /api/events stream.
type event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// eventHub fans events out to connected websocket clients. A slow
// client's buffer filling up drops events for that client only.
type eventHub struct {
	mu      sync.Mutex
	clients map[chan event]bool
	closed  bool
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[chan event]bool)}
}

func (h *eventHub) subscribe() chan event {
	ch := make(chan event, 16)
	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.clients[ch] = true
	}
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(ch chan event) {
	h.mu.Lock()
	if h.clients[ch] {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *eventHub) broadcast(ev event) {
	h.mu.Lock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			logger.WithComponent("api").Debug().
				Str("type", ev.Type).
				Msg("Dropping event for slow client")
		}
	}
	h.mu.Unlock()
}

func (h *eventHub) close() {
	h.mu.Lock()
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().
			Err(err).
			Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events := s.events.subscribe()
	defer s.events.unsubscribe(events)

	// Reader goroutine notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.WithComponent("api").Debug().
					Err(err).
					Msg("WebSocket write failed")
				return
			}
		case <-gone:
			return
		}
	}
}
