package main

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MatchEvent is the envelope emitted once per terminal transition and
// consumed by the messaging/notification collaborators.
type MatchEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // match.mutual | match.declined | match.blocked
	UserLo      int       `json:"user_lo"`
	UserHi      int       `json:"user_hi"`
	InitiatorID int       `json:"initiator_id"`
	At          time.Time `json:"at"`
}

func newMatchEvent(rec *MatchRecord, at time.Time) MatchEvent {
	return MatchEvent{
		ID:          uuid.NewString(),
		Type:        "match." + string(rec.State),
		UserLo:      rec.UserLo,
		UserHi:      rec.UserHi,
		InitiatorID: rec.InitiatorID,
		At:          at,
	}
}

// EventHub fans terminal match events out to per-user subscribers.
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[int]map[chan MatchEvent]bool
}

func newEventHub() *EventHub {
	return &EventHub{subscribers: make(map[int]map[chan MatchEvent]bool)}
}

// Subscribe registers a listener for one user's events. The returned cleanup
// must be called; it unregisters and closes the channel.
func (h *EventHub) Subscribe(userID int) (<-chan MatchEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan MatchEvent, 16) // buffered so publishers never block

	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[chan MatchEvent]bool)
	}
	h.subscribers[userID][ch] = true

	cleanup := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subscribers[userID]; ok {
			if subs[ch] {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.subscribers, userID)
			}
		}
	}
	return ch, cleanup
}

// Publish delivers the event to both members of the pair. A subscriber with
// a full buffer is skipped rather than blocking a transition.
func (h *EventHub) Publish(ev MatchEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, userID := range []int{ev.UserLo, ev.UserHi} {
		for ch := range h.subscribers[userID] {
			select {
			case ch <- ev:
			default:
				// Drop for this subscriber; the match record remains the
				// source of truth.
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect from the frontend dev origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /ws/events
// Streams the authenticated user's terminal match events over WebSocket.
func wsEventsHandler(hub *EventHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserIDFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WS upgrade error for user %d: %v", userID, err)
			return
		}

		events, cleanup := hub.Subscribe(userID)
		defer cleanup()

		// Reader: drains client frames and detects disconnect.
		done := make(chan struct{})
		go func() {
			defer close(done)
			conn.SetReadLimit(1 << 16)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()
		defer conn.Close()

		for {
			select {
			case ev, open := <-events:
				if !open {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}
}
