package server

import (
	"log"
	"net/http"
	"time"

	"github.com/jonathan/otj-helper/internal/events"
)

// ConnectedEvent is the first event on every stream.
type ConnectedEvent struct {
	SubscriptionID string `json:"subscription_id"`
}

// handleEventStream pushes the user's live updates as Server-Sent Events until
// the client disconnects or the server shuts down
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	sub := s.broker.Subscribe(user.ID)
	defer s.broker.Unsubscribe(sub)
	log.Printf("Event stream %s opened for user %d", sub.ID, user.ID)

	if err := sse.WriteEvent(events.Connected, ConnectedEvent{SubscriptionID: sub.ID}); err != nil {
		return
	}

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("Event stream %s closed by client", sub.ID)
			return
		case <-s.closing:
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			if err := sse.WriteMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := sse.WriteKeepalive(); err != nil {
				return
			}
		}
	}
}
