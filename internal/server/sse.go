package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonathan/otj-helper/internal/events"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer and sends the stream headers
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	// Set SSE headers; X-Accel-Buffering stops nginx-style proxies holding events back
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent encodes data and sends it as an SSE event
func (s *SSEWriter) WriteEvent(event events.EventType, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.WriteMessage(events.Message{Type: event, Data: jsonData})
}

// WriteMessage sends an already encoded broker message
func (s *SSEWriter) WriteMessage(msg events.Message) error {
	if _, err := fmt.Fprint(s.w, msg.String()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepalive sends a comment line that keeps idle connections open
func (s *SSEWriter) WriteKeepalive() error {
	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
