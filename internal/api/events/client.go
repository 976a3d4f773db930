package events

import (
	"net/http"
	"time"

	"github.com/mcoot/gamehub/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time between keepalive pings
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 64
)

// Client is one connected event stream
type Client struct {
	room        model.RoomID // empty for every room
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a client following room, or every room when room
// is empty
func NewClient(room model.RoomID) *Client {
	return &Client{
		room:        room,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

func (c *Client) wants(room model.RoomID) bool {
	return c.room == "" || c.room == room
}

// ServeSSE streams hub events to the client until either side goes away
func ServeSSE(w http.ResponseWriter, r *http.Request, hub *Hub, room model.RoomID) {
	rc := http.NewResponseController(w)

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := NewClient(room)
	if !hub.Register(client) {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	write := func(data []byte) bool {
		_ = rc.SetWriteDeadline(time.Now().Add(writeWait))
		if _, err := w.Write(data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !write([]byte("event: connected\ndata: {\"status\":\"connected\"}\n\n")) {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				// Hub closed the channel
				return
			}
			if !write(message) {
				return
			}

		case <-ticker.C:
			if !write([]byte(": keepalive\n\n")) {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}
