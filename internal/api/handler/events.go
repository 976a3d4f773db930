package handler

import (
	"net/http"
	"strings"

	"github.com/mcoot/gamehub/internal/api/events"
	"github.com/mcoot/gamehub/internal/model"
)

// EventsHandler streams room changes as server-sent events
type EventsHandler struct {
	hub *events.Hub
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *events.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream handles GET /api/v1/events, optionally limited to ?room=ID
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	room := model.RoomID(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("room"))))
	events.ServeSSE(w, r, h.hub, room)
}
