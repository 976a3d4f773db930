package events

import (
	"encoding/json"
	"log/slog"

	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/protocol"
)

// Feed publishes room events from the lobby to a Hub as JSON
type Feed struct {
	hub    *Hub
	logger *slog.Logger
}

// NewFeed creates a Feed writing to hub
func NewFeed(hub *Hub, logger *slog.Logger) *Feed {
	return &Feed{hub: hub, logger: logger}
}

// Publish implements lobby.EventSink
func (f *Feed) Publish(event model.Event) {
	data, err := json.Marshal(protocol.EventFromModel(event))
	if err != nil {
		f.logger.Error("failed to encode room event", slog.String("event", string(event.Type)), slog.String("error", err.Error()))
		return
	}
	f.hub.Broadcast(event.RoomID, string(event.Type), string(data))
}
