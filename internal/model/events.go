package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	EventRoomCreated  EventType = "room_created"
	EventMemberJoined EventType = "member_joined"
	EventMemberLeft   EventType = "member_left"
	EventReadyChanged EventType = "ready_changed"
	EventGameStarted  EventType = "game_started"
	EventGameEnded    EventType = "game_ended"
	EventRoomClosed   EventType = "room_closed"
)

// Event records one change to a room
type Event struct {
	Type      EventType
	Timestamp time.Time
	RoomID    RoomID
	Account   string // The account that caused the change, if any
	Room      *Room  // Snapshot after the change; nil once closed
	Reason    string // Why a game ended or a room closed
}
