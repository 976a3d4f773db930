package model

import (
	"slices"
	"time"
)

// RoomID is a short human-readable identifier for a room
type RoomID string

// RoomState is the lifecycle state of a room
type RoomState string

const (
	RoomStateOpen       RoomState = "OPEN"        // Only the host, accepting joins
	RoomStateReadyCheck RoomState = "READY-CHECK" // Two or more members toggling ready
	RoomStatePlaying    RoomState = "PLAYING"     // Game server process running
	RoomStateClosed     RoomState = "CLOSED"      // Terminal, removed from the table
)

// Active reports whether a room in this state still counts towards
// hosting and membership limits
func (s RoomState) Active() bool {
	return s != RoomStateClosed && s != ""
}

// ProcessHandle identifies a game server process launched for a room
type ProcessHandle struct {
	ID        string
	PID       int
	Port      int
	StartedAt time.Time
}

// Room is a transient session container binding a game, a host and a
// bounded set of members. AssignedPort and Process are set only while
// the room is PLAYING.
type Room struct {
	ID          RoomID
	Name        string
	GameID      GameID
	GameVersion string
	Host        string
	Members     []string // in join order, host first
	Ready       map[string]bool
	Capacity    int
	State       RoomState

	AssignedPort *int
	Process      *ProcessHandle

	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	MinRoomCapacity = 2
	MaxRoomCapacity = 16
)

// IsMember reports whether the account belongs to the room
func (r *Room) IsMember(account string) bool {
	return slices.Contains(r.Members, account)
}

// IsFull reports whether the room has reached its capacity
func (r *Room) IsFull() bool {
	return len(r.Members) >= r.Capacity
}

// AllReady reports whether every member has set their ready flag
func (r *Room) AllReady() bool {
	for _, m := range r.Members {
		if !r.Ready[m] {
			return false
		}
	}
	return true
}

// RemoveMember drops the account from the member list and ready flags
func (r *Room) RemoveMember(account string) {
	r.Members = slices.DeleteFunc(r.Members, func(m string) bool { return m == account })
	delete(r.Ready, account)
}

// ClearReady resets every member's ready flag
func (r *Room) ClearReady() {
	for _, m := range r.Members {
		r.Ready[m] = false
	}
}

// Clone returns a deep copy safe to hand out of the room table
func (r *Room) Clone() *Room {
	c := *r
	c.Members = slices.Clone(r.Members)
	c.Ready = make(map[string]bool, len(r.Ready))
	for k, v := range r.Ready {
		c.Ready[k] = v
	}
	if r.AssignedPort != nil {
		port := *r.AssignedPort
		c.AssignedPort = &port
	}
	if r.Process != nil {
		p := *r.Process
		c.Process = &p
	}
	return &c
}
