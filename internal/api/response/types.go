package response

import (
	"sort"

	"github.com/mcoot/gamehub/internal/services/ports"
)

// Health is the response for the health endpoint
type Health struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Sessions       int    `json:"sessions"`
	Rooms          int    `json:"rooms"`
	PlayingRooms   int    `json:"playing_rooms"`
	PortsAvailable int    `json:"ports_available"`
}

// HeldPort is a port in use and the room holding it
type HeldPort struct {
	Port   int    `json:"port"`
	Holder string `json:"holder"`
}

// Ports describes the game server port pool
type Ports struct {
	Start int        `json:"start"`
	Size  int        `json:"size"`
	Free  int        `json:"free"`
	Held  []HeldPort `json:"held"`
}

// PortsFromStats converts allocator stats, ordered by port
func PortsFromStats(s ports.Stats) Ports {
	held := make([]HeldPort, 0, len(s.Held))
	for port, holder := range s.Held {
		held = append(held, HeldPort{Port: port, Holder: holder})
	}
	sort.Slice(held, func(i, j int) bool { return held[i].Port < held[j].Port })
	return Ports{Start: s.Start, Size: s.Size, Free: s.Free, Held: held}
}
