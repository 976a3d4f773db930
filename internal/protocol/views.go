package protocol

import (
	"time"

	"github.com/mcoot/gamehub/internal/model"
)

// Account is the public view of an account
type Account struct {
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountFromModel converts a model.Account
func AccountFromModel(a *model.Account) Account {
	return Account{Name: a.Name, Role: string(a.Role), CreatedAt: a.CreatedAt}
}

// Session is returned by login and whoami
type Session struct {
	Token     string    `json:"token,omitempty"`
	Account   string    `json:"account"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Game is a catalog listing
type Game struct {
	ID            string    `json:"game_id"`
	Name          string    `json:"name"`
	Owner         string    `json:"owner"`
	Version       string    `json:"version"`
	Description   string    `json:"description,omitempty"`
	ServerEntry   string    `json:"server_entry"`
	DownloadCount int       `json:"download_count"`
	Delisted      bool      `json:"delisted,omitempty"`
	AverageRating float64   `json:"average_rating,omitempty"`
	ReviewCount   int       `json:"review_count,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GameFromModel converts a model.GameListing
func GameFromModel(g *model.GameListing) Game {
	return Game{
		ID:            string(g.ID),
		Name:          g.Name,
		Owner:         g.Owner,
		Version:       g.Version,
		Description:   g.Description,
		ServerEntry:   g.ServerEntry,
		DownloadCount: g.DownloadCount,
		Delisted:      g.Delisted,
		UpdatedAt:     g.UpdatedAt,
	}
}

// GameDetails is a listing with its reviews
type GameDetails struct {
	Game    Game     `json:"game"`
	Reviews []Review `json:"reviews"`
}

// Download tells the client which files to fetch
type Download struct {
	GameID    string `json:"game_id"`
	Version   string `json:"version"`
	FilesRoot string `json:"files_root"`
	Entry     string `json:"server_entry"`
}

// Review is one account's rating of a game
type Review struct {
	GameID    string    `json:"game_id"`
	Reviewer  string    `json:"reviewer"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReviewFromModel converts a model.Review
func ReviewFromModel(r *model.Review) Review {
	return Review{
		GameID:    string(r.GameID),
		Reviewer:  r.Reviewer,
		Rating:    r.Rating,
		Comment:   r.Comment,
		UpdatedAt: r.UpdatedAt,
	}
}

// ReviewsFromModel converts a slice of reviews
func ReviewsFromModel(reviews []*model.Review) []Review {
	out := make([]Review, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, ReviewFromModel(r))
	}
	return out
}

// Room is a snapshot of a room
type Room struct {
	ID          string          `json:"room_id"`
	Name        string          `json:"name"`
	GameID      string          `json:"game_id"`
	GameVersion string          `json:"game_version"`
	Host        string          `json:"host"`
	Members     []string        `json:"members"`
	Ready       map[string]bool `json:"ready"`
	Capacity    int             `json:"capacity"`
	State       string          `json:"state"`
	Port        *int            `json:"port,omitempty"`
	PID         int             `json:"pid,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RoomFromModel converts a model.Room
func RoomFromModel(r *model.Room) Room {
	room := Room{
		ID:          string(r.ID),
		Name:        r.Name,
		GameID:      string(r.GameID),
		GameVersion: r.GameVersion,
		Host:        r.Host,
		Members:     r.Members,
		Ready:       r.Ready,
		Capacity:    r.Capacity,
		State:       string(r.State),
		Port:        r.AssignedPort,
		CreatedAt:   r.CreatedAt,
	}
	if r.Process != nil {
		room.PID = r.Process.PID
	}
	return room
}

// RoomsFromModel converts a slice of rooms
func RoomsFromModel(rooms []*model.Room) []Room {
	out := make([]Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomFromModel(r))
	}
	return out
}

// LeaveResult reports the outcome of leave_room
type LeaveResult struct {
	Closed bool  `json:"closed"`
	Room   *Room `json:"room,omitempty"`
}

// Event is a room change as streamed by the status server
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"at"`
	RoomID    string    `json:"room_id"`
	Account   string    `json:"account,omitempty"`
	Room      *Room     `json:"room,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// EventFromModel converts a model.Event
func EventFromModel(e model.Event) Event {
	out := Event{
		Type:      string(e.Type),
		Timestamp: e.Timestamp,
		RoomID:    string(e.RoomID),
		Account:   e.Account,
		Reason:    e.Reason,
	}
	if e.Room != nil {
		room := RoomFromModel(e.Room)
		out.Room = &room
	}
	return out
}
