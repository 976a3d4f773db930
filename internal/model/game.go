package model

import "time"

// GameID uniquely identifies a published game across all of its versions
type GameID string

// GameListing is a catalog entry for a published game
type GameListing struct {
	ID          GameID
	Owner       string // developer account name
	Name        string
	Version     string // semantic version, strictly increasing per ID
	Description string

	// ServerEntry is the game-server entry point, relative to FilesRoot
	ServerEntry string
	// FilesRoot is the directory holding the unpacked files of Version
	FilesRoot string

	DownloadCount int
	Delisted      bool // hidden from the catalog, ID kept for reviews
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Download records the version of a game an account last downloaded
type Download struct {
	Account      string
	GameID       GameID
	Version      string
	DownloadedAt time.Time
}

// Review is a player's rating of a game. One per (GameID, Reviewer).
type Review struct {
	GameID    GameID
	Reviewer  string
	Rating    int // 1..5
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	MinRating = 1
	MaxRating = 5
)
