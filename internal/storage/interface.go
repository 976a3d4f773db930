package storage

import (
	"context"

	"github.com/mcoot/gamehub/internal/model"
)

// Storage defines the interface for data persistence.
//
// Accounts, games and rooms are independent collections. Each operation
// is atomic on its own; no operation spans collections.
type Storage interface {
	// Account operations
	CreateAccount(ctx context.Context, account *model.Account) error // ErrAccountExists if taken
	GetAccount(ctx context.Context, name string) (*model.Account, error)

	// Game catalog operations
	SaveGame(ctx context.Context, game *model.GameListing) error
	GetGame(ctx context.Context, id model.GameID) (*model.GameListing, error)
	ListGames(ctx context.Context) ([]*model.GameListing, error)
	// UpdateGame applies fn to the stored listing as a single
	// read-modify-write. If fn returns an error nothing is written.
	UpdateGame(ctx context.Context, id model.GameID, fn func(*model.GameListing) error) (*model.GameListing, error)

	// Download operations
	SaveDownload(ctx context.Context, download *model.Download) error
	GetDownload(ctx context.Context, account string, id model.GameID) (*model.Download, error)

	// Review operations
	SaveReview(ctx context.Context, review *model.Review) error // overwrites (GameID, Reviewer)
	ListReviews(ctx context.Context, id model.GameID) ([]*model.Review, error)

	// Room operations
	SaveRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error)
	DeleteRoom(ctx context.Context, id model.RoomID) error
	ListRooms(ctx context.Context) ([]*model.Room, error)

	// Reset removes every record from every collection
	Reset(ctx context.Context) error
	Close() error
}
