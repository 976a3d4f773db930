package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Values are copied on the way in and out so callers never share
// state with the store.
type Storage struct {
	mu sync.RWMutex

	accounts  map[string]*model.Account
	games     map[model.GameID]*model.GameListing
	downloads map[downloadKey]*model.Download
	reviews   map[model.GameID]map[string]*model.Review
	rooms     map[model.RoomID]*model.Room
}

type downloadKey struct {
	account string
	gameID  model.GameID
}

// New creates a new in-memory storage instance
func New() *Storage {
	s := &Storage{}
	s.init()
	return s
}

func (s *Storage) init() {
	s.accounts = make(map[string]*model.Account)
	s.games = make(map[model.GameID]*model.GameListing)
	s.downloads = make(map[downloadKey]*model.Download)
	s.reviews = make(map[model.GameID]map[string]*model.Review)
	s.rooms = make(map[model.RoomID]*model.Room)
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Name]; ok {
		return model.ErrAccountExists
	}
	a := *account
	s.accounts[account.Name] = &a
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, name string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[name]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	out := *a
	return &out, nil
}

// Game operations

func (s *Storage) SaveGame(ctx context.Context, game *model.GameListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := *game
	s.games[game.ID] = &g
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.GameListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	out := *g
	return &out, nil
}

func (s *Storage) ListGames(ctx context.Context) ([]*model.GameListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	games := make([]*model.GameListing, 0, len(s.games))
	for _, g := range s.games {
		out := *g
		games = append(games, &out)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, fn func(*model.GameListing) error) (*model.GameListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	updated := *g
	if err := fn(&updated); err != nil {
		return nil, err
	}
	s.games[id] = &updated
	out := updated
	return &out, nil
}

// Download operations

func (s *Storage) SaveDownload(ctx context.Context, download *model.Download) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *download
	s.downloads[downloadKey{download.Account, download.GameID}] = &d
	return nil
}

func (s *Storage) GetDownload(ctx context.Context, account string, id model.GameID) (*model.Download, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.downloads[downloadKey{account, id}]
	if !ok {
		return nil, model.ErrGameNotDownloaded
	}
	out := *d
	return &out, nil
}

// Review operations

func (s *Storage) SaveReview(ctx context.Context, review *model.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byReviewer, ok := s.reviews[review.GameID]
	if !ok {
		byReviewer = make(map[string]*model.Review)
		s.reviews[review.GameID] = byReviewer
	}
	r := *review
	byReviewer[review.Reviewer] = &r
	return nil
}

func (s *Storage) ListReviews(ctx context.Context, id model.GameID) ([]*model.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reviews := make([]*model.Review, 0, len(s.reviews[id]))
	for _, r := range s.reviews[id] {
		out := *r
		reviews = append(reviews, &out)
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].Reviewer < reviews[j].Reviewer })
	return reviews, nil
}

// Room operations

func (s *Storage) SaveRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return r.Clone(), nil
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
	return nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*model.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r.Clone())
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

// Reset drops all data
func (s *Storage) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	return nil
}

// Close is a no-op for the in-memory store
func (s *Storage) Close() error {
	return nil
}
