// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/storage"
)

// Suite runs against a fresh store per test. Backends embed it and set
// NewStorage in their own test file.
type Suite struct {
	suite.Suite

	NewStorage func() storage.Storage

	storage storage.Storage
	ctx     context.Context
	now     time.Time
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStorage, "NewStorage must be set")
	s.storage = s.NewStorage()
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *Suite) game(id string) *model.GameListing {
	return &model.GameListing{
		ID:          model.GameID(id),
		Owner:       "dev1",
		Name:        "Gomoku",
		Version:     "1.0.0",
		Description: "five in a row",
		ServerEntry: "server.py",
		FilesRoot:   "/games/" + id + "/1.0.0",
		CreatedAt:   s.now,
		UpdatedAt:   s.now,
	}
}

func (s *Suite) room(id string) *model.Room {
	port := 10002
	return &model.Room{
		ID:           model.RoomID(id),
		Name:         "alice's room",
		GameID:       "g1",
		GameVersion:  "1.0.0",
		Host:         "alice",
		Members:      []string{"alice", "bob"},
		Ready:        map[string]bool{"alice": true, "bob": false},
		Capacity:     4,
		State:        model.RoomStatePlaying,
		AssignedPort: &port,
		Process:      &model.ProcessHandle{ID: "proc-1", PID: 4242, Port: port, StartedAt: s.now},
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
}

// Account tests

func (s *Suite) TestCreateAndGetAccount() {
	account := &model.Account{Name: "alice", PasswordHash: "hash", Role: model.RolePlayer, CreatedAt: s.now}
	s.Require().NoError(s.storage.CreateAccount(s.ctx, account))

	got, err := s.storage.GetAccount(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", got.Name)
	s.Equal("hash", got.PasswordHash)
	s.Equal(model.RolePlayer, got.Role)
	s.True(s.now.Equal(got.CreatedAt))
}

func (s *Suite) TestCreateAccountFailsIfNameTaken() {
	s.Require().NoError(s.storage.CreateAccount(s.ctx, &model.Account{Name: "alice", Role: model.RolePlayer}))

	err := s.storage.CreateAccount(s.ctx, &model.Account{Name: "alice", Role: model.RoleDeveloper})
	s.ErrorIs(err, model.ErrAccountExists)

	got, err := s.storage.GetAccount(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.RolePlayer, got.Role)
}

func (s *Suite) TestConcurrentCreateAccountHasOneWinner() {
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.storage.CreateAccount(s.ctx, &model.Account{Name: "alice", Role: model.RolePlayer})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, model.ErrAccountExists)
	}
	s.Equal(1, succeeded)
}

func (s *Suite) TestGetAccountNotFound() {
	_, err := s.storage.GetAccount(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

// Game tests

func (s *Suite) TestSaveAndGetGame() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, s.game("g1")))

	got, err := s.storage.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal("Gomoku", got.Name)
	s.Equal("1.0.0", got.Version)
	s.Equal("server.py", got.ServerEntry)
	s.Equal("/games/g1/1.0.0", got.FilesRoot)
	s.False(got.Delisted)
}

func (s *Suite) TestGetGameNotFound() {
	_, err := s.storage.GetGame(s.ctx, "missing")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestListGamesIncludesDelisted() {
	g2 := s.game("g2")
	g2.Delisted = true
	s.Require().NoError(s.storage.SaveGame(s.ctx, s.game("g1")))
	s.Require().NoError(s.storage.SaveGame(s.ctx, g2))

	games, err := s.storage.ListGames(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(games, 2)
	s.Equal(model.GameID("g1"), games[0].ID)
	s.True(games[1].Delisted)
}

func (s *Suite) TestUpdateGameAppliesChange() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, s.game("g1")))

	updated, err := s.storage.UpdateGame(s.ctx, "g1", func(g *model.GameListing) error {
		g.Version = "1.1.0"
		g.DownloadCount++
		return nil
	})
	s.Require().NoError(err)
	s.Equal("1.1.0", updated.Version)

	got, err := s.storage.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal("1.1.0", got.Version)
	s.Equal(1, got.DownloadCount)
}

func (s *Suite) TestUpdateGameDiscardsOnError() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, s.game("g1")))
	boom := errors.New("boom")

	_, err := s.storage.UpdateGame(s.ctx, "g1", func(g *model.GameListing) error {
		g.Version = "9.9.9"
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.storage.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal("1.0.0", got.Version)
}

func (s *Suite) TestUpdateGameNotFound() {
	_, err := s.storage.UpdateGame(s.ctx, "missing", func(*model.GameListing) error { return nil })
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestConcurrentUpdateGameLosesNoIncrements() {
	s.Require().NoError(s.storage.SaveGame(s.ctx, s.game("g1")))

	const n = 10
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.storage.UpdateGame(s.ctx, "g1", func(g *model.GameListing) error {
				g.DownloadCount++
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.storage.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal(n, got.DownloadCount)
}

// Download tests

func (s *Suite) TestSaveAndGetDownload() {
	s.Require().NoError(s.storage.SaveDownload(s.ctx, &model.Download{
		Account: "alice", GameID: "g1", Version: "1.0.0", DownloadedAt: s.now,
	}))
	s.Require().NoError(s.storage.SaveDownload(s.ctx, &model.Download{
		Account: "alice", GameID: "g1", Version: "1.1.0", DownloadedAt: s.now,
	}))

	got, err := s.storage.GetDownload(s.ctx, "alice", "g1")
	s.Require().NoError(err)
	s.Equal("1.1.0", got.Version)
}

func (s *Suite) TestGetDownloadMissing() {
	_, err := s.storage.GetDownload(s.ctx, "alice", "g1")
	s.ErrorIs(err, model.ErrGameNotDownloaded)
}

// Review tests

func (s *Suite) TestSaveReviewOverwritesPerReviewer() {
	s.Require().NoError(s.storage.SaveReview(s.ctx, &model.Review{GameID: "g1", Reviewer: "bob", Rating: 2, Comment: "meh"}))
	s.Require().NoError(s.storage.SaveReview(s.ctx, &model.Review{GameID: "g1", Reviewer: "alice", Rating: 5, Comment: "great"}))
	s.Require().NoError(s.storage.SaveReview(s.ctx, &model.Review{GameID: "g1", Reviewer: "bob", Rating: 4, Comment: "better"}))
	s.Require().NoError(s.storage.SaveReview(s.ctx, &model.Review{GameID: "g2", Reviewer: "bob", Rating: 1}))

	reviews, err := s.storage.ListReviews(s.ctx, "g1")
	s.Require().NoError(err)
	s.Require().Len(reviews, 2)
	s.Equal("alice", reviews[0].Reviewer)
	s.Equal("bob", reviews[1].Reviewer)
	s.Equal(4, reviews[1].Rating)
	s.Equal("better", reviews[1].Comment)
}

func (s *Suite) TestListReviewsEmpty() {
	reviews, err := s.storage.ListReviews(s.ctx, "g1")
	s.Require().NoError(err)
	s.Empty(reviews)
}

// Room tests

func (s *Suite) TestSaveAndGetRoom() {
	s.Require().NoError(s.storage.SaveRoom(s.ctx, s.room("ABC123")))

	got, err := s.storage.GetRoom(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal([]string{"alice", "bob"}, got.Members)
	s.True(got.Ready["alice"])
	s.False(got.Ready["bob"])
	s.Equal(model.RoomStatePlaying, got.State)
	s.Require().NotNil(got.AssignedPort)
	s.Equal(10002, *got.AssignedPort)
	s.Require().NotNil(got.Process)
	s.Equal(4242, got.Process.PID)
}

func (s *Suite) TestGetRoomNotFound() {
	_, err := s.storage.GetRoom(s.ctx, "NOPE")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *Suite) TestDeleteRoom() {
	s.Require().NoError(s.storage.SaveRoom(s.ctx, s.room("ABC123")))
	s.Require().NoError(s.storage.DeleteRoom(s.ctx, "ABC123"))

	_, err := s.storage.GetRoom(s.ctx, "ABC123")
	s.ErrorIs(err, model.ErrRoomNotFound)

	// Deleting again is a no-op
	s.NoError(s.storage.DeleteRoom(s.ctx, "ABC123"))
}

func (s *Suite) TestListRooms() {
	s.Require().NoError(s.storage.SaveRoom(s.ctx, s.room("BBB222")))
	s.Require().NoError(s.storage.SaveRoom(s.ctx, s.room("AAA111")))

	rooms, err := s.storage.ListRooms(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rooms, 2)
	s.Equal(model.RoomID("AAA111"), rooms[0].ID)
	s.Equal(model.RoomID("BBB222"), rooms[1].ID)
}

// Reset tests

func (s *Suite) TestResetClearsEverything() {
	s.Require().NoError(s.storage.CreateAccount(s.ctx, &model.Account{Name: "alice", Role: model.RolePlayer}))
	s.Require().NoError(s.storage.SaveGame(s.ctx, s.game("g1")))
	s.Require().NoError(s.storage.SaveDownload(s.ctx, &model.Download{Account: "alice", GameID: "g1", Version: "1.0.0"}))
	s.Require().NoError(s.storage.SaveReview(s.ctx, &model.Review{GameID: "g1", Reviewer: "alice", Rating: 3}))
	s.Require().NoError(s.storage.SaveRoom(s.ctx, s.room("ABC123")))

	s.Require().NoError(s.storage.Reset(s.ctx))

	_, err := s.storage.GetAccount(s.ctx, "alice")
	s.ErrorIs(err, model.ErrAccountNotFound)
	_, err = s.storage.GetGame(s.ctx, "g1")
	s.ErrorIs(err, model.ErrGameNotFound)
	_, err = s.storage.GetDownload(s.ctx, "alice", "g1")
	s.ErrorIs(err, model.ErrGameNotDownloaded)
	reviews, err := s.storage.ListReviews(s.ctx, "g1")
	s.Require().NoError(err)
	s.Empty(reviews)
	rooms, err := s.storage.ListRooms(s.ctx)
	s.Require().NoError(err)
	s.Empty(rooms)

	// Store remains usable
	s.NoError(s.storage.CreateAccount(s.ctx, &model.Account{Name: "alice", Role: model.RolePlayer}))
}
