package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/storage"
	"github.com/mcoot/gamehub/internal/storage/storagetest"
)

func openTempStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "gamehub.db"))
	require.NoError(t, err)
	return s
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func() storage.Storage { return openTempStorage(t) },
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamehub.db")
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateAccount(ctx, &model.Account{
		Name: "dev1", PasswordHash: "hash", Role: model.RoleDeveloper, CreatedAt: created,
	}))
	require.NoError(t, s.SaveGame(ctx, &model.GameListing{
		ID: "g1", Owner: "dev1", Name: "Gomoku", Version: "1.0.0", CreatedAt: created, UpdatedAt: created,
	}))
	require.NoError(t, s.Close())

	// Reopening must not re-run migrations against existing tables
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	account, err := s.GetAccount(ctx, "dev1")
	require.NoError(t, err)
	require.Equal(t, model.RoleDeveloper, account.Role)
	require.True(t, created.Equal(account.CreatedAt))

	game, err := s.GetGame(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, "Gomoku", game.Name)
}
