package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/storage"
	"github.com/mcoot/gamehub/internal/storage/storagetest"
)

func newTestStorage(t *testing.T, mini *miniredis.Miniredis) *Storage {
	client := redis.NewClient(&redis.Options{
		Addr: mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.RoomTTL = time.Hour
	return NewWithClient(client, cfg)
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func() storage.Storage {
			return newTestStorage(t, miniredis.RunT(t))
		},
	})
}

// StorageSuite covers behaviour specific to the Redis backend
type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestRedisStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	s.storage = newTestStorage(s.T(), s.mini)
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) TestKeysUsePrefix() {
	_ = s.storage.CreateAccount(s.ctx, &model.Account{Name: "alice", Role: model.RolePlayer})
	_ = s.storage.SaveGame(s.ctx, &model.GameListing{ID: "g1", Name: "Gomoku"})
	_ = s.storage.SaveRoom(s.ctx, &model.Room{ID: "ABC123", Host: "alice"})

	s.True(s.mini.Exists("gamehub:account:alice"))
	s.True(s.mini.Exists("gamehub:game:g1"))
	s.True(s.mini.Exists("gamehub:room:ABC123"))

	members, err := s.mini.SMembers("gamehub:idx:games")
	s.Require().NoError(err)
	s.Equal([]string{"g1"}, members)
}

func (s *StorageSuite) TestRoomHasTTL() {
	_ = s.storage.SaveRoom(s.ctx, &model.Room{ID: "ABC123", Host: "alice"})

	ttl := s.mini.TTL("gamehub:room:ABC123")
	s.Equal(time.Hour, ttl)
}

func (s *StorageSuite) TestExpiredRoomDropsOutOfListing() {
	_ = s.storage.SaveRoom(s.ctx, &model.Room{ID: "ABC123", Host: "alice"})
	_ = s.storage.SaveRoom(s.ctx, &model.Room{ID: "DEF456", Host: "bob"})

	s.mini.Del("gamehub:room:ABC123")

	rooms, err := s.storage.ListRooms(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rooms, 1)
	s.Equal(model.RoomID("DEF456"), rooms[0].ID)
}

func (s *StorageSuite) TestAccountsHaveNoTTL() {
	_ = s.storage.CreateAccount(s.ctx, &model.Account{Name: "alice", Role: model.RolePlayer})

	s.Equal(time.Duration(0), s.mini.TTL("gamehub:account:alice"))
}

func (s *StorageSuite) TestResetLeavesForeignKeys() {
	s.Require().NoError(s.mini.Set("other:key", "value"))
	_ = s.storage.CreateAccount(s.ctx, &model.Account{Name: "alice", Role: model.RolePlayer})

	s.Require().NoError(s.storage.Reset(s.ctx))

	s.False(s.mini.Exists("gamehub:account:alice"))
	s.True(s.mini.Exists("other:key"))
}
