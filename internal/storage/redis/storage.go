package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/storage"
)

// ErrTxConflict is returned when UpdateGame keeps losing optimistic-lock races
var ErrTxConflict = errors.New("redis transaction retries exhausted")

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	created, err := s.client.SetNX(ctx, accountKey(account.Name), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return model.ErrAccountExists
	}
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, name string) (*model.Account, error) {
	var account model.Account
	if err := s.getJSON(ctx, accountKey(name), &account, model.ErrAccountNotFound); err != nil {
		return nil, err
	}
	return &account, nil
}

// Game operations

func (s *Storage) SaveGame(ctx context.Context, game *model.GameListing) error {
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, gameKey(game.ID), data, 0)
	pipe.SAdd(ctx, gamesIndexKey(), string(game.ID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.GameListing, error) {
	var game model.GameListing
	if err := s.getJSON(ctx, gameKey(id), &game, model.ErrGameNotFound); err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *Storage) ListGames(ctx context.Context) ([]*model.GameListing, error) {
	ids, err := s.client.SMembers(ctx, gamesIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = gameKey(model.GameID(id))
	}

	games, err := mgetJSON[model.GameListing](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

// UpdateGame runs fn inside WATCH/MULTI, retrying when another writer
// touches the listing between read and write.
func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, fn func(*model.GameListing) error) (*model.GameListing, error) {
	key := gameKey(id)
	var updated model.GameListing

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrGameNotFound
			}
			return err
		}
		var game model.GameListing
		if err := json.Unmarshal(data, &game); err != nil {
			return err
		}
		if err := fn(&game); err != nil {
			return err
		}
		out, err := json.Marshal(&game)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err == nil {
			updated = game
		}
		return err
	}

	for range s.cfg.MaxTxRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, ErrTxConflict
}

// Download operations

func (s *Storage) SaveDownload(ctx context.Context, download *model.Download) error {
	data, err := json.Marshal(download)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, downloadKey(download.Account, download.GameID), data, 0).Err()
}

func (s *Storage) GetDownload(ctx context.Context, account string, id model.GameID) (*model.Download, error) {
	var download model.Download
	if err := s.getJSON(ctx, downloadKey(account, id), &download, model.ErrGameNotDownloaded); err != nil {
		return nil, err
	}
	return &download, nil
}

// Review operations

func (s *Storage) SaveReview(ctx context.Context, review *model.Review) error {
	data, err := json.Marshal(review)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, reviewsKey(review.GameID), review.Reviewer, data).Err()
}

func (s *Storage) ListReviews(ctx context.Context, id model.GameID) ([]*model.Review, error) {
	entries, err := s.client.HGetAll(ctx, reviewsKey(id)).Result()
	if err != nil {
		return nil, err
	}

	reviews := make([]*model.Review, 0, len(entries))
	for _, data := range entries {
		var review model.Review
		if err := json.Unmarshal([]byte(data), &review); err != nil {
			return nil, err
		}
		reviews = append(reviews, &review)
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].Reviewer < reviews[j].Reviewer })
	return reviews, nil
}

// Room operations

func (s *Storage) SaveRoom(ctx context.Context, room *model.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, roomKey(room.ID), data, s.cfg.RoomTTL)
	pipe.SAdd(ctx, roomsIndexKey(), string(room.ID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	var room model.Room
	if err := s.getJSON(ctx, roomKey(id), &room, model.ErrRoomNotFound); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, roomKey(id))
	pipe.SRem(ctx, roomsIndexKey(), string(id))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.Room, error) {
	ids, err := s.client.SMembers(ctx, roomsIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomKey(model.RoomID(id))
	}

	// Expired room keys leave stale index entries; mgetJSON skips them
	rooms, err := mgetJSON[model.Room](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

// Reset deletes every key under the hub prefix
func (s *Storage) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, allKeysPattern(), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// getJSON loads key into v, mapping a missing key to notFound
func (s *Storage) getJSON(ctx context.Context, key string, v any, notFound error) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// mgetJSON fetches keys in one round trip, skipping any that are missing
func mgetJSON[T any](ctx context.Context, client *redis.Client, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return []*T{}, nil
	}
	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(str), &item); err != nil {
			return nil, err
		}
		out = append(out, &item)
	}
	return out, nil
}
