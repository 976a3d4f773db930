// Package sqlite provides a SQLite-backed storage implementation that
// survives restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/storage"
	"github.com/mcoot/gamehub/internal/storage/sqlite/migrations"
)

// Storage persists hub state in a single SQLite file
type Storage struct {
	db *sql.DB
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies embedded migrations
func Open(path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers, so read-modify-write
	// transactions never race on lock upgrades.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the SQLite handle
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		account.Name, account.PasswordHash, string(account.Role), toMillis(account.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAccountExists
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, name string) (*model.Account, error) {
	var account model.Account
	var role string
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT name, password_hash, role, created_at FROM accounts WHERE name = ?`, name,
	).Scan(&account.Name, &account.PasswordHash, &role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	account.Role = model.Role(role)
	account.CreatedAt = fromMillis(createdAt)
	return &account, nil
}

// Game operations

const gameColumns = `id, owner, name, version, description, server_entry, files_root,
	download_count, delisted, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*model.GameListing, error) {
	var g model.GameListing
	var id string
	var delisted int
	var createdAt, updatedAt int64
	if err := row.Scan(&id, &g.Owner, &g.Name, &g.Version, &g.Description, &g.ServerEntry,
		&g.FilesRoot, &g.DownloadCount, &delisted, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	g.ID = model.GameID(id)
	g.Delisted = delisted != 0
	g.CreatedAt = fromMillis(createdAt)
	g.UpdatedAt = fromMillis(updatedAt)
	return &g, nil
}

func gameArgs(g *model.GameListing) []any {
	return []any{
		string(g.ID), g.Owner, g.Name, g.Version, g.Description, g.ServerEntry, g.FilesRoot,
		g.DownloadCount, boolToInt(g.Delisted), toMillis(g.CreatedAt), toMillis(g.UpdatedAt),
	}
}

const upsertGameSQL = `INSERT INTO games (` + gameColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	  owner = excluded.owner,
	  name = excluded.name,
	  version = excluded.version,
	  description = excluded.description,
	  server_entry = excluded.server_entry,
	  files_root = excluded.files_root,
	  download_count = excluded.download_count,
	  delisted = excluded.delisted,
	  created_at = excluded.created_at,
	  updated_at = excluded.updated_at`

func (s *Storage) SaveGame(ctx context.Context, game *model.GameListing) error {
	if _, err := s.db.ExecContext(ctx, upsertGameSQL, gameArgs(game)...); err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.GameListing, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrGameNotFound
		}
		return nil, fmt.Errorf("get game: %w", err)
	}
	return g, nil
}

func (s *Storage) ListGames(ctx context.Context) ([]*model.GameListing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+gameColumns+` FROM games ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	games := []*model.GameListing{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, fn func(*model.GameListing) error) (*model.GameListing, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update game: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	g, err := scanGame(tx.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrGameNotFound
		}
		return nil, fmt.Errorf("get game: %w", err)
	}
	if err := fn(g); err != nil {
		return nil, err
	}
	g.ID = id
	if _, err := tx.ExecContext(ctx, upsertGameSQL, gameArgs(g)...); err != nil {
		return nil, fmt.Errorf("update game: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update game: %w", err)
	}
	return g, nil
}

// Download operations

func (s *Storage) SaveDownload(ctx context.Context, download *model.Download) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (account, game_id, version, downloaded_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(account, game_id) DO UPDATE SET
		   version = excluded.version,
		   downloaded_at = excluded.downloaded_at`,
		download.Account, string(download.GameID), download.Version, toMillis(download.DownloadedAt),
	)
	if err != nil {
		return fmt.Errorf("save download: %w", err)
	}
	return nil
}

func (s *Storage) GetDownload(ctx context.Context, account string, id model.GameID) (*model.Download, error) {
	d := model.Download{Account: account, GameID: id}
	var downloadedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT version, downloaded_at FROM downloads WHERE account = ? AND game_id = ?`,
		account, string(id),
	).Scan(&d.Version, &downloadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrGameNotDownloaded
		}
		return nil, fmt.Errorf("get download: %w", err)
	}
	d.DownloadedAt = fromMillis(downloadedAt)
	return &d, nil
}

// Review operations

func (s *Storage) SaveReview(ctx context.Context, review *model.Review) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (game_id, reviewer, rating, comment, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(game_id, reviewer) DO UPDATE SET
		   rating = excluded.rating,
		   comment = excluded.comment,
		   updated_at = excluded.updated_at`,
		string(review.GameID), review.Reviewer, review.Rating, review.Comment,
		toMillis(review.CreatedAt), toMillis(review.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return nil
}

func (s *Storage) ListReviews(ctx context.Context, id model.GameID) ([]*model.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reviewer, rating, comment, created_at, updated_at
		   FROM reviews WHERE game_id = ? ORDER BY reviewer`, string(id))
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*model.Review{}
	for rows.Next() {
		r := model.Review{GameID: id}
		var createdAt, updatedAt int64
		if err := rows.Scan(&r.Reviewer, &r.Rating, &r.Comment, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.CreatedAt = fromMillis(createdAt)
		r.UpdatedAt = fromMillis(updatedAt)
		reviews = append(reviews, &r)
	}
	return reviews, rows.Err()
}

// Room operations

func (s *Storage) SaveRoom(ctx context.Context, room *model.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(room.ID), string(data), toMillis(room.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM rooms WHERE id = ?`, string(id)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	var room model.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return &room, nil
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []*model.Room{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		var room model.Room
		if err := json.Unmarshal([]byte(data), &room); err != nil {
			return nil, fmt.Errorf("decode room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// Reset truncates every table in one transaction
func (s *Storage) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"accounts", "games", "downloads", "reviews", "rooms"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
