package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"

	"github.com/mcoot/gamehub/internal/dependencies/clock"
	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/storage"
)

// Config holds configuration for the catalog service
type Config struct {
	// GamesDir is where unpacked game files live, one directory per
	// game ID and version
	GamesDir string
}

// DefaultConfig returns default catalog configuration
func DefaultConfig() Config {
	return Config{GamesDir: "games"}
}

// PublishInput describes a new game
type PublishInput struct {
	Name        string
	Version     string
	Description string
	ServerEntry string
}

// UpdateInput describes a new version of an existing game. Nil fields
// keep their current value.
type UpdateInput struct {
	Version     string
	Description *string
	ServerEntry *string
}

// Summary is a catalog entry with its aggregated rating
type Summary struct {
	Listing       *model.GameListing
	AverageRating float64
	ReviewCount   int
}

// Details is a listing together with every review
type Details struct {
	Listing *model.GameListing
	Reviews []*model.Review
}

// Service manages the game catalog: publishing, versioning, downloads
// and reviews
type Service struct {
	storage  storage.Storage
	clock    clock.Clock
	logger   *slog.Logger
	gamesDir string
}

// New creates a new catalog Service
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.GamesDir == "" {
		cfg.GamesDir = DefaultConfig().GamesDir
	}
	return &Service{
		storage:  storage,
		clock:    clock,
		logger:   logger.With(slog.String("component", "catalog")),
		gamesDir: cfg.GamesDir,
	}
}

// Publish creates a listing owned by owner
func (s *Service) Publish(ctx context.Context, owner string, in PublishInput) (*model.GameListing, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrInvalidRequest)
	}
	if !validVersion(in.Version) {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidVersion, in.Version)
	}
	if err := validateEntry(in.ServerEntry); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	id := model.GameID(uuid.NewString())
	game := &model.GameListing{
		ID:          id,
		Owner:       owner,
		Name:        name,
		Version:     in.Version,
		Description: in.Description,
		ServerEntry: in.ServerEntry,
		FilesRoot:   s.filesRoot(id, in.Version),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.storage.SaveGame(ctx, game); err != nil {
		return nil, err
	}

	s.logger.Info("game published",
		slog.String("game_id", string(id)),
		slog.String("owner", owner),
		slog.String("version", in.Version),
	)
	return game, nil
}

// Update bumps the version of a game owned by owner. The new version
// must be strictly greater than the current one.
func (s *Service) Update(ctx context.Context, owner string, id model.GameID, in UpdateInput) (*model.GameListing, error) {
	if !validVersion(in.Version) {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidVersion, in.Version)
	}
	if in.ServerEntry != nil {
		if err := validateEntry(*in.ServerEntry); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	game, err := s.storage.UpdateGame(ctx, id, func(g *model.GameListing) error {
		if g.Delisted {
			return model.ErrGameNotFound
		}
		if g.Owner != owner {
			return model.ErrNotOwner
		}
		if compareVersions(in.Version, g.Version) <= 0 {
			return fmt.Errorf("%w: %s is not newer than %s", model.ErrVersionNotNewer, in.Version, g.Version)
		}
		g.Version = in.Version
		g.FilesRoot = s.filesRoot(g.ID, in.Version)
		if in.Description != nil {
			g.Description = *in.Description
		}
		if in.ServerEntry != nil {
			g.ServerEntry = *in.ServerEntry
		}
		g.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("game updated", slog.String("game_id", string(id)), slog.String("version", game.Version))
	return game, nil
}

// Delist hides a game from the catalog. Its ID and reviews are kept.
// Delisting an already delisted game succeeds.
func (s *Service) Delist(ctx context.Context, owner string, id model.GameID) error {
	now := s.clock.Now()
	_, err := s.storage.UpdateGame(ctx, id, func(g *model.GameListing) error {
		if g.Owner != owner {
			return model.ErrNotOwner
		}
		if !g.Delisted {
			g.Delisted = true
			g.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("game delisted", slog.String("game_id", string(id)))
	return nil
}

// List returns listed games ordered by name
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	games, err := s.storage.ListGames(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(games))
	for _, g := range games {
		if g.Delisted {
			continue
		}
		reviews, err := s.storage.ListReviews(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summary{
			Listing:       g,
			AverageRating: averageRating(reviews),
			ReviewCount:   len(reviews),
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].Listing, summaries[j].Listing
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return summaries, nil
}

// Get returns a listing and its reviews. Delisted games are still
// returned so their history stays reachable.
func (s *Service) Get(ctx context.Context, id model.GameID) (*Details, error) {
	game, err := s.storage.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	reviews, err := s.storage.ListReviews(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Details{Listing: game, Reviews: reviews}, nil
}

// RecordDownload counts a download of the current version by account
// and remembers which version the account now holds
func (s *Service) RecordDownload(ctx context.Context, account string, id model.GameID) (*model.GameListing, error) {
	game, err := s.storage.UpdateGame(ctx, id, func(g *model.GameListing) error {
		if g.Delisted {
			return model.ErrGameNotFound
		}
		g.DownloadCount++
		return nil
	})
	if err != nil {
		return nil, err
	}

	download := &model.Download{
		Account:      account,
		GameID:       id,
		Version:      game.Version,
		DownloadedAt: s.clock.Now(),
	}
	if err := s.storage.SaveDownload(ctx, download); err != nil {
		return nil, err
	}

	s.logger.Info("game downloaded",
		slog.String("game_id", string(id)),
		slog.String("account", account),
		slog.String("version", game.Version),
	)
	return game, nil
}

// SubmitReview records account's rating of a game, replacing any
// earlier review by the same account
func (s *Service) SubmitReview(ctx context.Context, account string, id model.GameID, rating int, comment string) (*model.Review, error) {
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, model.ErrInvalidRating
	}
	if _, err := s.storage.GetGame(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.storage.GetDownload(ctx, account, id); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	review := &model.Review{
		GameID:    id,
		Reviewer:  account,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.SaveReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// ListReviews returns every review of a game
func (s *Service) ListReviews(ctx context.Context, id model.GameID) ([]*model.Review, error) {
	if _, err := s.storage.GetGame(ctx, id); err != nil {
		return nil, err
	}
	return s.storage.ListReviews(ctx, id)
}

// CheckPlayable verifies account holds the current version of a listed
// game and returns the listing
func (s *Service) CheckPlayable(ctx context.Context, account string, id model.GameID) (*model.GameListing, error) {
	game, err := s.storage.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if game.Delisted {
		return nil, model.ErrGameNotFound
	}

	download, err := s.storage.GetDownload(ctx, account, id)
	if err != nil {
		if errors.Is(err, model.ErrGameNotDownloaded) {
			return nil, err
		}
		return nil, fmt.Errorf("get download: %w", err)
	}
	if compareVersions(download.Version, game.Version) < 0 {
		return nil, fmt.Errorf("%w: have %s, current is %s", model.ErrOutdatedVersion, download.Version, game.Version)
	}
	return game, nil
}

func (s *Service) filesRoot(id model.GameID, version string) string {
	return filepath.Join(s.gamesDir, string(id), version)
}

// canonical adds the "v" prefix golang.org/x/mod/semver expects
func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func validVersion(v string) bool {
	return v != "" && semver.IsValid(canonical(v))
}

func compareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

// validateEntry rejects entry points that are empty or escape the
// game's files root
func validateEntry(entry string) error {
	if strings.TrimSpace(entry) == "" {
		return fmt.Errorf("%w: server entry is required", model.ErrInvalidRequest)
	}
	if !filepath.IsLocal(entry) {
		return fmt.Errorf("%w: server entry must be a relative path inside the game files", model.ErrInvalidRequest)
	}
	return nil
}

func averageRating(reviews []*model.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	total := 0
	for _, r := range reviews {
		total += r.Rating
	}
	return float64(total) / float64(len(reviews))
}
