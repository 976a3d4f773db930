package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mcoot/gamehub/internal/api"
	"github.com/mcoot/gamehub/internal/api/events"
	"github.com/mcoot/gamehub/internal/config"
	"github.com/mcoot/gamehub/internal/dependencies/clock"
	"github.com/mcoot/gamehub/internal/dependencies/random"
	"github.com/mcoot/gamehub/internal/server"
	"github.com/mcoot/gamehub/internal/services/auth"
	"github.com/mcoot/gamehub/internal/services/catalog"
	"github.com/mcoot/gamehub/internal/services/lobby"
	"github.com/mcoot/gamehub/internal/services/ports"
	"github.com/mcoot/gamehub/internal/services/process"
	"github.com/mcoot/gamehub/internal/storage"
	"github.com/mcoot/gamehub/internal/storage/memory"
	redisstorage "github.com/mcoot/gamehub/internal/storage/redis"
	sqlitestorage "github.com/mcoot/gamehub/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory = config.StorageMemory
	StorageTypeRedis  = config.StorageRedis
	StorageTypeSQLite = config.StorageSQLite
)

// Supervisor is what the App needs from a process supervisor
type Supervisor interface {
	lobby.Supervisor
	OnExit(fn func(process.Exit))
	TerminateAll() error
}

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock      clock.Clock
	Random     random.Random
	Supervisor Supervisor

	// Services
	AuthService     *auth.Service
	CatalogService  *catalog.Service
	Ports           *ports.Allocator
	LobbyController *lobby.Controller
	Dispatcher      *server.Dispatcher
	Events          *events.Hub

	Logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string

	// Zero values fall back to each package's DefaultConfig
	AuthConfig    auth.Config
	CatalogConfig catalog.Config
	PortsConfig   ports.Config
	ProcessConfig process.Config
}

// ConfigFrom translates the server configuration into factory settings
func ConfigFrom(cfg *config.Config, logger *slog.Logger) Config {
	fc := Config{
		Logger:      logger,
		StorageType: cfg.StorageType,
		SQLitePath:  cfg.SQLitePath,
		AuthConfig: auth.Config{
			SessionDuration: cfg.SessionTTL,
			BcryptCost:      cfg.BcryptCost,
		},
		CatalogConfig: catalog.Config{GamesDir: cfg.GamesDir},
		PortsConfig: ports.Config{
			Start: cfg.PortRangeStart,
			Size:  cfg.PortRangeSize,
			Probe: cfg.ProbePorts,
		},
		ProcessConfig: process.DefaultConfig(),
	}
	fc.ProcessConfig.Interpreter = cfg.GameInterpreter
	if strings.EqualFold(cfg.GameInterpreter, "none") {
		fc.ProcessConfig.Interpreter = ""
	}
	fc.ProcessConfig.TerminateGrace = cfg.TerminateGrace
	fc.ProcessConfig.CaptureOutput = logger != nil && logger.Enabled(context.Background(), slog.LevelDebug)

	if cfg.StorageType == StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		fc.RedisConfig = &redisCfg
	}
	return fc
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	processCfg := cfg.ProcessConfig
	if processCfg == (process.Config{}) {
		processCfg = process.DefaultConfig()
	}
	supervisor := process.New(clk, processCfg, logger)

	app, err := newWithDependencies(store, clk, rnd, supervisor, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

func openStorage(cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		return sqlitestorage.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'sqlite'", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	supervisor Supervisor,
	cfg Config,
	logger *slog.Logger,
) (*App, error) {
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg.SessionDuration = auth.DefaultConfig().SessionDuration
	}
	portsCfg := cfg.PortsConfig
	if portsCfg == (ports.Config{}) {
		portsCfg = ports.DefaultConfig()
	}

	allocator, err := ports.New(portsCfg, logger)
	if err != nil {
		return nil, err
	}
	authService := auth.New(store, clk, rnd, authCfg, logger)
	catalogService := catalog.New(store, clk, cfg.CatalogConfig, logger)
	lobbyController := lobby.NewController(store, catalogService, allocator, supervisor, clk, rnd, logger)
	supervisor.OnExit(lobbyController.HandleProcessExit)
	eventHub := events.NewHub(logger)
	go eventHub.Run()
	lobbyController.SetEventSink(events.NewFeed(eventHub, logger))
	dispatcher := server.NewDispatcher(authService, catalogService, lobbyController, logger)

	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		Supervisor:      supervisor,
		AuthService:     authService,
		CatalogService:  catalogService,
		Ports:           allocator,
		LobbyController: lobbyController,
		Dispatcher:      dispatcher,
		Events:          eventHub,
		Logger:          logger,
	}, nil
}

// Recover clears state left behind by a previous run
func (a *App) Recover(ctx context.Context) error {
	return a.LobbyController.Recover(ctx)
}

// NewServer creates the TCP server for this App
func (a *App) NewServer(cfg server.Config) *server.Server {
	return server.New(a.Dispatcher, a.AuthService, cfg, a.Logger)
}

// NewStatusRouter creates the HTTP status router for this App
func (a *App) NewStatusRouter() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:          a.Logger,
		Clock:           a.Clock,
		AuthService:     a.AuthService,
		CatalogService:  a.CatalogService,
		LobbyController: a.LobbyController,
		Ports:           a.Ports,
		Events:          a.Events,
	})
}

// Close closes every room, stops any remaining game servers and
// closes storage
func (a *App) Close(ctx context.Context) error {
	a.LobbyController.Shutdown(ctx)
	a.Events.Close()
	return errors.Join(a.Supervisor.TerminateAll(), a.Storage.Close())
}
