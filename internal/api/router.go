package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamehub/internal/api/events"
	"github.com/mcoot/gamehub/internal/api/handler"
	"github.com/mcoot/gamehub/internal/api/middleware"
	"github.com/mcoot/gamehub/internal/dependencies/clock"
	"github.com/mcoot/gamehub/internal/services/auth"
	"github.com/mcoot/gamehub/internal/services/catalog"
	"github.com/mcoot/gamehub/internal/services/lobby"
	"github.com/mcoot/gamehub/internal/services/ports"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	Clock           clock.Clock
	AuthService     *auth.Service
	CatalogService  *catalog.Service
	LobbyController *lobby.Controller
	Ports           *ports.Allocator
	// Events enables the room event stream when set
	Events *events.Hub
}

// NewRouter creates the read-only status router
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handler.NotFound)

	statusHandler := handler.NewStatusHandler(
		cfg.AuthService, cfg.CatalogService, cfg.LobbyController, cfg.Ports, cfg.Clock, cfg.Logger,
	)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	api.HandleFunc("/health", statusHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/rooms", statusHandler.ListRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}", statusHandler.GetRoom).Methods(http.MethodGet)
	api.HandleFunc("/games", statusHandler.ListGames).Methods(http.MethodGet)
	api.HandleFunc("/ports", statusHandler.Ports).Methods(http.MethodGet)
	if cfg.Events != nil {
		api.HandleFunc("/events", handler.NewEventsHandler(cfg.Events).Stream).Methods(http.MethodGet)
	}

	return r
}
