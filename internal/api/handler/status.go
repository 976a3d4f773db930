package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamehub/internal/api/response"
	"github.com/mcoot/gamehub/internal/dependencies/clock"
	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/protocol"
	"github.com/mcoot/gamehub/internal/services/auth"
	"github.com/mcoot/gamehub/internal/services/catalog"
	"github.com/mcoot/gamehub/internal/services/lobby"
	"github.com/mcoot/gamehub/internal/services/ports"
)

// StatusHandler serves the read-only view of the hub
type StatusHandler struct {
	auth      *auth.Service
	catalog   *catalog.Service
	lobby     *lobby.Controller
	ports     *ports.Allocator
	clock     clock.Clock
	startedAt time.Time
	logger    *slog.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(
	authService *auth.Service,
	catalogService *catalog.Service,
	lobbyController *lobby.Controller,
	allocator *ports.Allocator,
	clock clock.Clock,
	logger *slog.Logger,
) *StatusHandler {
	return &StatusHandler{
		auth:      authService,
		catalog:   catalogService,
		lobby:     lobbyController,
		ports:     allocator,
		clock:     clock,
		startedAt: clock.Now(),
		logger:    logger,
	}
}

// Health handles GET /api/v1/health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	rooms := h.lobby.ListRooms(r.Context())
	playing := 0
	for _, room := range rooms {
		if room.State == model.RoomStatePlaying {
			playing++
		}
	}
	response.JSON(w, http.StatusOK, response.Health{
		Status:         "ok",
		UptimeSeconds:  int64(clock.Since(h.clock, h.startedAt) / time.Second),
		Sessions:       h.auth.ActiveSessions(),
		Rooms:          len(rooms),
		PlayingRooms:   playing,
		PortsAvailable: h.ports.Stats().Free,
	})
}

// ListRooms handles GET /api/v1/rooms
func (h *StatusHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.lobby.ListRooms(r.Context())
	if state := strings.ToUpper(r.URL.Query().Get("state")); state != "" {
		filtered := rooms[:0]
		for _, room := range rooms {
			if string(room.State) == state {
				filtered = append(filtered, room)
			}
		}
		rooms = filtered
	}
	response.JSON(w, http.StatusOK, protocol.RoomsFromModel(rooms))
}

// GetRoom handles GET /api/v1/rooms/{id}
func (h *StatusHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id := model.RoomID(strings.ToUpper(mux.Vars(r)["id"]))
	room, err := h.lobby.GetRoom(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, protocol.RoomFromModel(room))
}

// ListGames handles GET /api/v1/games
func (h *StatusHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list games", slog.String("error", err.Error()))
		WriteError(w, err)
		return
	}
	games := make([]protocol.Game, 0, len(summaries))
	for _, s := range summaries {
		g := protocol.GameFromModel(s.Listing)
		g.AverageRating = s.AverageRating
		g.ReviewCount = s.ReviewCount
		games = append(games, g)
	}
	response.JSON(w, http.StatusOK, games)
}

// Ports handles GET /api/v1/ports
func (h *StatusHandler) Ports(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.PortsFromStats(h.ports.Stats()))
}
