package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamehub/internal/api/apierr"
	"github.com/mcoot/gamehub/internal/api/response"
	"github.com/mcoot/gamehub/internal/factory"
	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/protocol"
	"github.com/mcoot/gamehub/internal/services/catalog"
	"github.com/mcoot/gamehub/internal/services/lobby"
)

// testServer wraps a status router over a test app
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
	game    *model.GameListing
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	ctx := context.Background()

	_, err := app.AuthService.Register(ctx, "dev", "pw", model.RoleDeveloper)
	require.NoError(t, err)
	for _, name := range []string{"alice", "bob"} {
		_, err = app.AuthService.Register(ctx, name, "pw", model.RolePlayer)
		require.NoError(t, err)
	}
	game, err := app.CatalogService.Publish(ctx, "dev", catalog.PublishInput{Name: "Gomoku", Version: "1.0.0", ServerEntry: "server.py"})
	require.NoError(t, err)
	for _, name := range []string{"alice", "bob"} {
		_, err = app.CatalogService.RecordDownload(ctx, name, game.ID)
		require.NoError(t, err)
	}

	return &testServer{handler: app.NewStatusRouter(), app: app, game: game}
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// playingRoom creates a room hosted by alice with bob in it, started
func (ts *testServer) playingRoom(t *testing.T) *model.Room {
	t.Helper()
	ctx := context.Background()
	c := ts.app.LobbyController

	room, err := c.CreateRoom(ctx, "alice", lobby.CreateInput{GameID: ts.game.ID, Capacity: 2})
	require.NoError(t, err)
	_, err = c.JoinRoom(ctx, "bob", room.ID)
	require.NoError(t, err)
	_, err = c.SetReady(ctx, "alice", room.ID, true)
	require.NoError(t, err)
	_, err = c.SetReady(ctx, "bob", room.ID, true)
	require.NoError(t, err)
	room, err = c.StartGame(ctx, "alice", room.ID)
	require.NoError(t, err)
	return room
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.playingRoom(t)
	ts.app.MockClock.Advance(90 * time.Second)

	rec := ts.get("/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	health := decode[response.Health](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, int64(90), health.UptimeSeconds)
	assert.Equal(t, 1, health.Rooms)
	assert.Equal(t, 1, health.PlayingRooms)
	assert.Equal(t, factory.TestPortRange.Size-1, health.PortsAvailable)
}

func TestListRooms(t *testing.T) {
	ts := newTestServer(t)
	playing := ts.playingRoom(t)

	_, err := ts.app.AuthService.Register(context.Background(), "carol", "pw", model.RolePlayer)
	require.NoError(t, err)
	_, err = ts.app.CatalogService.RecordDownload(context.Background(), "carol", ts.game.ID)
	require.NoError(t, err)
	open, err := ts.app.LobbyController.CreateRoom(context.Background(), "carol", lobby.CreateInput{GameID: ts.game.ID, Capacity: 4})
	require.NoError(t, err)

	tests := []struct {
		name  string
		path  string
		rooms []model.RoomID
	}{
		{"all rooms", "/api/v1/rooms", []model.RoomID{playing.ID, open.ID}},
		{"playing only", "/api/v1/rooms?state=PLAYING", []model.RoomID{playing.ID}},
		{"state is case-insensitive", "/api/v1/rooms?state=open", []model.RoomID{open.ID}},
		{"no matches", "/api/v1/rooms?state=READY-CHECK", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.get(tt.path)
			require.Equal(t, http.StatusOK, rec.Code)

			rooms := decode[[]protocol.Room](t, rec)
			ids := make([]model.RoomID, 0, len(rooms))
			for _, r := range rooms {
				ids = append(ids, model.RoomID(r.ID))
			}
			if tt.rooms == nil {
				assert.Empty(t, ids)
			} else {
				assert.ElementsMatch(t, tt.rooms, ids)
			}
		})
	}
}

func TestGetRoom(t *testing.T) {
	ts := newTestServer(t)
	room := ts.playingRoom(t)

	t.Run("found", func(t *testing.T) {
		rec := ts.get("/api/v1/rooms/" + string(room.ID))
		require.Equal(t, http.StatusOK, rec.Code)

		got := decode[protocol.Room](t, rec)
		assert.Equal(t, string(room.ID), got.ID)
		assert.Equal(t, string(model.RoomStatePlaying), got.State)
		require.NotNil(t, got.Port)
		assert.Equal(t, *room.AssignedPort, *got.Port)
	})

	t.Run("not found", func(t *testing.T) {
		rec := ts.get("/api/v1/rooms/ZZZZZZ")
		require.Equal(t, http.StatusNotFound, rec.Code)

		body := decode[apierr.ErrorResponse](t, rec)
		assert.Equal(t, apierr.CodeRoomNotFound, body.Error.Code)
	})
}

func TestListGames(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.app.CatalogService.SubmitReview(context.Background(), "alice", ts.game.ID, 4, "good")
	require.NoError(t, err)
	_, err = ts.app.CatalogService.SubmitReview(context.Background(), "bob", ts.game.ID, 5, "")
	require.NoError(t, err)

	rec := ts.get("/api/v1/games")
	require.Equal(t, http.StatusOK, rec.Code)

	games := decode[[]protocol.Game](t, rec)
	require.Len(t, games, 1)
	assert.Equal(t, "Gomoku", games[0].Name)
	assert.Equal(t, 2, games[0].DownloadCount)
	assert.Equal(t, 2, games[0].ReviewCount)
	assert.InDelta(t, 4.5, games[0].AverageRating, 0.001)
}

func TestPorts(t *testing.T) {
	ts := newTestServer(t)
	room := ts.playingRoom(t)

	rec := ts.get("/api/v1/ports")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[response.Ports](t, rec)
	assert.Equal(t, factory.TestPortRange.Start, got.Start)
	assert.Equal(t, factory.TestPortRange.Size, got.Size)
	require.Len(t, got.Held, 1)
	assert.Equal(t, *room.AssignedPort, got.Held[0].Port)
	assert.Contains(t, got.Held[0].Holder, string(room.ID))
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/api/v1/nothing-here")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decode[apierr.ErrorResponse](t, rec)
	assert.Equal(t, apierr.CodeNotFound, body.Error.Code)
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	t.Cleanup(func() {
		ts.app.Events.Close()
		srv.Close()
	})

	ts.app.MockRandom.QueueString("ROOM01")

	resp, err := http.Get(srv.URL + "/api/v1/events?room=room01")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	next := func() string {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended")
			return line
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
			return ""
		}
	}
	// nextEvent returns the name and data of the next room event
	nextEvent := func() (string, protocol.Event) {
		var name string
		for {
			line := next()
			if after, ok := strings.CutPrefix(line, "event: "); ok {
				name = after
				continue
			}
			if after, ok := strings.CutPrefix(line, "data: "); ok && name != "" && name != "connected" {
				var ev protocol.Event
				require.NoError(t, json.Unmarshal([]byte(after), &ev))
				return name, ev
			}
		}
	}

	// Wait for the stream to be registered before producing events
	require.Equal(t, "event: connected", next())
	require.Equal(t, `data: {"status":"connected"}`, next())
	require.Equal(t, "", next())

	ctx := context.Background()
	room, err := ts.app.LobbyController.CreateRoom(ctx, "alice", lobby.CreateInput{GameID: ts.game.ID, Capacity: 2})
	require.NoError(t, err)
	require.Equal(t, model.RoomID("ROOM01"), room.ID)
	_, err = ts.app.LobbyController.JoinRoom(ctx, "bob", room.ID)
	require.NoError(t, err)
	require.NoError(t, ts.app.LobbyController.CloseRoom(ctx, "alice", room.ID))

	name, ev := nextEvent()
	assert.Equal(t, "room_created", name)
	assert.Equal(t, "ROOM01", ev.RoomID)
	require.NotNil(t, ev.Room)
	assert.Equal(t, "OPEN", ev.Room.State)

	name, ev = nextEvent()
	assert.Equal(t, "member_joined", name)
	assert.Equal(t, "bob", ev.Account)

	name, ev = nextEvent()
	assert.Equal(t, "room_closed", name)
	assert.Equal(t, "closed by host", ev.Reason)
	assert.Nil(t, ev.Room)
}
