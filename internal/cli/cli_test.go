package cli

import (
	"bytes"
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
	"github.com/mcoot/gamehub/internal/client"
	"github.com/mcoot/gamehub/internal/config"
	"github.com/mcoot/gamehub/internal/factory"
	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/protocol"
	"github.com/mcoot/gamehub/internal/server"
)

func startHub(t *testing.T) (*factory.TestApp, string) {
	t.Helper()

	app := factory.NewTestApp()
	srv := app.NewServer(server.Config{
		Addr:         "127.0.0.1:0",
		IdleTimeout:  5 * time.Second,
		IOTimeout:    5 * time.Second,
		MaxFrameSize: protocol.DefaultMaxFrameSize,
	})
	require.NoError(t, srv.Listen())
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
		assert.NoError(t, <-done)
	})
	return app, srv.Addr()
}

func TestReadFields(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		stdin   string
		wantErr bool
	}{
		{name: "inline object", arg: `{"room_id":"ABCDEF"}`},
		{name: "object from stdin", arg: "-", stdin: `{"ready":true}`},
		{name: "array rejected", arg: `[1,2]`, wantErr: true},
		{name: "not json", arg: `room_id=ABCDEF`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := readFields(tt.arg, strings.NewReader(tt.stdin))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, json.Valid(raw))
		})
	}
}

func TestRunShell(t *testing.T) {
	app, addr := startHub(t)
	cfg = DefaultConfig()

	ctx := context.Background()
	_, err := app.AuthService.Register(ctx, "dev", "pw", model.RoleDeveloper)
	require.NoError(t, err)
	_, err = app.AuthService.Register(ctx, "alice", "pw", model.RolePlayer)
	require.NoError(t, err)

	c, err := client.Dial(ctx, addr)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	input := strings.Join([]string{
		"# comment lines are skipped",
		`login {"name":"dev","password":"pw"}`,
		`publish_game {"name":"Gomoku","version":"1.0.0","server_entry":"server.py"}`,
		"",
		"list_games",
		"logout",
		"whoami",
		"teleport",
		"quit",
		"ping",
	}, "\n")

	var buf bytes.Buffer
	require.NoError(t, runShell(ctx, c, strings.NewReader(input), NewOutput("json", &buf)))

	dec := json.NewDecoder(&buf)
	var responses []protocol.Response
	for dec.More() {
		var resp protocol.Response
		require.NoError(t, dec.Decode(&resp))
		responses = append(responses, resp)
	}

	// login, publish, list, logout, whoami, teleport; nothing after quit
	require.Len(t, responses, 6)
	assert.Equal(t, protocol.StatusOK, responses[0].Status)
	assert.Equal(t, protocol.StatusOK, responses[1].Status)

	var games []protocol.Game
	require.NoError(t, responses[2].Decode(&games))
	require.Len(t, games, 1)
	assert.Equal(t, "Gomoku", games[0].Name)

	assert.Equal(t, protocol.StatusOK, responses[3].Status)
	assert.Equal(t, protocol.KindInvalidSession, responses[4].ErrorKind)
	assert.Empty(t, c.Token())
	assert.Equal(t, protocol.KindUnknownAction, responses[5].ErrorKind)
}

func TestRunShellRejectsBadFields(t *testing.T) {
	_, addr := startHub(t)
	cfg = DefaultConfig()

	c, err := client.Dial(context.Background(), addr)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	var buf bytes.Buffer
	err = runShell(context.Background(), c, strings.NewReader("join_room ABCDEF\n"), NewOutput("json", &buf))
	assert.ErrorContains(t, err, "join_room")
}

func TestPrintResponseText(t *testing.T) {
	port := 40001
	room := protocol.Room{
		ID:          "ABCDEF",
		Name:        "alice's Gomoku",
		GameID:      "g1",
		GameVersion: "1.0.0",
		Host:        "alice",
		Members:     []string{"alice", "bob"},
		Ready:       map[string]bool{"bob": true},
		Capacity:    2,
		State:       string(model.RoomStatePlaying),
		Port:        &port,
	}
	ok, err := protocol.OK(room)
	require.NoError(t, err)

	var buf bytes.Buffer
	out := NewOutput("text", &buf)
	out.PrintResponse(protocol.ActionStartGame, ok)

	text := buf.String()
	assert.Contains(t, text, "Room: ABCDEF")
	assert.Contains(t, text, "State: PLAYING")
	assert.Contains(t, text, "Game Server Port: 40001")
	assert.Contains(t, text, "alice [host]")
	assert.Contains(t, text, "bob [ready]")

	buf.Reset()
	out.PrintResponse(protocol.ActionStartGame, protocol.Fail(protocol.KindNotAllReady, protocol.ClassState, "not everyone is ready"))
	assert.Equal(t, "Error: NotAllReady (StateError): not everyone is ready\n", buf.String())
}

func TestServeFlagsOverrideEnvironment(t *testing.T) {
	srvCfg, err := config.LoadFrom(map[string]string{
		"GAMEHUB_LISTEN_ADDR": ":7000",
		"GAMEHUB_LOG_LEVEL":   "warn",
	})
	require.NoError(t, err)

	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--listen", ":9000", "--port-count", "5", "--status", "off"}))

	var flags serveFlags
	flags.listenAddr, _ = cmd.Flags().GetString("listen")
	flags.portSize, _ = cmd.Flags().GetInt("port-count")
	flags.statusAddr, _ = cmd.Flags().GetString("status")
	flags.apply(cmd, srvCfg)

	assert.Equal(t, ":9000", srvCfg.ListenAddr)
	assert.Equal(t, 5, srvCfg.PortRangeSize)
	assert.False(t, srvCfg.StatusEnabled())
	assert.Equal(t, "warn", srvCfg.LogLevel)
}

func TestStatusClient(t *testing.T) {
	app := factory.NewTestApp()
	ts := httptest.NewServer(app.NewStatusRouter())
	t.Cleanup(ts.Close)

	c := NewStatusClient(ts.URL+"/", time.Second)

	var ports response.Ports
	require.NoError(t, c.Get(context.Background(), "/api/v1/ports", &ports))
	assert.Equal(t, factory.TestPortRange.Size, ports.Size)

	err := c.Get(context.Background(), "/api/v1/rooms/NOPE99", nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, apierr.CodeRoomNotFound, statusErr.Code)
}
