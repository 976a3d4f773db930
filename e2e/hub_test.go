//go:build unix

package e2e_test

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamehub/internal/api"
	"github.com/mcoot/gamehub/internal/client"
	"github.com/mcoot/gamehub/internal/factory"
	"github.com/mcoot/gamehub/internal/services/auth"
	"github.com/mcoot/gamehub/internal/services/catalog"
	"github.com/mcoot/gamehub/internal/services/ports"
	"github.com/mcoot/gamehub/internal/services/process"
	"github.com/mcoot/gamehub/internal/server"
	"github.com/mcoot/gamehub/internal/testutil"
)

// gameScript records the port it was given, then idles until signalled
const gameScript = `#!/bin/sh
echo "$GAMEHUB_PORT" > port.txt
exec sleep 300
`

// testHub is a real hub: TCP server, status server and process supervisor
type testHub struct {
	app       *factory.App
	addr      string
	statusURL string
	portRange ports.Config
}

func startHub(t *testing.T) *testHub {
	t.Helper()

	portRange := ports.Config{Start: freePortBlock(t, 8), Size: 8, Probe: true}
	app, err := factory.New(factory.Config{
		Logger:        testutil.NopLogger(),
		AuthConfig:    auth.Config{SessionDuration: time.Hour, BcryptCost: bcrypt.MinCost},
		CatalogConfig: catalog.Config{GamesDir: t.TempDir()},
		PortsConfig:   portRange,
		ProcessConfig: process.Config{
			Interpreter:    "/bin/sh",
			TerminateGrace: 2 * time.Second,
			StartupGrace:   100 * time.Millisecond,
		},
	})
	require.NoError(t, err)

	tcp := app.NewServer(server.Config{
		Addr:         "127.0.0.1:0",
		IdleTimeout:  30 * time.Second,
		IOTimeout:    5 * time.Second,
		MaxFrameSize: 1 << 20,
	})
	require.NoError(t, tcp.Listen())

	statusCfg := api.DefaultServerConfig()
	statusCfg.Addr = "127.0.0.1:0"
	status := api.NewServer(app.NewStatusRouter(), statusCfg, app.Logger)
	require.NoError(t, status.Listen())

	tcpDone := make(chan error, 1)
	go func() { tcpDone <- tcp.Start() }()
	statusDone := make(chan error, 1)
	go func() { statusDone <- status.Start() }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, tcp.Shutdown(ctx))
		require.NoError(t, status.Shutdown(ctx))
		require.NoError(t, <-tcpDone)
		require.NoError(t, <-statusDone)
		require.NoError(t, app.Close(ctx))
	})

	hub := &testHub{
		app:       app,
		addr:      tcp.Addr(),
		statusURL: "http://" + status.Addr(),
		portRange: portRange,
	}
	waitForServer(t, hub.statusURL+"/api/v1/health")
	return hub
}

// freePortBlock finds n consecutive ports that are currently unbound
func freePortBlock(t *testing.T, n int) int {
	t.Helper()

	for attempt := 0; attempt < 20; attempt++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		start := ln.Addr().(*net.TCPAddr).Port
		_ = ln.Close()
		if start+n > 65535 {
			continue
		}

		free := true
		for p := start; p < start+n && free; p++ {
			l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
			if err != nil {
				free = false
				continue
			}
			_ = l.Close()
		}
		if free {
			return start
		}
	}
	t.Fatal("no free port block found")
	return 0
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

func (h *testHub) dial(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.Dial(context.Background(), h.addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// signUp registers an account and returns a logged-in connection for it
func (h *testHub) signUp(t *testing.T, name, password, role string) *client.Client {
	t.Helper()
	c := h.dial(t)
	ctx := context.Background()
	_, err := c.Register(ctx, name, password, role)
	require.NoError(t, err)
	_, err = c.Login(ctx, name, password)
	require.NoError(t, err)
	return c
}

// installGame writes the game script where the catalog expects the files
func installGame(t *testing.T, filesRoot, entry string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filesRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(filesRoot, entry), []byte(gameScript), 0o755))
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}
