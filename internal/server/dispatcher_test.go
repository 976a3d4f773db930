package server

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamehub/internal/dependencies/mocks"
	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/protocol"
	"github.com/mcoot/gamehub/internal/services/auth"
	"github.com/mcoot/gamehub/internal/services/catalog"
	"github.com/mcoot/gamehub/internal/services/lobby"
	"github.com/mcoot/gamehub/internal/services/ports"
	"github.com/mcoot/gamehub/internal/storage/memory"
	"github.com/mcoot/gamehub/internal/testutil"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	logger := testutil.NopLogger()
	store := memory.New()
	clock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	random := mocks.NewMockRandom()
	authService := auth.New(store, clock, random, auth.Config{SessionDuration: time.Hour, BcryptCost: bcrypt.MinCost}, logger)
	catalogService := catalog.New(store, clock, catalog.Config{GamesDir: t.TempDir()}, logger)
	allocator, err := ports.New(ports.Config{Start: 22000, Size: 2}, logger)
	require.NoError(t, err)
	controller := lobby.NewController(store, catalogService, allocator, mocks.NewMockSupervisor(), clock, random, logger)
	return NewDispatcher(authService, catalogService, controller, logger)
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	d := newTestDispatcher(t)
	d.routes["explode"] = route{public, func(context.Context, *Call) (any, error) {
		panic("kaboom")
	}}

	resp := d.Dispatch(context.Background(), "c1", []byte(`{"action":"explode"}`))
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, protocol.KindInternal, resp.ErrorKind)
	assert.Equal(t, protocol.ClassInternal, resp.ErrorClass)

	resp = d.Dispatch(context.Background(), "c1", []byte(`{"action":"ping"}`))
	assert.Equal(t, protocol.StatusOK, resp.Status)
}

func TestDispatchHidesInternalErrors(t *testing.T) {
	d := newTestDispatcher(t)
	d.routes["leak"] = route{public, func(context.Context, *Call) (any, error) {
		return nil, errors.New("dial tcp 10.0.0.3:6379: connection refused")
	}}

	resp := d.Dispatch(context.Background(), "c1", []byte(`{"action":"leak"}`))
	assert.Equal(t, protocol.KindInternal, resp.ErrorKind)
	assert.Equal(t, "Internal server error", resp.Message)
}

func TestDispatchUnencodableData(t *testing.T) {
	d := newTestDispatcher(t)
	d.routes["chan"] = route{public, func(context.Context, *Call) (any, error) {
		return make(chan int), nil
	}}

	resp := d.Dispatch(context.Background(), "c1", []byte(`{"action":"chan"}`))
	assert.Equal(t, protocol.KindInternal, resp.ErrorKind)
}

func TestDispatchUnknownTokenOnPrivilegedAction(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), "c1", []byte(`{"action":"create_room","token":"forged"}`))
	assert.Equal(t, protocol.KindInvalidSession, resp.ErrorKind)
	assert.Equal(t, protocol.ClassAuth, resp.ErrorClass)
}

func TestToWireError(t *testing.T) {
	tests := []struct {
		err   error
		kind  string
		class string
	}{
		{model.ErrInvalidCredentials, protocol.KindInvalidCredentials, protocol.ClassAuth},
		{model.ErrAccountExists, protocol.KindAccountExists, protocol.ClassAuth},
		{fmt.Errorf("%w: player account required", model.ErrPermissionDenied), protocol.KindPermissionDenied, protocol.ClassAuth},
		{model.ErrAlreadyHosting, protocol.KindAlreadyHosting, protocol.ClassState},
		{model.ErrAlreadyInRoom, protocol.KindAlreadyInRoom, protocol.ClassState},
		{model.ErrRoomFull, protocol.KindRoomFull, protocol.ClassState},
		{model.ErrNotAllReady, protocol.KindNotAllReady, protocol.ClassState},
		{fmt.Errorf("%w: room is PLAYING", model.ErrInvalidState), protocol.KindInvalidState, protocol.ClassState},
		{model.ErrRoomNotFound, protocol.KindRoomNotFound, protocol.ClassState},
		{model.ErrNoPortAvailable, protocol.KindNoPortAvailable, protocol.ClassResource},
		{fmt.Errorf("%w: exit status 1", model.ErrLaunchFailure), protocol.KindLaunchFailure, protocol.ClassResource},
		{model.ErrInvalidCapacity, protocol.KindInvalidCapacity, protocol.ClassRequest},
		{protocol.ErrMalformed, protocol.KindMalformedRequest, protocol.ClassRequest},
		{errors.New("disk on fire"), protocol.KindInternal, protocol.ClassInternal},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			we := toWireError(tt.err)
			assert.Equal(t, tt.kind, we.kind)
			assert.Equal(t, tt.class, we.class)
			assert.NotEmpty(t, we.message)
		})
	}
}

func TestToWireErrorKeepsDetail(t *testing.T) {
	we := toWireError(fmt.Errorf("%w: room is PLAYING", model.ErrInvalidState))
	assert.Contains(t, we.message, "room is PLAYING")
}
