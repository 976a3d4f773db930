package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mcoot/gamehub/internal/dependencies/clock"
	"github.com/mcoot/gamehub/internal/dependencies/random"
	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/services/process"
	"github.com/mcoot/gamehub/internal/storage"
)

const (
	// RoomIDLength is the length of generated room IDs
	RoomIDLength = 6
	// RoomIDAlphabet is the characters used in room IDs (avoid confusing chars)
	RoomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Catalog checks a player may host a game
type Catalog interface {
	CheckPlayable(ctx context.Context, account string, id model.GameID) (*model.GameListing, error)
}

// PortPool hands out exclusive ports for game servers
type PortPool interface {
	Acquire(holder string) (int, error)
	Release(port int) bool
}

// Supervisor runs game server processes
type Supervisor interface {
	Spawn(ctx context.Context, spec process.LaunchSpec) (model.ProcessHandle, error)
	IsAlive(handle model.ProcessHandle) bool
	Terminate(handle model.ProcessHandle) error
}

// EventSink receives room events. Publish must not block.
type EventSink interface {
	Publish(event model.Event)
}

// CreateInput describes a new room
type CreateInput struct {
	GameID   model.GameID
	Capacity int
	Name     string
}

// LeaveResult reports what leaving did to the room
type LeaveResult struct {
	Room   *model.Room // snapshot after the leave
	Closed bool        // the host left and the room is gone
}

// entry is one live room. op serializes operations on the room and is
// held across slow work such as spawning, so it is always taken before
// Controller.mu and never while holding it.
type entry struct {
	op     sync.Mutex
	room   *model.Room // guarded by Controller.mu
	closed bool        // guarded by Controller.mu
}

// Controller is the room state machine. It owns the table of live rooms
// and the account indexes that enforce one hosted room and one joined
// room per account.
type Controller struct {
	storage    storage.Storage
	catalog    Catalog
	ports      PortPool
	supervisor Supervisor
	clock      clock.Clock
	random     random.Random
	logger     *slog.Logger
	events     EventSink

	mu       sync.Mutex
	rooms    map[model.RoomID]*entry
	hostOf   map[string]model.RoomID
	memberOf map[string]model.RoomID
}

// NewController creates a new lobby Controller
func NewController(
	storage storage.Storage,
	catalog Catalog,
	ports PortPool,
	supervisor Supervisor,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:    storage,
		catalog:    catalog,
		ports:      ports,
		supervisor: supervisor,
		clock:      clock,
		random:     random,
		logger:     logger.With(slog.String("component", "lobby")),
		rooms:      make(map[model.RoomID]*entry),
		hostOf:     make(map[string]model.RoomID),
		memberOf:   make(map[string]model.RoomID),
	}
}

// SetEventSink makes the controller report every room change to sink
func (c *Controller) SetEventSink(sink EventSink) {
	c.events = sink
}

// Recover drops room records left behind by a previous run. Their game
// servers and sessions died with that process.
func (c *Controller) Recover(ctx context.Context) error {
	stale, err := c.storage.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list persisted rooms: %w", err)
	}
	for _, room := range stale {
		if err := c.storage.DeleteRoom(ctx, room.ID); err != nil {
			return fmt.Errorf("delete stale room %s: %w", room.ID, err)
		}
	}
	if len(stale) > 0 {
		c.logger.Info("discarded stale rooms", slog.Int("count", len(stale)))
	}
	return nil
}

// CreateRoom opens a room hosted by host, who must hold the current
// version of the game
func (c *Controller) CreateRoom(ctx context.Context, host string, in CreateInput) (*model.Room, error) {
	if in.Capacity < model.MinRoomCapacity || in.Capacity > model.MaxRoomCapacity {
		return nil, fmt.Errorf("%w: must be between %d and %d",
			model.ErrInvalidCapacity, model.MinRoomCapacity, model.MaxRoomCapacity)
	}

	// Cheap rejection before the catalog round trip; rechecked below
	c.mu.Lock()
	err := c.checkFreeLocked(host)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	game, err := c.catalog.CheckPlayable(ctx, host, in.GameID)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = host + "'s " + game.Name
	}
	room := &model.Room{
		Name:        name,
		GameID:      game.ID,
		GameVersion: game.Version,
		Host:        host,
		Members:     []string{host},
		Ready:       map[string]bool{host: false},
		Capacity:    in.Capacity,
		State:       model.RoomStateOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e := &entry{room: room}
	e.op.Lock()
	defer e.op.Unlock()

	c.mu.Lock()
	if err := c.checkFreeLocked(host); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	room.ID = c.newRoomIDLocked()
	c.rooms[room.ID] = e
	c.hostOf[host] = room.ID
	c.memberOf[host] = room.ID
	snapshot := room.Clone()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	c.emit(model.EventRoomCreated, room.ID, host, snapshot, "")
	c.logger.Info("room created",
		slog.String("room_id", string(room.ID)),
		slog.String("host", host),
		slog.String("game_id", string(game.ID)),
	)
	return snapshot, nil
}

// GetRoom returns a snapshot of one live room
func (c *Controller) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return e.room.Clone(), nil
}

// ListRooms returns a point-in-time snapshot of every live room,
// oldest first
func (c *Controller) ListRooms(ctx context.Context) []*model.Room {
	c.mu.Lock()
	rooms := make([]*model.Room, 0, len(c.rooms))
	for _, e := range c.rooms {
		rooms = append(rooms, e.room.Clone())
	}
	c.mu.Unlock()

	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms
}

// RoomOf returns the room account currently belongs to, if any
func (c *Controller) RoomOf(account string) (model.RoomID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.memberOf[account]
	return id, ok
}

// JoinRoom adds account to a room that is not playing and has space
func (c *Controller) JoinRoom(ctx context.Context, account string, id model.RoomID) (*model.Room, error) {
	e, unlock, err := c.lockRoom(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c.mu.Lock()
	room := e.room
	if _, ok := c.memberOf[account]; ok {
		c.mu.Unlock()
		return nil, model.ErrAlreadyInRoom
	}
	if room.State != model.RoomStateOpen && room.State != model.RoomStateReadyCheck {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: room is %s", model.ErrInvalidState, room.State)
	}
	if room.IsFull() {
		c.mu.Unlock()
		return nil, model.ErrRoomFull
	}

	room.Members = append(room.Members, account)
	room.ClearReady()
	if len(room.Members) >= 2 {
		room.State = model.RoomStateReadyCheck
	}
	room.UpdatedAt = c.clock.Now()
	c.memberOf[account] = id
	snapshot := room.Clone()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	c.emit(model.EventMemberJoined, id, account, snapshot, "")
	c.logger.Info("room joined", slog.String("room_id", string(id)), slog.String("account", account))
	return snapshot, nil
}

// LeaveRoom removes account from a room. The host leaving closes it.
func (c *Controller) LeaveRoom(ctx context.Context, account string, id model.RoomID) (*LeaveResult, error) {
	e, unlock, err := c.lockRoom(id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return c.leaveHeld(ctx, e, account)
}

func (c *Controller) leaveHeld(ctx context.Context, e *entry, account string) (*LeaveResult, error) {
	c.mu.Lock()
	room := e.room
	if !room.IsMember(account) {
		c.mu.Unlock()
		return nil, model.ErrNotInRoom
	}
	if room.Host == account {
		c.mu.Unlock()
		c.closeHeld(ctx, e, account, "host left")
		return &LeaveResult{Closed: true}, nil
	}

	room.RemoveMember(account)
	delete(c.memberOf, account)
	if room.State != model.RoomStatePlaying {
		room.ClearReady()
		if len(room.Members) < 2 {
			room.State = model.RoomStateOpen
		}
	}
	room.UpdatedAt = c.clock.Now()
	snapshot := room.Clone()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	c.emit(model.EventMemberLeft, room.ID, account, snapshot, "")
	c.logger.Info("room left", slog.String("room_id", string(room.ID)), slog.String("account", account))
	return &LeaveResult{Room: snapshot}, nil
}

// SetReady records a member's ready flag
func (c *Controller) SetReady(ctx context.Context, account string, id model.RoomID, ready bool) (*model.Room, error) {
	e, unlock, err := c.lockRoom(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c.mu.Lock()
	room := e.room
	if !room.IsMember(account) {
		c.mu.Unlock()
		return nil, model.ErrNotInRoom
	}
	if room.State == model.RoomStatePlaying {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: room is %s", model.ErrInvalidState, room.State)
	}
	room.Ready[account] = ready
	room.UpdatedAt = c.clock.Now()
	snapshot := room.Clone()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	c.emit(model.EventReadyChanged, id, account, snapshot, "")
	return snapshot, nil
}

// StartGame launches the game server for a room whose members are all
// ready. Only the host may start. On any failure the room is left as
// it was and no port stays reserved.
func (c *Controller) StartGame(ctx context.Context, account string, id model.RoomID) (*model.Room, error) {
	e, unlock, err := c.lockRoom(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c.mu.Lock()
	room := e.room
	if room.Host != account {
		c.mu.Unlock()
		return nil, model.ErrNotHost
	}
	if room.State != model.RoomStateReadyCheck {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: room is %s", model.ErrInvalidState, room.State)
	}
	if !room.AllReady() {
		c.mu.Unlock()
		return nil, model.ErrNotAllReady
	}
	gameID := room.GameID
	c.mu.Unlock()

	// The catalog may have moved on since the room was created
	game, err := c.catalog.CheckPlayable(ctx, account, gameID)
	if err != nil {
		return nil, err
	}

	port, err := c.ports.Acquire(portHolder(id))
	if err != nil {
		return nil, err
	}

	// Spawn runs with only this room's op lock held
	handle, err := c.supervisor.Spawn(ctx, process.LaunchSpec{
		RoomID:    id,
		GameID:    game.ID,
		FilesRoot: game.FilesRoot,
		Entry:     game.ServerEntry,
		Port:      port,
	})
	if err != nil {
		c.ports.Release(port)
		c.logger.Warn("game launch failed",
			slog.String("room_id", string(id)),
			slog.Int("port", port),
			slog.String("error", err.Error()),
		)
		if !errors.Is(err, model.ErrLaunchFailure) {
			err = fmt.Errorf("%w: %w", model.ErrLaunchFailure, err)
		}
		return nil, err
	}

	c.mu.Lock()
	room.State = model.RoomStatePlaying
	room.AssignedPort = &port
	room.Process = &handle
	room.GameVersion = game.Version
	room.UpdatedAt = c.clock.Now()
	snapshot := room.Clone()
	c.mu.Unlock()

	c.persist(ctx, snapshot)
	c.emit(model.EventGameStarted, id, account, snapshot, "")
	c.logger.Info("game started",
		slog.String("room_id", string(id)),
		slog.Int("port", port),
		slog.Int("pid", handle.PID),
	)
	return snapshot, nil
}

// EndGame stops a running game and returns the room to the lobby.
// Any member may end it.
func (c *Controller) EndGame(ctx context.Context, account string, id model.RoomID) (*model.Room, error) {
	e, unlock, err := c.lockRoom(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c.mu.Lock()
	room := e.room
	if !room.IsMember(account) {
		c.mu.Unlock()
		return nil, model.ErrNotInRoom
	}
	if room.State != model.RoomStatePlaying {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: room is %s", model.ErrInvalidState, room.State)
	}
	handle := *room.Process
	c.mu.Unlock()

	c.terminate(id, handle)
	snapshot := c.resetHeld(e)
	c.persist(ctx, snapshot)
	c.emit(model.EventGameEnded, id, account, snapshot, "ended by member")
	c.logger.Info("game ended", slog.String("room_id", string(id)), slog.String("by", account))
	return snapshot, nil
}

// CloseRoom removes a room for good. Only the host may close it.
func (c *Controller) CloseRoom(ctx context.Context, account string, id model.RoomID) error {
	e, unlock, err := c.lockRoom(id)
	if err != nil {
		return err
	}
	defer unlock()

	c.mu.Lock()
	isHost := e.room.Host == account
	c.mu.Unlock()
	if !isHost {
		return model.ErrNotHost
	}

	c.closeHeld(ctx, e, account, "closed by host")
	return nil
}

// HandleProcessExit returns a room to the lobby when its game server
// exits on its own
func (c *Controller) HandleProcessExit(exit process.Exit) {
	e, unlock, err := c.lockRoom(exit.RoomID)
	if err != nil {
		return
	}
	defer unlock()

	c.mu.Lock()
	current := e.room.Process != nil && e.room.Process.ID == exit.Handle.ID
	c.mu.Unlock()
	if !current {
		return
	}

	snapshot := c.resetHeld(e)
	c.persist(context.Background(), snapshot)
	c.emit(model.EventGameEnded, exit.RoomID, "", snapshot, "game server exited")
	attrs := []any{slog.String("room_id", string(exit.RoomID)), slog.Int("pid", exit.Handle.PID)}
	if exit.Err != nil {
		attrs = append(attrs, slog.String("status", exit.Err.Error()))
	}
	c.logger.Info("game server exited, room back in lobby", attrs...)
}

// ReleaseAccount applies the disconnect policy for account: a room
// that is not playing loses the account as if it had left, which
// closes the room when the account is its host. Playing rooms are left
// alone because the game server may outlive the lobby connection.
func (c *Controller) ReleaseAccount(ctx context.Context, account string) {
	id, ok := c.RoomOf(account)
	if !ok {
		return
	}
	e, unlock, err := c.lockRoom(id)
	if err != nil {
		return
	}
	defer unlock()

	c.mu.Lock()
	playing := e.room.State == model.RoomStatePlaying
	c.mu.Unlock()
	if playing {
		return
	}
	if _, err := c.leaveHeld(ctx, e, account); err != nil && !errors.Is(err, model.ErrNotInRoom) {
		c.logger.Warn("disconnect cleanup failed",
			slog.String("room_id", string(id)),
			slog.String("account", account),
			slog.String("error", err.Error()),
		)
	}
}

// Shutdown closes every room, stopping game servers and returning ports
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	ids := make([]model.RoomID, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, unlock, err := c.lockRoom(id)
			if err != nil {
				return
			}
			defer unlock()
			c.closeHeld(ctx, e, "", "server shutdown")
		}()
	}
	wg.Wait()
}

// lockRoom looks up a live room and takes its op lock. The returned
// entry is guaranteed not to have been closed while waiting.
func (c *Controller) lockRoom(id model.RoomID) (*entry, func(), error) {
	c.mu.Lock()
	e, ok := c.rooms[id]
	c.mu.Unlock()
	if !ok {
		return nil, nil, model.ErrRoomNotFound
	}

	e.op.Lock()
	c.mu.Lock()
	closed := e.closed
	c.mu.Unlock()
	if closed {
		e.op.Unlock()
		return nil, nil, model.ErrRoomNotFound
	}
	return e, e.op.Unlock, nil
}

// closeHeld tears a room down. Caller holds e.op.
func (c *Controller) closeHeld(ctx context.Context, e *entry, account, reason string) {
	c.mu.Lock()
	room := e.room
	var handle *model.ProcessHandle
	if room.Process != nil {
		h := *room.Process
		handle = &h
	}
	c.mu.Unlock()

	if handle != nil {
		c.terminate(room.ID, *handle)
	}

	c.mu.Lock()
	if room.AssignedPort != nil {
		c.ports.Release(*room.AssignedPort)
	}
	room.State = model.RoomStateClosed
	room.AssignedPort = nil
	room.Process = nil
	e.closed = true
	delete(c.rooms, room.ID)
	if c.hostOf[room.Host] == room.ID {
		delete(c.hostOf, room.Host)
	}
	for _, m := range room.Members {
		if c.memberOf[m] == room.ID {
			delete(c.memberOf, m)
		}
	}
	c.mu.Unlock()

	if err := c.storage.DeleteRoom(ctx, room.ID); err != nil {
		c.logger.Warn("failed to delete room record", slog.String("room_id", string(room.ID)), slog.String("error", err.Error()))
	}
	c.emit(model.EventRoomClosed, room.ID, account, nil, reason)
	c.logger.Info("room closed", slog.String("room_id", string(room.ID)), slog.String("reason", reason))
}

// resetHeld takes a room out of PLAYING after its game server has
// stopped. Caller holds e.op.
func (c *Controller) resetHeld(e *entry) *model.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := e.room
	if room.AssignedPort != nil {
		c.ports.Release(*room.AssignedPort)
	}
	room.AssignedPort = nil
	room.Process = nil
	room.ClearReady()
	if len(room.Members) >= 2 {
		room.State = model.RoomStateReadyCheck
	} else {
		room.State = model.RoomStateOpen
	}
	room.UpdatedAt = c.clock.Now()
	return room.Clone()
}

func (c *Controller) terminate(id model.RoomID, handle model.ProcessHandle) {
	if err := c.supervisor.Terminate(handle); err != nil {
		c.logger.Error("failed to terminate game server",
			slog.String("room_id", string(id)),
			slog.Int("pid", handle.PID),
			slog.String("error", err.Error()),
		)
	}
}

// checkFreeLocked rejects accounts that already host or belong to a room
func (c *Controller) checkFreeLocked(account string) error {
	if _, ok := c.hostOf[account]; ok {
		return model.ErrAlreadyHosting
	}
	if _, ok := c.memberOf[account]; ok {
		return model.ErrAlreadyInRoom
	}
	return nil
}

// newRoomIDLocked generates an ID not used by any live room
func (c *Controller) newRoomIDLocked() model.RoomID {
	for {
		id := model.RoomID(c.random.String(RoomIDLength, RoomIDAlphabet))
		if _, exists := c.rooms[id]; !exists && id != "" {
			return id
		}
	}
}

// persist writes the room record. The in-memory table is authoritative,
// so a failed write is logged rather than failing the operation.
func (c *Controller) persist(ctx context.Context, room *model.Room) {
	if err := c.storage.SaveRoom(ctx, room); err != nil {
		c.logger.Warn("failed to persist room", slog.String("room_id", string(room.ID)), slog.String("error", err.Error()))
	}
}

func (c *Controller) emit(typ model.EventType, id model.RoomID, account string, snapshot *model.Room, reason string) {
	if c.events == nil {
		return
	}
	c.events.Publish(model.Event{
		Type:      typ,
		Timestamp: c.clock.Now(),
		RoomID:    id,
		Account:   account,
		Room:      snapshot,
		Reason:    reason,
	})
}

func portHolder(id model.RoomID) string {
	return "room:" + string(id)
}
