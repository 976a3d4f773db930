package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/gamehub/internal/dependencies/clock"
	"github.com/mcoot/gamehub/internal/model"
)

// ErrStillRunning is returned when a process survives the forced kill
var ErrStillRunning = errors.New("process did not exit after kill")

// LaunchSpec describes one game server launch
type LaunchSpec struct {
	RoomID    model.RoomID
	GameID    model.GameID
	FilesRoot string // working directory of the game server
	Entry     string // entry point, relative to FilesRoot
	Port      int
}

// Exit describes a game server that stopped on its own
type Exit struct {
	Handle model.ProcessHandle
	RoomID model.RoomID
	Err    error // nil for a clean exit
}

// Config holds configuration for the supervisor
type Config struct {
	// Interpreter runs the entry point, e.g. "python3". Empty executes
	// the entry point directly.
	Interpreter string
	// TerminateGrace is how long a game server gets to exit after the
	// polite signal before it is killed
	TerminateGrace time.Duration
	// StartupGrace is how long Spawn watches a new process; exiting
	// within it counts as a launch failure
	StartupGrace time.Duration
	// CaptureOutput sends the game server's stdout and stderr to the
	// log instead of discarding them
	CaptureOutput bool
}

// DefaultConfig returns default supervisor configuration
func DefaultConfig() Config {
	return Config{
		Interpreter:    "python3",
		TerminateGrace: 5 * time.Second,
		StartupGrace:   250 * time.Millisecond,
	}
}

type child struct {
	handle model.ProcessHandle
	roomID model.RoomID
	cmd    *exec.Cmd
	done   chan struct{} // closed once the process is reaped
	err    error         // exit status, valid after done

	// guarded by Supervisor.mu
	watched     bool // exit should be reported
	terminating bool // exit was requested, do not report
}

// Supervisor launches game servers as child processes, reaps them and
// terminates them on request
type Supervisor struct {
	clock  clock.Clock
	logger *slog.Logger
	cfg    Config

	mu     sync.Mutex
	procs  map[string]*child
	onExit func(Exit)
}

// New creates a Supervisor
func New(clock clock.Clock, cfg Config, logger *slog.Logger) *Supervisor {
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = DefaultConfig().TerminateGrace
	}
	return &Supervisor{
		clock:  clock,
		logger: logger.With(slog.String("component", "supervisor")),
		cfg:    cfg,
		procs:  make(map[string]*child),
	}
}

// OnExit registers fn to be called, from the reaping goroutine, when a
// game server exits without having been asked to
func (s *Supervisor) OnExit(fn func(Exit)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExit = fn
}

// Spawn starts the game server for spec. The child gets its own
// process group and outlives ctx; ctx only bounds the launch itself.
func (s *Supervisor) Spawn(ctx context.Context, spec LaunchSpec) (model.ProcessHandle, error) {
	if err := ctx.Err(); err != nil {
		return model.ProcessHandle{}, fmt.Errorf("%w: %w", model.ErrLaunchFailure, err)
	}
	cmd, err := s.command(spec)
	if err != nil {
		return model.ProcessHandle{}, fmt.Errorf("%w: %w", model.ErrLaunchFailure, err)
	}

	logger := s.logger.With(slog.String("room_id", string(spec.RoomID)), slog.Int("port", spec.Port))
	if s.cfg.CaptureOutput {
		cmd.Stdout = newLineLogger(logger, "stdout")
		cmd.Stderr = newLineLogger(logger, "stderr")
	}
	// Bounds Wait when a grandchild keeps the output pipes open
	cmd.WaitDelay = s.cfg.TerminateGrace
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return model.ProcessHandle{}, fmt.Errorf("%w: %w", model.ErrLaunchFailure, err)
	}

	p := &child{
		handle: model.ProcessHandle{
			ID:        uuid.NewString(),
			PID:       cmd.Process.Pid,
			Port:      spec.Port,
			StartedAt: s.clock.Now(),
		},
		roomID: spec.RoomID,
		cmd:    cmd,
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.procs[p.handle.ID] = p
	s.mu.Unlock()

	go s.reap(p, logger)

	if s.cfg.StartupGrace > 0 {
		select {
		case <-p.done:
		case <-time.After(s.cfg.StartupGrace):
		case <-ctx.Done():
		}
	}

	s.mu.Lock()
	select {
	case <-p.done:
		s.mu.Unlock()
		return model.ProcessHandle{}, fmt.Errorf("%w: exited during startup: %v", model.ErrLaunchFailure, p.err)
	default:
	}
	p.watched = true
	s.mu.Unlock()

	logger.Info("game server started", slog.Int("pid", p.handle.PID), slog.String("process_id", p.handle.ID))
	return p.handle, nil
}

func (s *Supervisor) command(spec LaunchSpec) (*exec.Cmd, error) {
	info, err := os.Stat(spec.FilesRoot)
	if err != nil {
		return nil, fmt.Errorf("game files: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("game files: %s is not a directory", spec.FilesRoot)
	}
	if spec.Entry == "" || !filepath.IsLocal(spec.Entry) {
		return nil, fmt.Errorf("invalid entry point %q", spec.Entry)
	}
	entry, err := filepath.Abs(filepath.Join(spec.FilesRoot, spec.Entry))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(entry); err != nil {
		return nil, fmt.Errorf("entry point: %w", err)
	}

	port := strconv.Itoa(spec.Port)
	var cmd *exec.Cmd
	if s.cfg.Interpreter != "" {
		cmd = exec.Command(s.cfg.Interpreter, entry, "--port", port)
	} else {
		cmd = exec.Command(entry, "--port", port)
	}
	cmd.Dir = spec.FilesRoot
	cmd.Env = append(os.Environ(),
		"GAMEHUB_PORT="+port,
		"GAMEHUB_ROOM_ID="+string(spec.RoomID),
		"GAMEHUB_GAME_ID="+string(spec.GameID),
	)
	return cmd, nil
}

// reap waits for the process so it never lingers as a zombie, then
// reports unexpected exits
func (s *Supervisor) reap(p *child, logger *slog.Logger) {
	p.err = p.cmd.Wait()
	close(p.done)

	s.mu.Lock()
	delete(s.procs, p.handle.ID)
	report := p.watched && !p.terminating
	onExit := s.onExit
	s.mu.Unlock()

	attrs := []any{slog.Int("pid", p.handle.PID), slog.Bool("requested", p.terminating)}
	if p.err != nil {
		attrs = append(attrs, slog.String("status", p.err.Error()))
	}
	logger.Info("game server exited", attrs...)

	if report && onExit != nil {
		onExit(Exit{Handle: p.handle, RoomID: p.roomID, Err: p.err})
	}
}

// IsAlive reports whether the process behind handle is still running
func (s *Supervisor) IsAlive(handle model.ProcessHandle) bool {
	s.mu.Lock()
	p, ok := s.procs[handle.ID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Terminate stops the process behind handle: a polite signal, then a
// kill once TerminateGrace passes. Terminating an exited or unknown
// process succeeds.
func (s *Supervisor) Terminate(handle model.ProcessHandle) error {
	s.mu.Lock()
	p, ok := s.procs[handle.ID]
	if ok {
		p.terminating = true
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-p.done:
		return nil
	default:
	}

	if err := interrupt(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("interrupt failed", slog.Int("pid", handle.PID), slog.String("error", err.Error()))
	}

	grace := time.NewTimer(s.cfg.TerminateGrace)
	defer grace.Stop()
	select {
	case <-p.done:
		return nil
	case <-grace.C:
	}

	s.logger.Warn("game server ignored interrupt, killing", slog.Int("pid", handle.PID))
	if err := kill(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", handle.PID, err)
	}

	reaped := time.NewTimer(s.cfg.TerminateGrace)
	defer reaped.Stop()
	select {
	case <-p.done:
		return nil
	case <-reaped.C:
		return fmt.Errorf("pid %d: %w", handle.PID, ErrStillRunning)
	}
}

// TerminateAll stops every running game server concurrently
func (s *Supervisor) TerminateAll() error {
	handles := s.Running()

	var wg sync.WaitGroup
	errs := make([]error, len(handles))
	for i, h := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Terminate(h)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Running returns the handles of every live process, oldest first
func (s *Supervisor) Running() []model.ProcessHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]model.ProcessHandle, 0, len(s.procs))
	for _, p := range s.procs {
		handles = append(handles, p.handle)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].StartedAt.Before(handles[j].StartedAt) })
	return handles
}
