package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/services/process"
)

// MockSupervisor stands in for process.Supervisor without starting
// real processes
type MockSupervisor struct {
	mu         sync.Mutex
	nextPID    int
	running    map[string]process.LaunchSpec
	spawned    []process.LaunchSpec
	terminated []model.ProcessHandle
	failures   []error
	onExit     func(process.Exit)

	// SpawnDelay makes every Spawn block for the given duration
	SpawnDelay time.Duration
}

// NewMockSupervisor creates a MockSupervisor with nothing running
func NewMockSupervisor() *MockSupervisor {
	return &MockSupervisor{
		nextPID: 40000,
		running: make(map[string]process.LaunchSpec),
	}
}

// FailNextSpawn makes the next Spawn call fail with err
func (m *MockSupervisor) FailNextSpawn(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, err)
}

// OnExit registers the unexpected exit callback
func (m *MockSupervisor) OnExit(fn func(process.Exit)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExit = fn
}

// Spawn records the launch and returns a fake handle
func (m *MockSupervisor) Spawn(ctx context.Context, spec process.LaunchSpec) (model.ProcessHandle, error) {
	if m.SpawnDelay > 0 {
		select {
		case <-time.After(m.SpawnDelay):
		case <-ctx.Done():
			return model.ProcessHandle{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.spawned = append(m.spawned, spec)
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return model.ProcessHandle{}, fmt.Errorf("%w: %w", model.ErrLaunchFailure, err)
	}

	m.nextPID++
	handle := model.ProcessHandle{
		ID:   fmt.Sprintf("proc-%d", m.nextPID),
		PID:  m.nextPID,
		Port: spec.Port,
	}
	m.running[handle.ID] = spec
	return handle, nil
}

// IsAlive reports whether the fake process is still running
func (m *MockSupervisor) IsAlive(handle model.ProcessHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[handle.ID]
	return ok
}

// Terminate stops the fake process
func (m *MockSupervisor) Terminate(handle model.ProcessHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.running[handle.ID]; ok {
		delete(m.running, handle.ID)
		m.terminated = append(m.terminated, handle)
	}
	return nil
}

// Crash simulates the process exiting on its own and reports it
// through the OnExit callback
func (m *MockSupervisor) Crash(handle model.ProcessHandle, err error) {
	m.mu.Lock()
	spec, ok := m.running[handle.ID]
	delete(m.running, handle.ID)
	onExit := m.onExit
	m.mu.Unlock()

	if ok && onExit != nil {
		onExit(process.Exit{Handle: handle, RoomID: spec.RoomID, Err: err})
	}
}

// Spawned returns every launch attempt so far
func (m *MockSupervisor) Spawned() []process.LaunchSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]process.LaunchSpec(nil), m.spawned...)
}

// Terminated returns the handles stopped through Terminate
func (m *MockSupervisor) Terminated() []model.ProcessHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ProcessHandle(nil), m.terminated...)
}

// RunningCount returns the number of fake processes still running
func (m *MockSupervisor) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// TerminateAll stops every fake process
func (m *MockSupervisor) TerminateAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.running {
		m.terminated = append(m.terminated, model.ProcessHandle{ID: id, Port: m.running[id].Port})
		delete(m.running, id)
	}
	return nil
}
