package ports

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/mcoot/gamehub/internal/model"
)

// Config describes the pool of ports handed to game servers
type Config struct {
	// Start is the first port in the pool
	Start int
	// Size is the number of consecutive ports in the pool
	Size int
	// Probe checks that a port can actually be bound before handing it
	// out, skipping ports taken by unrelated processes
	Probe bool
}

// DefaultConfig returns the default pool, just above the hub's own port
func DefaultConfig() Config {
	return Config{Start: 10002, Size: 100, Probe: true}
}

// Validate checks the pool fits in the TCP port range
func (c Config) Validate() error {
	if c.Size <= 0 {
		return errors.New("port pool size must be positive")
	}
	if c.Start <= 0 || c.Start+c.Size-1 > 65535 {
		return fmt.Errorf("port pool %d..%d is outside 1..65535", c.Start, c.Start+c.Size-1)
	}
	return nil
}

// Stats is a point-in-time view of the pool
type Stats struct {
	Start int
	Size  int
	Free  int
	Held  map[int]string // port -> holder
}

// Allocator grants exclusive custody of ports from a bounded pool.
// A port is never handed to a second holder until it is released.
type Allocator struct {
	mu     sync.Mutex
	start  int
	size   int
	held   map[int]string
	cursor int // offset of the next port to try

	probe  func(port int) bool
	logger *slog.Logger
}

// New creates an Allocator for cfg
func New(cfg Config, logger *slog.Logger) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Allocator{
		start:  cfg.Start,
		size:   cfg.Size,
		held:   make(map[int]string),
		logger: logger.With(slog.String("component", "ports")),
	}
	if cfg.Probe {
		a.probe = canBind
	}
	return a, nil
}

// Acquire hands out a free port to holder. Ports are tried round-robin
// so a just-released port is the last to be reused.
func (a *Allocator) Acquire(holder string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.size {
		offset := (a.cursor + i) % a.size
		port := a.start + offset
		if _, taken := a.held[port]; taken {
			continue
		}
		if a.probe != nil && !a.probe(port) {
			a.logger.Warn("port in use outside the hub, skipping", slog.Int("port", port))
			continue
		}
		a.held[port] = holder
		a.cursor = (offset + 1) % a.size
		a.logger.Debug("port acquired", slog.Int("port", port), slog.String("holder", holder))
		return port, nil
	}
	return 0, model.ErrNoPortAvailable
}

// Release returns port to the pool. Reports whether it was held.
func (a *Allocator) Release(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	holder, ok := a.held[port]
	if !ok {
		return false
	}
	delete(a.held, port)
	a.logger.Debug("port released", slog.Int("port", port), slog.String("holder", holder))
	return true
}

// ReleaseAll empties the pool and returns the ports that were held
func (a *Allocator) ReleaseAll() []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	ports := make([]int, 0, len(a.held))
	for port := range a.held {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	a.held = make(map[int]string)
	return ports
}

// Holder returns who holds port, if anyone
func (a *Allocator) Holder(port int) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	holder, ok := a.held[port]
	return holder, ok
}

// Contains reports whether port belongs to the pool
func (a *Allocator) Contains(port int) bool {
	return port >= a.start && port < a.start+a.size
}

// Stats returns a snapshot of pool usage
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	held := make(map[int]string, len(a.held))
	for port, holder := range a.held {
		held[port] = holder
	}
	return Stats{
		Start: a.start,
		Size:  a.size,
		Free:  a.size - len(a.held),
		Held:  held,
	}
}

// canBind reports whether a TCP listener can be opened on port
func canBind(port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
