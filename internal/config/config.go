package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config is the server configuration, read from GAMEHUB_* variables
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":10001"`
	// StatusAddr serves the HTTP status endpoints; "off" disables them
	StatusAddr string `env:"STATUS_ADDR" envDefault:":10000"`

	PortRangeStart int  `env:"PORT_RANGE_START" envDefault:"10002"`
	PortRangeSize  int  `env:"PORT_RANGE_SIZE" envDefault:"100"`
	ProbePorts     bool `env:"PROBE_PORTS" envDefault:"true"`

	StorageType string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"gamehub.db"`

	GamesDir        string        `env:"GAMES_DIR" envDefault:"games"`
	GameInterpreter string        `env:"GAME_INTERPRETER" envDefault:"python3"`
	TerminateGrace  time.Duration `env:"TERMINATE_GRACE" envDefault:"5s"`

	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT" envDefault:"10m"`
	IOTimeout     time.Duration `env:"IO_TIMEOUT" envDefault:"30s"`
	MaxFrameBytes int           `env:"MAX_FRAME_BYTES" envDefault:"16777216"`
	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"10"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"LOG_FILE"`
}

// Prefix is prepended to every variable name
const Prefix = "GAMEHUB_"

// Load reads the configuration from the process environment
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads the configuration from the given variables only
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// StatusEnabled reports whether the HTTP status server should run
func (c *Config) StatusEnabled() bool {
	addr := strings.TrimSpace(c.StatusAddr)
	return addr != "" && !strings.EqualFold(addr, "off")
}

// Validate rejects settings that cannot work together
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageType {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("GAMEHUB_REDIS_URL is required when storage type is redis"))
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("GAMEHUB_SQLITE_PATH is required when storage type is sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type %q", c.StorageType))
	}

	last := c.PortRangeStart + c.PortRangeSize - 1
	switch {
	case c.PortRangeSize <= 0:
		errs = append(errs, errors.New("port range size must be positive"))
	case c.PortRangeStart <= 0 || last > 65535:
		errs = append(errs, fmt.Errorf("port range %d..%d is outside 1..65535", c.PortRangeStart, last))
	default:
		for _, addr := range []string{c.ListenAddr, c.StatusAddr} {
			if port, ok := addrPort(addr); ok && port >= c.PortRangeStart && port <= last {
				errs = append(errs, fmt.Errorf("address %s overlaps the game port range %d..%d", addr, c.PortRangeStart, last))
			}
		}
	}

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.MaxFrameBytes <= 0 {
		errs = append(errs, errors.New("max frame size must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session TTL must be positive"))
	}
	if c.TerminateGrace < 0 {
		errs = append(errs, errors.New("terminate grace must not be negative"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

func addrPort(addr string) (int, bool) {
	if addr == "" {
		return 0, false
	}
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(p)
	if err != nil || port == 0 {
		return 0, false
	}
	return port, true
}
