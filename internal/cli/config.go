package cli

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds client-side CLI configuration
type Config struct {
	Addr      string        `env:"ADDR" envDefault:"localhost:10001"`
	StatusURL string        `env:"STATUS_URL" envDefault:"http://localhost:10000"`
	User      string        `env:"USER"`
	Password  string        `env:"PASSWORD"`
	Output    string        `env:"OUTPUT" envDefault:"text"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns a Config populated from GAMEHUB_* variables
func DefaultConfig() *Config {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: "GAMEHUB_"}); err != nil {
		// Fall back to the built-in defaults on unparsable values
		return &Config{
			Addr:      "localhost:10001",
			StatusURL: "http://localhost:10000",
			Output:    "text",
			Timeout:   30 * time.Second,
		}
	}
	return &c
}

// HasCredentials reports whether the command should log in first
func (c *Config) HasCredentials() bool {
	return c.User != ""
}
