package cli

import (
	"context"
	"fmt"

	"github.com/mcoot/gamehub/internal/client"
)

// connect dials the hub and logs in when credentials are configured
func connect(ctx context.Context) (*client.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	c, err := client.Dial(dialCtx, cfg.Addr)
	if err != nil {
		return nil, err
	}
	if !cfg.HasCredentials() {
		return c, nil
	}

	loginCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if _, err := c.Login(loginCtx, cfg.User, cfg.Password); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("login as %s: %w", cfg.User, err)
	}
	return c, nil
}
