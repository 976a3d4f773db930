package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamehub/internal/client"
	"github.com/mcoot/gamehub/internal/protocol"
)

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Send actions line by line over one connection",
		Long: `Read one action per line from stdin and send each over the same
connection, keeping the session and any room alive until the input ends.

Each line is an action name optionally followed by a JSON object of
fields. Blank lines and lines starting with # are skipped; "quit" ends
the session.`,
		Example: `  printf 'list_games\ncreate_room {"game_id":"...","capacity":2}\n' | gamehub shell -u alice -p secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			return runShell(cmd.Context(), c, cmd.InOrStdin(), NewOutput(cfg.Output, cmd.OutOrStdout()))
		},
	}
}

// runShell sends every line of in as a request and prints each response.
// Error responses are printed and do not stop the loop.
func runShell(ctx context.Context, c *client.Client, in io.Reader, out *Output) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}

		action, rest, _ := strings.Cut(line, " ")
		var fields any
		if rest = strings.TrimSpace(rest); rest != "" {
			raw, err := readFields(rest, nil)
			if err != nil {
				return fmt.Errorf("%s: %w", action, err)
			}
			fields = raw
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		resp, err := c.Call(callCtx, action, fields)
		cancel()
		if err != nil {
			return err
		}
		trackSession(c, action, resp)
		out.PrintResponse(action, resp)
	}
	return scanner.Err()
}

// trackSession keeps the connection's token in step with login and
// logout lines
func trackSession(c *client.Client, action string, resp *protocol.Response) {
	if resp.Status != protocol.StatusOK {
		return
	}
	switch action {
	case protocol.ActionLogin:
		var session protocol.Session
		if resp.Decode(&session) == nil {
			c.SetToken(session.Token)
		}
	case protocol.ActionLogout:
		c.SetToken("")
	}
}
