package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <action> [fields-json|-]",
		Short: "Perform one action and print the response",
		Long: `Perform one action on a fresh connection and print the response.

Fields are given as a JSON object, or read from stdin with "-". When
--user is set the command logs in first on the same connection.`,
		Example: `  gamehub call ping
  gamehub call list_games -u alice -p secret
  gamehub call create_room '{"game_id":"...","capacity":2}' -u alice -p secret`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fields any
			if len(args) == 2 {
				raw, err := readFields(args[1], cmd.InOrStdin())
				if err != nil {
					return err
				}
				fields = raw
			}

			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			defer cancel()
			resp, err := c.Call(ctx, args[0], fields)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.PrintResponse(args[0], resp)
			if err := resp.Err(); err != nil {
				// Already printed; exit non-zero without repeating it
				cmd.SilenceErrors = true
				return err
			}
			return nil
		},
	}
	return cmd
}

// readFields returns the JSON object given inline or on stdin
func readFields(arg string, stdin io.Reader) (json.RawMessage, error) {
	data := []byte(arg)
	if arg == "-" {
		var err error
		if data, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("fields must be a JSON object: %w", err)
	}
	return json.RawMessage(data), nil
}
