package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/gamehub/internal/api/response"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query the HTTP status server",
	}
	cmd.AddCommand(newStatusHealthCmd())
	cmd.AddCommand(newStatusPortsCmd())
	return cmd
}

func newStatusHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Health
			if err := NewStatusClient(cfg.StatusURL, cfg.Timeout).Get(cmd.Context(), "/api/v1/health", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newStatusPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "Show the game server port pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Ports
			if err := NewStatusClient(cfg.StatusURL, cfg.Timeout).Get(cmd.Context(), "/api/v1/ports", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
