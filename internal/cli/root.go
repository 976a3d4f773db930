package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var cfg *Config

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "gamehub",
		Short: "Game hub server and client",
		Long: `gamehub runs the game hub server and talks to a running one.

The server accepts framed JSON requests over TCP, brokers rooms between
players and launches one game server process per started room. Client
commands open a single connection, optionally log in, and perform their
actions on it; sessions end when the connection closes.`,
		SilenceUsage: true,
	}

	// Client flags
	rootCmd.PersistentFlags().StringVar(&cfg.Addr, "addr", cfg.Addr, "Hub TCP address (env: GAMEHUB_ADDR)")
	rootCmd.PersistentFlags().StringVar(&cfg.StatusURL, "status-url", cfg.StatusURL, "Status server URL (env: GAMEHUB_STATUS_URL)")
	rootCmd.PersistentFlags().StringVarP(&cfg.User, "user", "u", cfg.User, "Account to log in as (env: GAMEHUB_USER)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Password, "password", "p", cfg.Password, "Password (env: GAMEHUB_PASSWORD)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newShellCmd())
	rootCmd.AddCommand(newStatusCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
