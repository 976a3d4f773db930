package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamehub/internal/config"
	"github.com/mcoot/gamehub/internal/factory"
)

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every account, game, review and room from storage",
		Long: `Delete every record from the storage backend selected by the
GAMEHUB_STORAGE_TYPE environment. Run it while the server is stopped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to wipe storage without --yes")
			}

			srvCfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := srvCfg.Validate(); err != nil {
				return err
			}

			app, err := factory.New(factory.ConfigFrom(srvCfg, nil))
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(cmd.Context()) }()

			if err := app.Storage.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("reset %s storage: %w", srvCfg.StorageType, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %s storage\n", srvCfg.StorageType)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the wipe")
	return cmd
}
