package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/gamehub/internal/api"
	"github.com/mcoot/gamehub/internal/config"
	"github.com/mcoot/gamehub/internal/factory"
	"github.com/mcoot/gamehub/internal/logging"
	"github.com/mcoot/gamehub/internal/server"
)

const shutdownTimeout = 15 * time.Second

// serveFlags are command-line overrides of the environment
type serveFlags struct {
	listenAddr  string
	statusAddr  string
	storageType string
	gamesDir    string
	portStart   int
	portSize    int
	logLevel    string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hub server",
		Long: `Run the hub server. Settings come from GAMEHUB_* environment
variables; flags given here take precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srvCfg, err := config.Load()
			if err != nil {
				return err
			}
			flags.apply(cmd, srvCfg)
			if err := srvCfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, srvCfg)
		},
	}

	cmd.Flags().StringVar(&flags.listenAddr, "listen", "", "TCP listen address (env: GAMEHUB_LISTEN_ADDR)")
	cmd.Flags().StringVar(&flags.statusAddr, "status", "", `HTTP status address, "off" to disable (env: GAMEHUB_STATUS_ADDR)`)
	cmd.Flags().StringVar(&flags.storageType, "storage", "", "Storage backend: memory, redis, sqlite (env: GAMEHUB_STORAGE_TYPE)")
	cmd.Flags().StringVar(&flags.gamesDir, "games-dir", "", "Directory holding game files (env: GAMEHUB_GAMES_DIR)")
	cmd.Flags().IntVar(&flags.portStart, "port-start", 0, "First game server port (env: GAMEHUB_PORT_RANGE_START)")
	cmd.Flags().IntVar(&flags.portSize, "port-count", 0, "Number of game server ports (env: GAMEHUB_PORT_RANGE_SIZE)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level (env: GAMEHUB_LOG_LEVEL)")

	return cmd
}

func (f *serveFlags) apply(cmd *cobra.Command, c *config.Config) {
	changed := cmd.Flags().Changed
	if changed("listen") {
		c.ListenAddr = f.listenAddr
	}
	if changed("status") {
		c.StatusAddr = f.statusAddr
	}
	if changed("storage") {
		c.StorageType = f.storageType
	}
	if changed("games-dir") {
		c.GamesDir = f.gamesDir
	}
	if changed("port-start") {
		c.PortRangeStart = f.portStart
	}
	if changed("port-count") {
		c.PortRangeSize = f.portSize
	}
	if changed("log-level") {
		c.LogLevel = f.logLevel
	}
}

// serve runs the hub until ctx is cancelled or a server fails
func serve(ctx context.Context, srvCfg *config.Config) error {
	logger, logCloser := logging.New(logging.Options{
		Level:  srvCfg.LogLevel,
		Format: srvCfg.LogFormat,
		File:   srvCfg.LogFile,
	})
	defer func() { _ = logCloser.Close() }()

	app, err := factory.New(factory.ConfigFrom(srvCfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return err
	}
	if err := app.Recover(ctx); err != nil {
		logger.Warn("could not clear rooms from previous run", slog.String("error", err.Error()))
	}

	tcp := app.NewServer(server.Config{
		Addr:            srvCfg.ListenAddr,
		IdleTimeout:     srvCfg.IdleTimeout,
		IOTimeout:       srvCfg.IOTimeout,
		MaxFrameSize:    srvCfg.MaxFrameBytes,
		JanitorInterval: time.Minute,
	})
	if err := tcp.Listen(); err != nil {
		_ = app.Close(context.Background())
		return fmt.Errorf("listen: %w", err)
	}

	var status *api.Server
	if srvCfg.StatusEnabled() {
		statusCfg := api.DefaultServerConfig()
		statusCfg.Addr = srvCfg.StatusAddr
		status = api.NewServer(app.NewStatusRouter(), statusCfg, logger)
		if err := status.Listen(); err != nil {
			_ = tcp.Shutdown(context.Background())
			_ = app.Close(context.Background())
			return fmt.Errorf("listen status: %w", err)
		}
	}

	logger.Info("hub started",
		slog.String("addr", tcp.Addr()),
		slog.String("storage", srvCfg.StorageType),
		slog.Int("port_range_start", srvCfg.PortRangeStart),
		slog.Int("port_range_size", srvCfg.PortRangeSize),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(tcp.Start)
	if status != nil {
		g.Go(status.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		errs := []error{tcp.Shutdown(shutdownCtx)}
		// End event streams first so the status server can drain
		app.Events.Close()
		if status != nil {
			errs = append(errs, status.Shutdown(shutdownCtx))
		}
		errs = append(errs, app.Close(shutdownCtx))
		return errors.Join(errs...)
	})

	err = g.Wait()
	if err != nil {
		logger.Error("hub stopped with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("hub stopped")
	return nil
}
