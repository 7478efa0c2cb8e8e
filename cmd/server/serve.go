package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/huddle/internal/app"
	"github.com/vovakirdan/huddle/internal/config"
)

var serveFlags config.Config

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(serveFlags)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(cfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to initialize application")
			return err
		}

		logger.Info().Str("addr", cfg.Addr).Msg("starting huddle server")
		if err := application.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("server exited with error")
			return err
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.Addr, "addr", "", "HTTP listen address")
	f.StringVar(&serveFlags.DatabasePath, "db", "", "SQLite database path")
	f.DurationVar(&serveFlags.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	f.DurationVar(&serveFlags.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
}
