package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/huddle/internal/config"
	"github.com/vovakirdan/huddle/internal/log"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Real-time collaboration server",
	Long: `huddle fans out chat messages, presence, typing indicators, reactions
and read receipts to room members over WebSocket, and coordinates call
signaling between them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, roomCmd, tokenCmd)
}

// loadConfig resolves configuration and a logger honoring the persistent flags.
func loadConfig(overrides config.Config) (*config.Config, *zerolog.Logger, error) {
	bootstrap := log.New(firstNonEmpty(logLevel, "info"), "console")

	cfg, path, err := config.Load(bootstrap, cfgFile)
	if err != nil {
		return nil, bootstrap, err
	}
	overrides.LogLevel = logLevel
	cfg.UpdateFrom(overrides)

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return &cfg, logger, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
