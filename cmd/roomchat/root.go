package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/log"
	"github.com/vovakirdan/roomchat/internal/roomchat"
	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/remote"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "roomchat",
		Short:         "Realtime chat rooms addressed by short codes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCommand(opts),
		newChatCommand(opts),
		newCreateCommand(opts),
	)
	return cmd
}

// load resolves configuration. Flag overrides are applied by the caller.
func (o *rootOptions) load(logger *zerolog.Logger) (config.Config, error) {
	cfg, path, err := config.Load(logger, o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	logger.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

// clientLogger writes to the rotating log file so the terminal stays clean.
func clientLogger(cfg config.Config) (*zerolog.Logger, io.Closer) {
	return log.NewFile(cfg.LogLevel, cfg.LogFile)
}

// openStore picks the remote service when store_url is set, the embedded
// database otherwise.
func openStore(cfg config.Config, logger *zerolog.Logger) (store.Store, error) {
	if cfg.StoreURL == "" {
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open embedded store: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("using embedded store")
		return st, nil
	}

	st, err := remote.New(cfg.StoreURL, remote.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Info().Str("store_url", cfg.StoreURL).Msg("using remote store")
	return st, nil
}

func newRoomClient(cfg config.Config, st store.Store, logger *zerolog.Logger) *roomchat.Client {
	return roomchat.NewClient(st, roomchat.Config{MessageLimit: cfg.MessageLimit}, logger)
}
