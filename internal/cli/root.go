// Package cli implements the skyoffice command line.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/skyoffice-server/internal/config"
	"github.com/vovakirdan/skyoffice-server/internal/log"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCommand creates the root command for the skyoffice CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "skyoffice",
		Short: "SkyOffice - a virtual office server",
		Long:  "Realtime server for a shared 2D office with avatars, whiteboards, computers and AI professors.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewSmokeCommand(opts))

	return cmd
}

// load resolves the configuration and builds the logger. Flags win over
// the config file and the environment.
func (o *RootOptions) load(cmd *cobra.Command, overrides config.Config) (*config.Config, *zerolog.Logger, error) {
	bootLevel := o.LogLevel
	if bootLevel == "" {
		bootLevel = "info"
	}
	boot := log.New(bootLevel, log.WithWriter(cmd.ErrOrStderr()))

	cfg, path, err := config.Load(boot, o.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	overrides.Log.Level = o.LogLevel
	cfg.UpdateFrom(overrides)

	logger := log.New(cfg.Log.Level, log.WithWriter(cmd.ErrOrStderr()))
	logger.Debug().Str("path", path).Msg("config loaded")
	return &cfg, logger, nil
}
