package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/skyoffice-server/internal/app"
	"github.com/vovakirdan/skyoffice-server/internal/config"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr         string
	Database     string
	AuthRequired bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the office server",
		Long: `Run the websocket and REST server.

The public room is opened on start. Custom rooms are created over
POST /api/rooms and close when their last client leaves.

Example:
  skyoffice serve --addr :2567 --db ./skyoffice.db
  SKYOFFICE_AUTH_REQUIRED=true skyoffice serve`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().BoolVar(&opts.AuthRequired, "auth-required", false, "reject joins without credentials")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, logger, err := opts.load(cmd, config.Config{
		Server:   config.ServerConfig{Addr: opts.Addr},
		Database: config.DatabaseConfig{Path: opts.Database},
		Auth:     config.AuthConfig{Required: opts.AuthRequired},
	})
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == config.Default().Auth.JWTSecret {
		logger.Warn().Msg("auth.jwt_secret is the default value; set SKYOFFICE_AUTH_JWT_SECRET")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Server.Addr).Msg("starting skyoffice server")
	if err := application.Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
