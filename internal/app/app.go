package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/skyoffice-server/internal/ai"
	"github.com/vovakirdan/skyoffice-server/internal/analytics"
	"github.com/vovakirdan/skyoffice-server/internal/auth"
	"github.com/vovakirdan/skyoffice-server/internal/config"
	"github.com/vovakirdan/skyoffice-server/internal/core"
	"github.com/vovakirdan/skyoffice-server/internal/media/livekit"
	"github.com/vovakirdan/skyoffice-server/internal/points"
	"github.com/vovakirdan/skyoffice-server/internal/store"
	"github.com/vovakirdan/skyoffice-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/skyoffice-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	points          *points.Service
	events          *analytics.Logger
	publisher       *analytics.NATSPublisher
	nats            *analytics.EmbeddedServer
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.Database.Path).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.Server.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL,
	})

	a.points = points.NewService(st, logger, points.WithRules(cfg.PointRules()))

	if err := a.startPublisher(cfg.Analytics); err != nil {
		a.cleanup()
		return nil, err
	}
	analyticsCfg := analytics.Config{
		FlushInterval: cfg.Analytics.FlushInterval,
		MaxQueue:      cfg.Analytics.MaxQueue,
		MaxBacklog:    cfg.Analytics.MaxBacklog,
	}
	if a.publisher != nil {
		analyticsCfg.Publisher = a.publisher
	}
	a.events = analytics.NewLogger(st, analyticsCfg, logger)

	svc := core.Services{
		Auth:          authService,
		Users:         st,
		Conversations: st,
		Points:        a.points,
		Events:        a.events,
	}

	if cfg.AI.APIKey != "" {
		client, err := ai.New(ai.Config{
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			BaseURL:     cfg.AI.BaseURL,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init ai: %w", err)
		}
		svc.AI = client
		logger.Info().Str("model", cfg.AI.Model).Msg("ai responder enabled")
	}

	if cfg.LiveKit.APIKey != "" {
		engine, err := livekit.New(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.URL)
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init livekit: %w", err)
		}
		svc.Media = engine
		logger.Info().Str("url", cfg.LiveKit.URL).Msg("livekit media enabled")
	}

	a.hub = core.NewHub(core.Config{
		PatchRate:             cfg.Room.PatchRate,
		ClientBuffer:          cfg.Room.ClientBuffer,
		AITimeout:             cfg.AI.Timeout,
		StoreTimeout:          cfg.Room.StoreTimeout,
		AuthRequired:          cfg.Auth.Required,
		PublicRoomName:        cfg.Room.PublicName,
		PublicRoomDescription: cfg.Room.PublicDescription,
		Layout:                cfg.Layout(),
	}, svc, logger)

	a.server = transporthttp.NewServer(a.hub, authService, st, cfg, logger)
	return a, nil
}

// startPublisher connects the analytics fan-out. An empty URL leaves it off.
func (a *App) startPublisher(cfg config.AnalyticsConfig) error {
	url := cfg.NATSURL
	if url == "" {
		return nil
	}
	if url == config.EmbeddedNATS {
		ns, err := analytics.StartEmbeddedServer("127.0.0.1", cfg.NATSPort)
		if err != nil {
			return fmt.Errorf("start embedded nats: %w", err)
		}
		a.nats = ns
		url = ns.ClientURL()
		a.log.Info().Str("url", url).Msg("embedded nats started")
	}

	pub, err := analytics.NewNATSPublisher(url, cfg.NATSSubject)
	if err != nil {
		return fmt.Errorf("init nats publisher: %w", err)
	}
	a.publisher = pub
	a.log.Info().Str("url", url).Str("subject", cfg.NATSSubject).Msg("publishing events to nats")
	return nil
}

// Hub exposes the room registry.
func (a *App) Hub() *core.Hub { return a.hub }

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler { return a.server.Handler }

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); a.hub.Run(bgCtx) }()
	go func() { defer wg.Done(); a.events.Run(bgCtx) }()
	go func() { defer wg.Done(); a.points.Run(bgCtx) }()

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	// Rooms persist progress while they close, so the hub and the analytics
	// flush stop before the store does.
	stop := func() {
		stopBackground()
		wg.Wait()
		a.cleanup()
	}

	select {
	case err := <-serverErr:
		stop()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)
		stop()
		if err != nil {
			return err
		}
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close nats publisher")
		}
	}
	if a.nats != nil {
		a.nats.Shutdown()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
