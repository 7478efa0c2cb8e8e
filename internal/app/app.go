package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/huddle/internal/auth"
	"github.com/vovakirdan/huddle/internal/callengine"
	"github.com/vovakirdan/huddle/internal/callengine/livekit"
	"github.com/vovakirdan/huddle/internal/config"
	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/push"
	"github.com/vovakirdan/huddle/internal/store"
	"github.com/vovakirdan/huddle/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/huddle/internal/transport/http"
)

// TokenTTL is the lifetime of identity tokens minted by the CLI.
const TokenTTL = 24 * time.Hour

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	redis           *redis.Client
	log             *zerolog.Logger
}

// JWTConfig derives the identity token settings from cfg.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      TokenTTL,
	}
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	var verifier core.IdentityVerifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(JWTConfig(cfg))
	} else {
		logger.Warn().Msg("jwt_secret is empty: registration tokens are trusted as identities (development only)")
		verifier = auth.InsecureVerifier{}
	}

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	var notifier push.Notifier = push.Nop{}
	if cfg.Push.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Push.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Push.RedisAddr).Msg("redis unreachable, push notifications will fail until it recovers")
		}
		cancel()
		notifier = push.NewRedis(a.redis, cfg.Push.RedisList)
		logger.Info().Str("addr", cfg.Push.RedisAddr).Str("list", cfg.Push.RedisList).Msg("push notifications enabled")
	}

	var engine callengine.Engine
	if cfg.LiveKit.URL != "" {
		engine = livekit.New(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.URL)
		logger.Info().Str("url", cfg.LiveKit.URL).Msg("livekit call engine enabled")
	}

	a.hub = core.NewHub(core.Deps{
		Store:    st,
		Verifier: verifier,
		Notifier: notifier,
		Engine:   engine,
		Logger:   logger,
	}, core.Options{
		TypingTTL:          cfg.TypingTTL,
		SweepInterval:      cfg.TypingSweepInterval,
		PresenceGrace:      cfg.PresenceGrace,
		CallRingTimeout:    cfg.CallRingTimeout,
		EndedCallRetention: cfg.EndedCallRetention,
		MaxContentLength:   cfg.MaxContentLength,
		PushTimeout:        cfg.Push.Timeout,
	})
	a.server = transporthttp.NewServer(a.hub, verifier, st, cfg, logger)

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
