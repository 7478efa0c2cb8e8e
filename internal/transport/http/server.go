package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/config"
	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/store"
)

// NewServer builds the HTTP server: health, the WebSocket endpoint and the
// authenticated history API.
func NewServer(hub *core.Hub, verifier core.IdentityVerifier, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(hub, verifier, st, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler mounts /ws on a plain mux and routes everything else through gin.
func NewHandler(hub *core.Hub, verifier core.IdentityVerifier, st store.Store, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, WSOptions{
		OutboundBuffer:     cfg.OutboundBuffer,
		MaxMessageBytes:    cfg.MaxMessageBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger))
	mux.Handle("/", NewRouter(hub, verifier, st, logger))
	return mux
}

// NewRouter builds the gin engine for health and the history API.
func NewRouter(hub *core.Hub, verifier core.IdentityVerifier, st store.Store, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	history := NewHistoryHandlers(st, hub.Presence(), logger)
	api := router.Group("/api")
	api.Use(AuthMiddleware(verifier, logger))
	{
		api.GET("/rooms/:id/messages", history.ListMessages)
		api.GET("/users/:id/presence", history.UserPresence)
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
