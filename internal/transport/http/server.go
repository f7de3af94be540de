package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/skyoffice-server/internal/auth"
	"github.com/vovakirdan/skyoffice-server/internal/config"
	"github.com/vovakirdan/skyoffice-server/internal/core"
	"github.com/vovakirdan/skyoffice-server/internal/store"
)

// NewServer builds the HTTP server: the websocket endpoint plus the REST
// API. Account routes are only mounted when authService is set.
func NewServer(hub *core.Hub, authService *auth.Service, users store.UserStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg.Server.MaxMessageBytes, cfg.Room.RateLimit, logger)))

	api := router.Group("/api")
	rooms := NewRoomHandlers(hub, logger)
	api.GET("/rooms", rooms.ListRooms)
	api.POST("/rooms", rooms.CreateRoom)

	if authService != nil {
		h := NewAPIHandlers(authService, users, logger)
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)

		me := api.Group("/me", AuthMiddleware(authService, logger))
		me.GET("", h.Me)
		me.PUT("/flow-type", h.UpdateFlowType)
	}

	return &stdhttp.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
}
