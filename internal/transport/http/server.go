package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tutorlink/chat-server/internal/auth"
	"github.com/tutorlink/chat-server/internal/config"
	"github.com/tutorlink/chat-server/internal/service/chat"
)

// NewServer builds the HTTP server exposing both chat transports and the
// REST endpoints around them.
func NewServer(chatSvc *chat.Service, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, logger)
	router.POST("/api/register", apiHandlers.Register)
	router.POST("/api/login", apiHandlers.Login)

	chatHandlers := NewChatHandlers(chatSvc, logger)

	// The event-stream transport identifies the subscriber by query param,
	// matching the client contract; the history and room endpoints require
	// a bearer token.
	router.GET("/api/chat/events", chatHandlers.StreamEvents)
	router.POST("/api/chat/events", chatHandlers.SendMessage)

	authorized := router.Group("/", AuthMiddleware(authService, logger))
	authorized.GET("/api/chat/messages", chatHandlers.History)
	authorized.GET("/api/chat/room", chatHandlers.RoomForBooking)

	wsHandler := NewWSHandler(chatSvc, authService, cfg.SocketSendLimit, logger)
	router.GET("/ws", wsHandler.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
