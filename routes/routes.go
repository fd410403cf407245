package routes

import (
	"net/http"
	"slices"

	"quizduel/handlers"
	"quizduel/middleware"
	"quizduel/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Native clients send no Origin.
			return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
		},
	}
}

func SetupRoutes(
	router *gin.Engine,
	roomHandler *handlers.RoomHandler,
	quizHandler *handlers.QuizHandler,
	hub *services.Hub,
	tokens services.TokenVerifier,
	limiter *middleware.IPRateLimiter,
	allowedOrigins []string,
) {
	api := router.Group("/api")
	api.Use(limiter.Middleware())
	{
		api.GET("/categories", quizHandler.GetCategories)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(tokens))
		{
			protected.GET("/badges/mine", quizHandler.GetMyBadges)

			rooms := protected.Group("/rooms")
			{
				rooms.POST("", roomHandler.CreateRoom)
				rooms.GET("/mine", roomHandler.ListMyRooms)
				rooms.GET("/:code", roomHandler.GetRoom)
				rooms.GET("/:code/summary", roomHandler.GetSummary)
				rooms.POST("/:code/join", roomHandler.JoinRoom)
				rooms.POST("/:code/start", roomHandler.StartRoom)
				rooms.POST("/:code/answer", roomHandler.SubmitAnswer)
				rooms.POST("/:code/rematch", roomHandler.RequestRematch)
			}
		}
	}

	// Sockets authenticate with an "auth" message after connecting.
	upgrader := newUpgrader(allowedOrigins)
	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("remote", c.ClientIP()).Msg("websocket upgrade failed")
			return
		}
		client := hub.RegisterClient(conn)
		log.Debug().Str("remote", c.ClientIP()).Str("client", client.ID()).Msg("websocket connected")
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": hub.ConnectedClients()})
	})
}
