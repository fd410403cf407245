package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"quizduel/config"
	"quizduel/handlers"
	"quizduel/logger"
	"quizduel/middleware"
	"quizduel/routes"
	"quizduel/services"
	"quizduel/store"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	// Load configuration
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	roomStore := store.NewGormStore(db)
	if err := roomStore.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, notifications will retry per update")
	}

	// Push hand-off
	var deliverer services.Deliverer = services.LogDeliverer{}
	amqpConn, err := config.InitAMQP(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to message broker")
	}
	if amqpConn != nil {
		defer amqpConn.Close()
		amqpDeliverer, err := services.NewAMQPDeliverer(amqpConn, cfg.PushQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up push queue")
		}
		defer amqpDeliverer.Close()
		deliverer = amqpDeliverer
	}

	// Initialize services
	quizService, err := services.NewQuizService(roomStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load quiz bank")
	}
	badgeService := services.NewBadgeService(roomStore)
	tokens := services.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	roomService := services.NewRoomService(roomStore, quizService, services.WithAwarder(badgeService))

	// Initialize WebSocket hub
	hub := services.NewHub(roomService, tokens, cfg.WSMessageRPS, cfg.WSMessageBurst)
	go hub.Run(ctx)

	notifier := services.NewNotifier(store.NewRedisSnapshotCache(redisClient), deliverer, hub)
	go notifier.Run(ctx)

	roomService.AddListener(hub)
	roomService.AddListener(notifier)

	// Initialize handlers
	roomHandler := handlers.NewRoomHandler(roomService)
	quizHandler := handlers.NewQuizHandler(quizService, badgeService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	routes.SetupRoutes(router, roomHandler, quizHandler, hub, tokens,
		middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
