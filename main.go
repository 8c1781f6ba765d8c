package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"climate-repair-server/config"
	"climate-repair-server/database"
	"climate-repair-server/jobs"
	"climate-repair-server/middleware"
	"climate-repair-server/routes"
	"climate-repair-server/services"
	ws "climate-repair-server/websocket"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Live request feed; Redis carries events between instances when configured.
	hub := ws.NewHub()
	go hub.Run(ctx)
	var publisher services.EventPublisher = ws.NewBroadcaster(hub)
	if cfg.Redis.Addr != "" {
		rdb := ws.NewRedis(cfg.Redis)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis: unavailable, events stay local: %v", err)
		} else {
			bridge := ws.NewRedisBridge(rdb, publisher)
			go bridge.Run(ctx)
			publisher = bridge
		}
	}

	users := services.NewUserDirectory(db)
	tokens := services.NewTokenService(cfg.JWT)

	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.AccessLogger(gin.DefaultWriter))
	router.Use(gin.Recovery())

	// Disable automatic redirects for trailing slashes
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	apiLimiter := middleware.NewRateLimiter(cfg.RateLimit.PerMinute)
	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.AuthPerMinute)

	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(middleware.InputValidationMiddleware())
	router.Use(apiLimiter.Middleware())
	router.Use(middleware.AuditLogMiddleware())

	routes.Register(router, routes.Dependencies{
		Users:       users,
		Requests:    services.NewRequestService(db, publisher),
		Feedback:    services.NewFeedbackLedger(db, publisher),
		Statistics:  services.NewStatisticsService(db),
		Tokens:      tokens,
		Auth:        middleware.NewAuthenticator(tokens, users),
		AuthLimiter: authLimiter,
		Hub:         hub,
		Upgrader:    ws.Upgrader(cfg.CORS.AllowedOrigins),
		SurveyURL:   cfg.Feedback.SurveyURL,
	})

	sweepers := []*jobs.Sweeper{
		jobs.NewSweeper("api rate limiter", 10*time.Minute, apiLimiter.Cleanup),
		jobs.NewSweeper("auth rate limiter", 10*time.Minute, authLimiter.Cleanup),
	}
	for _, s := range sweepers {
		s.Start()
		defer s.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
