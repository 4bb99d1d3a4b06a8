package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regulaite-backend/bootstrap"
	"regulaite-backend/config"
	"regulaite-backend/handlers"
	"regulaite-backend/repository"
	"regulaite-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load .env from the working directory or the project root (relative to cmd/server/)
	foundEnv := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := bootstrap.NewLogger(cfg.Server)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if !foundEnv {
		logger.Warn("No .env file found, using environment variables")
	}

	ctx := context.Background()

	// Initialize database connection
	db, err := bootstrap.OpenDatabase(ctx, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Postgres", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
	}

	// Initialize storage
	chatStorage, err := bootstrap.NewStorage(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	logger.Info("Storage initialized", zap.String("type", cfg.Storage.Type))

	// Initialize services
	var (
		answerOpts   []service.AnswerServiceOption
		queryHandler *handlers.QueryLogHandler
	)
	authOpts := []service.AuthServiceOption{
		service.AuthWithFixedUsers(config.ParseUsers(cfg.Auth.Users)),
		service.AuthWithSignup(cfg.Auth.AllowSignup),
		service.AuthWithLogger(logger),
	}
	if db != nil {
		queryLogs := repository.NewQueryLogRepository(db)
		answerOpts = append(answerOpts, service.AnswerWithQueryLogger(queryLogs))
		authOpts = append(authOpts, service.AuthWithUserStore(repository.NewUserRepository(db)))
		queryHandler = handlers.NewQueryLogHandler(queryLogs)
	}

	answerService, cleanup, err := bootstrap.AnswerService(ctx, cfg, logger, answerOpts...)
	if err != nil {
		logger.Fatal("Failed to initialize answer backends", zap.Error(err))
	}
	defer cleanup()

	historyService := service.NewHistoryService(chatStorage, service.HistoryWithLogger(logger))
	authService := service.NewAuthService(authOpts...)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("JWT_SECRET not set, using a random secret; sessions will not survive a restart")
	}
	tokens := service.NewTokenManager(secret, cfg.Auth.TokenTTL)

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(answerService, historyService, handlers.ChatDefaults{
		TopK:       cfg.Retrieval.TopK,
		Evidence:   cfg.Retrieval.EvidenceMode,
		WebEnabled: cfg.Search.Enabled,
	}, logger)
	authHandler := handlers.NewAuthHandler(authService, tokens, logger)

	// Setup Gin router
	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	r.Use(handlers.RequestLogger(logger), gin.Recovery())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"database": db != nil,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterRoutes(r, chatHandler, authHandler, queryHandler, tokens)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
