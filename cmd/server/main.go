package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"guruchat-backend/internal/cache"
	"guruchat-backend/internal/config"
	"guruchat-backend/internal/database"
	"guruchat-backend/internal/handlers"
	"guruchat-backend/internal/logger"
	"guruchat-backend/internal/metrics"
	"guruchat-backend/internal/middleware"
	"guruchat-backend/internal/repository"
	"guruchat-backend/internal/router"
	"guruchat-backend/internal/services"
	"guruchat-backend/internal/websocket"
	"guruchat-backend/internal/worker"
	"guruchat-backend/web"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	zlog, err := logger.New(cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("starting GuruChat backend", zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))

	// ──── Step 2: Open the Store ────
	store, err := repository.Open(cfg, zlog)
	if err != nil {
		zlog.Fatal("store initialization failed", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store.Close(ctx)
	}()
	zlog.Info("store ready", zap.String("driver", store.Driver))

	// ──── Step 3: Initialize Redis Clients (optional) ────
	var (
		redisClients *database.RedisClients
		guruCache    cache.GuruCache = cache.NopGuruCache{}
		denylist     cache.SessionDenylist
	)
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("redis connection failed", zap.Error(err))
		}
		defer redisClients.Close()
		guruCache = cache.NewRedisGuruCache(redisClients.Cache, cfg.GuruCacheTTL)
		denylist = cache.NewRedisDenylist(redisClients.Cache)
		zlog.Info("redis connected")
	} else {
		denylist = cache.NewMemoryDenylist()
		zlog.Warn("REDIS_URL not set: guru cache and live updates disabled, logout revocation is per-process")
	}

	collector := metrics.NewCollector("guruchat")
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, cfg.SessionTTL, cfg.IsProduction(), denylist, zlog)

	// ──── Step 4: Initialize Gemini Client ────
	var generator services.Generator
	if cfg.GeminiAPIKey != "" {
		geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, zlog)
		if err != nil {
			zlog.Fatal("gemini client initialization failed", zap.Error(err))
		}
		defer geminiService.Close()
		generator = geminiService
		zlog.Info("gemini client initialized", zap.String("model", cfg.GeminiModel))
	} else {
		zlog.Warn("GEMINI_API_KEY not set: chat requests will fail with a configuration error")
	}

	// ──── Step 5: Start Persistence Worker Pool ────
	workerPool := worker.NewPool(cfg.PersistWorkers, cfg.PersistQueue, cfg.PersistTimeout, zlog)
	workerPool.Start()

	// ──── Initialize Services ────
	guruService := services.NewGuruService(store.Gurus, guruCache, collector, zlog)
	authService := services.NewAuthService(store.Users, jwtAuth, services.DefaultBcryptCost, zlog)
	historyService := services.NewHistoryService(store.Chats, store.Gurus)

	chatCfg := services.ChatServiceConfig{
		Generator: generator,
		Gurus:     guruService,
		Chats:     store.Chats,
		Pool:      workerPool,
		Metrics:   collector,
		Timeout:   cfg.GeminiTimeout,
		Log:       zlog,
	}
	var wsRedis *redis.Client
	if redisClients != nil {
		wsRedis = redisClients.PubSub
		chatCfg.Publisher = websocket.NewPublisher(redisClients.Cache)
	}
	chatService := services.NewChatService(chatCfg)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(wsRedis, jwtAuth, cfg.FrontendURL, zlog)
	defer wsHub.Close()

	// ──── Step 7: Start HTTP Server ────
	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimit)
	defer authLimiter.Close()

	r := router.New(router.Deps{
		JWTAuth:        jwtAuth,
		AuthLimiter:    authLimiter,
		AuthHandler:    handlers.NewAuthHandler(authService, jwtAuth, zlog),
		GuruHandler:    handlers.NewGuruHandler(guruService, zlog),
		ChatHandler:    handlers.NewChatHandler(chatService, zlog),
		HistoryHandler: handlers.NewHistoryHandler(historyService, zlog),
		WSHub:          wsHub,
		Metrics:        collector,
		Pages:          web.Pages,
		HealthCheck:    store.Ping,
		FrontendURL:    cfg.FrontendURL,
		Log:            zlog,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Streams may run for the whole provider timeout.
		WriteTimeout: cfg.GeminiTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		zlog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			zlog.Error("server shutdown failed", zap.Error(err))
		}
		// In-flight streams are done; flush their queued writes.
		workerPool.Stop()
	}()

	zlog.Info("GuruChat backend ready", zap.String("addr", "http://localhost:"+cfg.Port))

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		zlog.Fatal("server error", zap.Error(err))
	}
	<-shutdownDone
}
