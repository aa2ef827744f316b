package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/dengue-gen/denguegen-backend/internal/db"
	"github.com/dengue-gen/denguegen-backend/internal/handlers"
	"github.com/dengue-gen/denguegen-backend/internal/kv"
	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/middleware"
	"github.com/dengue-gen/denguegen-backend/internal/server"
	"github.com/dengue-gen/denguegen-backend/internal/services"
	"github.com/dengue-gen/denguegen-backend/internal/socket"
	"github.com/dengue-gen/denguegen-backend/internal/utils"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Logger Setup
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if logMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Environment Variables
	log.Info("Attempting to load environment variables for Main now...")
	port := utils.GetEnv("PORT", "8080", log)
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	sessionTTL := utils.GetEnvAsDuration("SESSION_TTL", 24*time.Hour, log)
	secureCookie := logMode == "production"
	kvBackend := utils.GetEnv("KV_BACKEND", "memory", log)
	redisAddress := utils.GetEnv("REDIS_ADDRESS", "localhost:6379", log)
	redisPassword := utils.GetEnv("REDIS_PASSWORD", "", log)
	redisDB := utils.GetEnvAsInt("REDIS_DB", 0, log)
	redisKeyRoot := utils.GetEnv("REDIS_KEY_ROOT", "denguegen:", log)
	proxyUpstream := utils.GetEnv("PROXY_UPSTREAM_URL", services.DefaultProxyUpstream, log)
	chatMockDelay := utils.GetEnvAsDuration("CHAT_MOCK_DELAY", time.Second, log)
	corsOrigins := utils.GetEnvAsList("CORS_ORIGINS", nil, log)
	sendRate := utils.GetEnvAsFloat("SEND_RATE_PER_SEC", 2, log)
	sendBurst := utils.GetEnvAsInt("SEND_BURST", 5, log)
	avatarColorsPath := utils.GetEnv("AVATAR_COLORS_PATH", "", log)
	avatarFontPath := utils.GetEnv("AVATAR_FONT_PATH", "", log)
	log.Debug("Environment variables loaded for Main :)",
		"port", port,
		"sessionTTL", sessionTTL,
		"kvBackend", kvBackend,
		"redisAddress", redisAddress,
		"proxyUpstream", proxyUpstream,
		"chatMockDelay", chatMockDelay,
	)

	// Websocket Setup
	log.Info("Setting Up Websocket Hub From Main now...")
	wsHub := socket.NewHub(log)
	log.Info("Websocket Hub Set Up From Main Successful :)")

	// Storage Setup
	log.Info("Setting Up KV Store from Main now...", "backend", kvBackend)
	var (
		store       kv.Store
		redisPubSub *socket.RedisPubSub
	)
	switch kvBackend {
	case "redis":
		rdb, err := db.NewRedisClient(log, redisAddress, redisPassword, redisDB)
		if err != nil {
			log.Error("Fatal error: Cannot connect to Redis", "error", err)
			os.Exit(1)
		}
		store = kv.NewRedisStore(rdb, redisKeyRoot)
		redisPubSub = startPubSub(log, rdb, wsHub)
	case "postgres":
		postgresService, err := db.NewPostgresService(log)
		if err != nil {
			log.Error("Fatal error: Cannot connect to Postgres", "error", err)
			os.Exit(1)
		}
		if err := postgresService.AutoMigrateAll(); err != nil {
			log.Error("Fatal error: Postgres auto migration failed", "error", err)
			os.Exit(1)
		}
		store = kv.NewPostgresStore(postgresService.DB())
	case "memory":
		store = kv.NewMemoryStore()
	default:
		log.Error("Fatal error: unknown KV_BACKEND", "backend", kvBackend)
		os.Exit(1)
	}
	log.Info("KV Store Set Up From Main Successful :)")

	// Services Setup
	log.Info("Setting up Services from Main now...")
	authService, err := services.NewAuthService(log, jwtSecretKey, sessionTTL)
	if err != nil {
		log.Error("Fatal error: Cannot init AuthService", "error", err)
		os.Exit(1)
	}
	avatarService, err := services.NewAvatarService(log, avatarColorsPath, avatarFontPath)
	if err != nil {
		log.Error("Fatal error: Cannot init AvatarService", "error", err)
		os.Exit(1)
	}
	sessionManager := services.NewSessionManager(services.SessionManagerConfig{
		Store:    store,
		Notifier: wsHub,
		Timings:  services.DefaultStatusTimings(),
		Log:      log,
		Now:      time.Now,
	})
	mockChatService := services.NewMockChatService(log, chatMockDelay)
	proxyService := services.NewProxyService(log, proxyUpstream, nil)
	log.Info("Services Set Up From Main Successful :)")

	// Handler Setup
	log.Info("Setting Up Handlers from Main now...")
	authHandler := handlers.NewAuthHandler(log, authService, sessionManager, secureCookie)
	chatHandler := handlers.NewChatHandler(log, mockChatService)
	chatsHandler := handlers.NewChatsHandler(log, sessionManager)
	avatarHandler := handlers.NewAvatarHandler(log, avatarService, sessionManager)
	proxyHandler := handlers.NewProxyHandler(log, proxyService)
	wsHandler := handlers.WsHandler(wsHub, log)
	log.Info("Handlers Set Up From Main Successful :)")

	// MiddleWare Setup
	log.Info("Setting Up Middleware from Main now...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)
	sendLimiter := middleware.NewRateLimiter(sendRate, sendBurst, log)
	log.Info("Middleware Set Up From Main Successful :)")

	// Router Setup
	log.Info("Setting Up Router from Main now...")
	router := server.NewRouter(server.RouterConfig{
		Log:            log,
		AllowOrigins:   corsOrigins,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		ChatHandler:    chatHandler,
		ChatsHandler:   chatsHandler,
		AvatarHandler:  avatarHandler,
		ProxyHandler:   proxyHandler,
		SendLimiter:    sendLimiter,
		WsHandler:      wsHandler,
	})
	log.Info("Router Set Up From Main Successful :)")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// On Shutdown
	log.Info("Shutting down server now...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server forced to shutdown", "error", err)
	}
	sessionManager.CloseAll()
	if redisPubSub != nil {
		redisPubSub.Stop()
	}
	if err := store.Close(); err != nil {
		log.Warn("Failed to close KV store", "error", err)
	}
	log.Info("Shutdown complete :)")
}

// startPubSub fans hub broadcasts out to the other nodes over redis. Failure
// leaves the hub node-local.
func startPubSub(log *logger.Logger, rdb *redis.Client, hub *socket.Hub) *socket.RedisPubSub {
	log.Info("Setting Up Redis PubSub From Main now...")
	channel := utils.GetEnv("REDIS_PUBSUB_CHANNEL", socket.DefaultPubSubChannel, log)
	rp := socket.NewRedisPubSub(log, rdb, channel)
	if err := rp.StartSubscriber(hub); err != nil {
		log.Warn("Failed to subscribe to Redis pub/sub", "error", err)
		return nil
	}
	hub.SetRedisPubSub(rp)
	log.Info("Successfully Set up Redis Pub Sub From Main :)")
	return rp
}
