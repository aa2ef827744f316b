package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dengue-gen/denguegen-backend/internal/handlers"
	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/middleware"
)

var defaultAllowOrigins = []string{
	"http://localhost:3000",
}

type RouterConfig struct {
	Log            *logger.Logger
	AllowOrigins   []string
	AuthHandler    *handlers.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	ChatHandler    *handlers.ChatHandler
	ChatsHandler   *handlers.ChatsHandler
	AvatarHandler  *handlers.AvatarHandler
	ProxyHandler   *handlers.ProxyHandler
	SendLimiter    *middleware.RateLimiter
	WsHandler      gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.AttachRequestContext())
	router.Use(middleware.RequestLogger(cfg.Log))
	router.Use(middleware.Metrics())

	//-----------------------------------------
	// Cors Setup
	//-----------------------------------------
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = defaultAllowOrigins
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	//-----------------------------------------
	// Health & Metrics Routes
	//-----------------------------------------
	router.GET("/healthz", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	//-----------------------------------------
	// Public Routes
	//-----------------------------------------
	api := router.Group("/api")
	{
		api.POST("/auth", cfg.AuthHandler.Post)
		api.GET("/auth", cfg.AuthHandler.Get)
		api.POST("/chat", cfg.ChatHandler.Post)
		api.GET("/chat", cfg.ChatHandler.Get)

		proxy := api.Group("/proxy/tactiq")
		proxy.OPTIONS("/*path", cfg.ProxyHandler.Preflight)
		for _, method := range []string{"GET", "POST", "PUT", "DELETE"} {
			proxy.Handle(method, "/*path", cfg.ProxyHandler.Forward)
		}
	}

	//------------------------------------------
	// Protected Routes
	//------------------------------------------
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	protected.GET("/ws", cfg.WsHandler)
	protected.GET("/session", cfg.ChatsHandler.Session)

	//Chats
	protected.GET("/chats", cfg.ChatsHandler.ListChats)
	protected.POST("/chats", cfg.ChatsHandler.CreateChat)
	protected.POST("/chats/:chatId/select", cfg.ChatsHandler.SelectChat)
	protected.PATCH("/chats/:chatId", cfg.ChatsHandler.RenameChat)
	protected.DELETE("/chats/:chatId", cfg.ChatsHandler.DeleteChat)
	protected.GET("/chats/:chatId/avatar.png", cfg.AvatarHandler.ChatAvatar)

	//Messages
	protected.GET("/chats/:chatId/messages", cfg.ChatsHandler.ListMessages)
	protected.POST("/chats/:chatId/messages", cfg.SendLimiter.Limit("send_message"), cfg.ChatsHandler.SendMessage)
	protected.PATCH("/chats/:chatId/messages/:messageId", cfg.ChatsHandler.EditMessage)
	protected.DELETE("/chats/:chatId/messages/:messageId", cfg.ChatsHandler.DeleteMessage)

	//Search
	protected.GET("/search", cfg.ChatsHandler.Search)
	protected.POST("/search/recent", cfg.ChatsHandler.RecordSearch)
	protected.DELETE("/search/recent", cfg.ChatsHandler.ClearRecentSearches)

	//Onboarding
	protected.GET("/onboarding", cfg.ChatsHandler.Onboarding)
	protected.POST("/onboarding", cfg.ChatsHandler.CompleteOnboarding)

	return router
}
