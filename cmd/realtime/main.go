package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/fleetline/realtime/config"
	"github.com/fleetline/realtime/internal/handlers"
	"github.com/fleetline/realtime/internal/hub"
	"github.com/fleetline/realtime/internal/logger"
	"github.com/fleetline/realtime/internal/middleware"
	"github.com/fleetline/realtime/internal/presence"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	log := logger.New(cfg.Logger, "realtime", cfg.Environment)
	log.Info("starting realtime gateway", "port", cfg.Port)

	// Presence mirror is optional; routing works without redis.
	mirror, err := presence.Connect(ctx, cfg.Redis, log)
	if err != nil {
		log.Error("redis connection failed, presence mirror disabled", "addr", cfg.Redis.Addr, "err", err)
	} else if mirror != nil {
		log.Info("presence mirror connected", "addr", cfg.Redis.Addr)
		defer mirror.Close()
	}

	registry := hub.NewRegistry()
	groups := hub.NewGroupIndex()
	router := hub.NewRouter(registry, groups, log)
	relay := hub.NewRelay(router, log)
	lifecycle := hub.NewLifecycle(registry, groups, router, relay, mirror, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())
	engine.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	wsHandler := handlers.NewWSHandler(lifecycle, cfg.WS, log)
	engine.GET("/ws", wsHandler.Handle)

	push := handlers.NewPushHandler(registry, groups, router, log)
	api := engine.Group("/api", middleware.JWTAuth(cfg.JWTSecret))
	{
		api.POST("/send/user", push.SendToUser)
		api.POST("/send/users", push.SendToUsers)
		api.POST("/send/role", push.SendToRole)
		api.POST("/send/all", push.SendToAll)

		api.POST("/chat/message", push.ChatMessage)
		api.POST("/chat/message-read", push.MessageRead)

		api.POST("/calls/incoming", push.CallIncoming)
		api.POST("/calls/answered", push.CallAnswered)
		api.POST("/calls/ended", push.CallEnded)
		api.POST("/calls/rejected", push.CallRejected)

		api.GET("/stats", push.Stats)
	}

	log.Info("listening", "port", cfg.Port)
	if err := engine.Run(":" + cfg.Port); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
