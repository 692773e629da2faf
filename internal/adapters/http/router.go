package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Gather/internal/adapters/signal"
	"github.com/dkeye/Gather/internal/app"
	"github.com/dkeye/Gather/internal/config"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, registry *app.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("GatherSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/health", handleHealth)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	rooms := &RoomHandlers{Registry: registry}
	wsCtl := signal.NewRoomWSController(registry, cfg)

	api := r.Group("/api")
	api.POST("/rooms", rooms.Create)
	api.GET("/rooms/:code", rooms.Get)
	api.DELETE("/rooms/:code", rooms.Delete)
	api.GET("/ws/rooms/:code", func(c *gin.Context) {
		wsCtl.HandleRoom(ctx, c)
	})

	return r
}

func handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{"status": "healthy"})
}
