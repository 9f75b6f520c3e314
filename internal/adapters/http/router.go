package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pbazhin/studyhub/internal/adapters/ws"
	"github.com/pbazhin/studyhub/internal/auth"
	"github.com/pbazhin/studyhub/internal/config"
	sessionsvc "github.com/pbazhin/studyhub/internal/sessions"
)

// ClientTokenMiddleware tags every browser with a stable client token so
// reconnects are attributable in logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter wires the REST surface and the WebSocket upgrade.
func SetupRouter(ctx context.Context, cfg *config.Config, svc *sessionsvc.Service, wsCtl *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("StudyhubSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &SessionHandler{Sessions: svc}

	api := r.Group("/api", auth.Middleware(cfg.Secret))
	api.POST("/sessions/create", h.Create)
	api.GET("/sessions", h.List)
	api.POST("/sessions/:id/join", h.Join)
	api.PUT("/sessions/:id", h.Update)
	api.POST("/sessions/:id/leave", h.Leave)
	api.POST("/sessions/:id/raise-hand", h.RaiseHand)

	r.GET("/ws", auth.Middleware(cfg.Secret), func(c *gin.Context) {
		wsCtl.HandleWS(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
