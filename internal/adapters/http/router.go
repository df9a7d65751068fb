package http

import (
	"context"

	"github.com/dkeye/VoiceMesh/internal/adapters/signal"
	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/config"
	"github.com/dkeye/VoiceMesh/internal/directory"
	"github.com/dkeye/VoiceMesh/internal/identity"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Deps struct {
	Relay     *app.Relay
	Identity  *identity.Provider
	Directory *directory.Service
	Signal    *signal.SignalWSController
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: int(cfg.Auth.TokenTTL.Seconds()), HttpOnly: true})
	r.Use(sessions.Sessions(cfg.Auth.SessionName, store))
	r.Use(IdentityMiddleware(deps.Identity))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{deps: deps, requireAuth: cfg.Signal.RequireAuth}
	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/signup", h.signUp)
	auth.POST("/login", h.login)
	auth.GET("/session", RequireAccount(), h.session)
	auth.POST("/logout", RequireAccount(), h.logout)

	channels := api.Group("/channels")
	channels.GET("", h.listChannels)
	channels.POST("", RequireAccount(), h.createChannel)
	channels.GET("/live", h.liveChannels)
	channels.GET("/events", h.channelEvents)
	channels.GET("/:id", h.getChannel)
	channels.DELETE("/:id", RequireAccount(), h.deleteChannel)
	channels.GET("/:id/members", h.channelMembers)

	api.GET("/ws/signal", func(c *gin.Context) {
		h.signal(ctx, c)
	})

	return r
}
