package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/livestage/internal/adapters/signal"
	"github.com/dkeye/livestage/internal/app"
	"github.com/dkeye/livestage/internal/app/stage"
	"github.com/dkeye/livestage/internal/config"
	"github.com/dkeye/livestage/internal/domain"
)

// SessionVerifier turns a capability token into the caller's session.
type SessionVerifier interface {
	Verify(token string) (domain.Session, error)
}

// Deps are the collaborators the router needs. Events and Limiter may be nil.
type Deps struct {
	Stage   *stage.Controller
	Tokens  SessionVerifier
	Events  *signal.EventsController
	Limiter *app.RateLimiter
}

// SetupRouter wires the HTTP routes.
//   - entry paths (create_stream, join_stream, create_ingress) are public
//   - stage actions under /api require a capability token
//   - /api/ws/events upgrades to the room's event feed
func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORS(cfg.CORS.AllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{stage: deps.Stage}
	api := r.Group("/api")

	api.POST("/create_stream", h.createStream)
	api.POST("/join_stream", h.joinStream)
	api.POST("/create_ingress", h.createIngress)

	authed := api.Group("", RequireSession(deps.Tokens, false))
	authed.GET("/room", h.room)
	authed.POST("/stop_stream", h.stopStream)

	actions := authed.Group("", RateLimit(deps.Limiter))
	actions.POST("/raise_hand", h.raiseHand)
	actions.POST("/invite_to_stage", h.inviteToStage)
	actions.POST("/remove_from_stage", h.removeFromStage)

	if deps.Events != nil {
		api.GET("/ws/events", RequireSession(deps.Tokens, true), func(c *gin.Context) {
			deps.Events.HandleEvents(ctx, c, sessionOf(c))
		})
	}

	if deps.Limiter != nil {
		go sweepLimiter(ctx, deps.Limiter, cfg.RateLimit.Interval)
	}

	log.Info().Str("module", "adapters.http").Bool("events", deps.Events != nil).Bool("rate_limit", deps.Limiter != nil).Msg("router setup")
	return r
}

func sweepLimiter(ctx context.Context, rl *app.RateLimiter, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.Sweep()
		}
	}
}
