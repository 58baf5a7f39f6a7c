package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/livestage/internal/app"
	"github.com/dkeye/livestage/internal/captoken"
	"github.com/dkeye/livestage/internal/domain"
)

const (
	sessionKey   = "session"
	requestIDKey = "request_id"
)

// RequestLogger logs one zerolog line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header("X-Request-ID", rid)

		c.Next()

		status := c.Writer.Status()
		level := zerolog.InfoLevel
		switch {
		case status >= 500:
			level = zerolog.ErrorLevel
		case status >= 400:
			level = zerolog.WarnLevel
		}
		ev := log.WithLevel(level).
			Str("module", "adapters.http").
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start))
		if s, ok := c.Get(sessionKey); ok {
			sess := s.(domain.Session)
			ev = ev.Str("room", string(sess.RoomName)).Str("identity", string(sess.Identity))
		}
		ev.Msg("request")
	}
}

// CORS answers preflights and sets allow headers for the configured origins.
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSpace(o)] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
		case allowed["*"]:
			c.Header("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequireSession verifies the capability token in the Authorization header.
// With allowQuery, a ?token= parameter is accepted as well, since browsers
// cannot set headers on a WebSocket handshake.
func RequireSession(v SessionVerifier, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := captoken.FromHeader(c.GetHeader("Authorization"))
		if err != nil && allowQuery {
			if q := c.Query("token"); q != "" {
				raw, err = q, nil
			}
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		s, err := v.Verify(raw)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// RateLimit caps stage actions per room and identity.
func RateLimit(rl *app.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}
		s := sessionOf(c)
		if !rl.Allow(string(s.RoomName) + "/" + string(s.Identity)) {
			abortWithError(c, domain.NewError(domain.KindRateLimited, "too many stage actions, slow down"))
			return
		}
		c.Next()
	}
}

func sessionOf(c *gin.Context) domain.Session {
	s, _ := c.Get(sessionKey)
	sess, _ := s.(domain.Session)
	return sess
}
