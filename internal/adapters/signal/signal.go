// Package signal serves the per-room stage event feed over WebSocket.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/livestage/internal/app"
	"github.com/dkeye/livestage/internal/app/stage"
	"github.com/dkeye/livestage/internal/core"
	"github.com/dkeye/livestage/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// EventsController upgrades authenticated requests to event-feed sessions.
type EventsController struct {
	Registry   *app.Registry
	Stage      *stage.Controller
	ReadLimit  int64
	PingPeriod time.Duration

	upgrader websocket.Upgrader
}

// NewEventsController returns a controller accepting the given origins;
// "*" accepts any origin.
func NewEventsController(reg *app.Registry, ctl *stage.Controller, readLimit int64, pingPeriod time.Duration, origins []string) *EventsController {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &EventsController{
		Registry:   reg,
		Stage:      ctl,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleEvents upgrades the request and subscribes it to s.RoomName. The
// session outlives the request and ends when ctx is cancelled, the client
// goes away, or the subscriber is kicked.
func (ctl *EventsController) HandleEvents(ctx context.Context, c *gin.Context, s domain.Session) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(s.RoomName)).Str("identity", string(s.Identity)).Msg("new WS connection")

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}
	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.Bind(sid, s, conn, cancel)

	go ctl.writePump(ctx, sid, conn)
	go ctl.readPump(ctx, cancel, sid, s, conn)
}
