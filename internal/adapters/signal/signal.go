package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/config"
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type SignalWSController struct {
	relay *app.Relay
	cfg   config.SignalConfig
}

func NewSignalWSController(relay *app.Relay, cfg config.SignalConfig) *SignalWSController {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = 54 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 5 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 32768
	}
	return &SignalWSController{relay: relay, cfg: cfg}
}

// WsSignalConn is the relay's view of one WebSocket: a bounded outbound
// queue drained by writePump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and attaches the connection to the
// relay. identity is the authenticated account, or nil.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, identity *domain.Participant) {
	handle := core.ConnHandle(uuid.NewString())
	logger := log.With().Str("module", "signal").Str("handle", string(handle)).Logger()
	if identity != nil {
		logger = logger.With().Str("user", string(identity.ID)).Logger()
	}
	logger.Info().Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.cfg.SendBuffer),
	}
	ctl.relay.Connect(handle, conn, identity)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, handle, conn)
	go ctl.readPump(ctx, cancel, handle, conn)
}
