package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, h core.ConnHandle, c *WsSignalConn) {
	ping := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ping.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("handle", string(h)).Msg("writePump ctx done")
			return
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("handle", string(h)).Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("handle", string(h)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("handle", string(h)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("handle", string(h)).Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, h core.ConnHandle, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("handle", string(h)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.relay.Disconnect(h)
	}()

	pongWait := ctl.cfg.PongWait()
	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("handle", string(h)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("handle", string(h)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleFrame(h, data)
		}
	}
}

// handleFrame decodes once and hands the typed event to the relay. Frames
// that do not decode are dropped; the connection stays up.
func (ctl *SignalWSController) handleFrame(h core.ConnHandle, data []byte) {
	ev, err := protocol.DecodeClient(data)
	if err != nil {
		lvl := log.Warn()
		if errors.Is(err, protocol.ErrUnknownEvent) {
			lvl = log.Debug()
		}
		lvl.Err(err).Str("module", "signal").Str("handle", string(h)).Msg("bad frame")
		return
	}
	ctl.relay.Dispatch(h, ev)
}
