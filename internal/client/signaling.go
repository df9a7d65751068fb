package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrSignalClosed = errors.New("signaling connection closed")

// Signaler is the client's ordered, bidirectional link to the relay.
type Signaler interface {
	// Send queues ev behind every event sent before it.
	Send(ev protocol.ClientEvent) error
	// Events yields decoded server events and is closed when the link drops.
	Events() <-chan protocol.ServerEvent
	Close() error
}

const (
	signalWriteWait  = 5 * time.Second
	signalSendBuffer = 64
)

type SignalClient struct {
	conn   *websocket.Conn
	send   chan []byte
	events chan protocol.ServerEvent
	done   chan struct{}
	once   sync.Once
}

var _ Signaler = (*SignalClient)(nil)

// DialSignal opens the relay WebSocket at url. A non-empty token is sent
// as a bearer credential.
func DialSignal(ctx context.Context, url, token string) (*SignalClient, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	c := &SignalClient{
		conn:   conn,
		send:   make(chan []byte, signalSendBuffer),
		events: make(chan protocol.ServerEvent, signalSendBuffer),
		done:   make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

func (c *SignalClient) Send(ev protocol.ClientEvent) error {
	frame, err := protocol.EncodeClient(ev)
	if err != nil {
		return err
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrSignalClosed
	}
}

func (c *SignalClient) Events() <-chan protocol.ServerEvent { return c.events }

// Close flushes nothing; queued frames not yet written are lost.
func (c *SignalClient) Close() error {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
	return nil
}

func (c *SignalClient) writePump() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(signalWriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("module", "client.signal").Msg("write failed")
				return
			}
		}
	}
}

func (c *SignalClient) readPump() {
	defer func() {
		close(c.events)
		c.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Warn().Err(err).Str("module", "client.signal").Msg("read failed")
			}
			return
		}
		ev, err := protocol.DecodeServer(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "client.signal").Msg("bad frame")
			continue
		}
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}
