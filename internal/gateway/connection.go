package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/openfelt/cardroom/internal/auth"
	"github.com/openfelt/cardroom/internal/engine"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Outbound frames buffered per connection before it is dropped
	sendBuffer = 256
)

// Connection wraps one websocket with its authenticated identity and an
// outbound queue drained by the write pump.
type Connection struct {
	ws   *websocket.Conn
	send chan []byte
	user auth.Identity
	log  zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newConnection(ws *websocket.Conn, user auth.Identity, logger zerolog.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		user:   user,
		log:    logger.With().Str("component", "conn").Str("user_id", user.UserID).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// User returns the identity bound at upgrade time.
func (c *Connection) User() auth.Identity { return c.user }

// Done closes when the connection is finished.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

func (c *Connection) start(s *Server) {
	go c.writePump()
	go c.readPump(s)
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		_ = c.ws.Close()
	})
}

// enqueue queues a pre-encoded frame without blocking. A full buffer means
// the peer stopped reading; the connection is closed instead of stalling
// the caller.
func (c *Connection) enqueue(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			// Send channel closed during shutdown
			c.log.Debug().Msg("enqueue on closed connection")
		}
	}()

	select {
	case <-c.ctx.Done():
	case c.send <- frame:
	default:
		c.log.Warn().Msg("send buffer full, dropping connection")
		c.close()
	}
}

// sendEvent delivers an engine event to this connection only.
func (c *Connection) sendEvent(ev *engine.Event) {
	frame, err := encodeEvent(ev)
	if err != nil {
		c.log.Error().Err(err).Str("event", string(ev.Type)).Msg("encode event")
		return
	}
	c.enqueue(frame)
}

// sendData wraps data in an envelope and delivers it to this connection.
func (c *Connection) sendData(event string, data any) {
	env, err := NewEnvelope(event, data)
	if err != nil {
		c.log.Error().Err(err).Str("event", event).Msg("encode envelope")
		return
	}
	frame, err := json.Marshal(env)
	if err != nil {
		c.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}
	c.enqueue(frame)
}

// sendError reports a rejected request to this connection only.
func (c *Connection) sendError(code engine.Code, message string) {
	c.sendEvent(&engine.Event{Type: engine.EventError, Code: code, Message: message})
}

// readPump pulls envelopes off the wire and hands them to the dispatcher.
func (c *Connection) readPump(s *Server) {
	defer func() {
		c.close()
		s.connectionClosed(c)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Error().Err(err).Msg("websocket read")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError(codeBadMessage, "malformed envelope")
			continue
		}
		s.dispatch(c, &env)
	}
}

// writePump drains the send queue and keeps the peer alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug().Err(err).Msg("websocket write")
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
