// Package console is the terminal client: a websocket session plus a
// Bubble Tea interface over it. It reuses the gateway's envelope and
// payload types so there is one definition of the wire protocol.
package console

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/openfelt/cardroom/internal/gateway"
)

const (
	dialTimeout   = 10 * time.Second
	sendDeadline  = 10 * time.Second
	clientPingGap = 54 * time.Second
)

// Client maintains one websocket session with a cardroom server. Incoming
// frames are delivered on Frames; sends are buffered and never block the
// caller.
type Client struct {
	serverURL string
	token     string
	logger    *log.Logger

	conn   *websocket.Conn
	send   chan *gateway.Envelope
	frames chan *gateway.Envelope

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu        sync.RWMutex
	connected bool
}

// NewClient prepares a session against serverURL, authenticating with token.
func NewClient(serverURL, token string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		serverURL: serverURL,
		token:     token,
		logger:    logger.WithPrefix("client"),
		send:      make(chan *gateway.Envelope, 64),
		frames:    make(chan *gateway.Envelope, 256),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect dials the server and starts the read and write pumps.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	c.logger.Info("connecting", "url", c.serverURL)
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connect rejected: %s", resp.Status)
		}
		return fmt.Errorf("connect failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()

	c.logger.Info("connected")
	return nil
}

// Close tears the session down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.connected = false
		}
		c.mu.Unlock()
		c.logger.Info("disconnected")
	})
}

// Connected reports whether the session is up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Frames is the stream of server frames. It closes when the session ends.
func (c *Client) Frames() <-chan *gateway.Envelope {
	return c.frames
}

func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.frames)
	}()

	for {
		var env gateway.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("read failed", "error", err)
			}
			return
		}
		c.logger.Debug("frame", "event", env.Event)

		select {
		case c.frames <- &env:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(clientPingGap)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(sendDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Error("write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(sendDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) post(event string, payload any) error {
	env, err := gateway.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- env:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		return fmt.Errorf("send buffer full")
	}
}

// Lobby requests the table list.
func (c *Client) Lobby() error {
	return c.post(gateway.EvtLobbyList, struct{}{})
}

// JoinTable starts watching a table.
func (c *Client) JoinTable(tableID string) error {
	return c.post(gateway.EvtTableJoin, gateway.JoinPayload{TableID: tableID})
}

// Sit takes a seat with the given buy-in.
func (c *Client) Sit(tableID string, seatNo int, buyIn int64) error {
	return c.post(gateway.EvtTableSit, gateway.SitPayload{TableID: tableID, SeatNo: seatNo, BuyIn: buyIn})
}

// Leave gives the seat up, now or at the end of the running hand.
func (c *Client) Leave(tableID string) error {
	return c.post(gateway.EvtTableLeave, gateway.LeavePayload{TableID: tableID})
}

// Rebuy tops the stack up between hands.
func (c *Client) Rebuy(tableID string, amount int64) error {
	return c.post(gateway.EvtTableRebuy, gateway.RebuyPayload{TableID: tableID, Amount: amount})
}

// SitOut skips the coming hands without giving the seat up.
func (c *Client) SitOut(tableID string) error {
	return c.post(gateway.EvtTableSitOut, gateway.SitOutPayload{TableID: tableID})
}

// SitIn returns from sitting out.
func (c *Client) SitIn(tableID string) error {
	return c.post(gateway.EvtTableSitIn, gateway.SitInPayload{TableID: tableID})
}

// Action submits a betting decision. The verb is normalized to the wire's
// uppercase form.
func (c *Client) Action(tableID, action string, amount int64) error {
	return c.post(gateway.EvtTableAction, gateway.ActionPayload{
		TableID: tableID,
		Action:  strings.ToUpper(action),
		Amount:  amount,
	})
}

// Chat sends a table chat line.
func (c *Client) Chat(tableID, text string) error {
	return c.post(gateway.EvtChatMessage, gateway.ChatPayload{TableID: tableID, Text: text})
}

// ChatHistory requests the recent chat tail for a table.
func (c *Client) ChatHistory(tableID string) error {
	return c.post(gateway.EvtChatHistory, gateway.ChatHistoryPayload{TableID: tableID})
}
