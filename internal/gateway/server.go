// Package gateway exposes the engine over websockets. It owns the
// connection lifecycle, the room hub that fans engine events out and the
// translation between wire messages and engine calls. The engine never
// imports this package; events reach it through the Broadcaster port.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/openfelt/cardroom/internal/auth"
	"github.com/openfelt/cardroom/internal/engine"
	"github.com/openfelt/cardroom/internal/kv"
	"github.com/openfelt/cardroom/internal/store"
)

// Stats observes connection lifecycle. The metrics package implements it.
type Stats interface {
	ConnectionOpened()
	ConnectionClosed()
}

type nopStats struct{}

func (nopStats) ConnectionOpened() {}
func (nopStats) ConnectionClosed() {}

// Options wires the server's collaborators.
type Options struct {
	Log      zerolog.Logger
	Engine   *engine.Engine
	Store    store.Store
	KV       kv.Store
	Verifier auth.Verifier
	Hub      *Hub

	// StartingBalance seeds the wallet of a first-time player.
	StartingBalance int64

	// Stats is optional; nil means no counters.
	Stats Stats

	// CheckOrigin is optional; nil allows every origin.
	CheckOrigin func(r *http.Request) bool
}

// Server upgrades websockets, authenticates them and dispatches their
// messages to the engine.
type Server struct {
	log      zerolog.Logger
	engine   *engine.Engine
	store    store.Store
	verifier auth.Verifier
	hub      *Hub
	chat     *chatLog
	stats    Stats
	starting int64
	upgrader websocket.Upgrader
}

// New builds the gateway server. Options.Engine, Store, KV, Verifier and
// Hub are required.
func New(opts Options) *Server {
	stats := opts.Stats
	if stats == nil {
		stats = nopStats{}
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	logger := opts.Log.With().Str("component", "gateway").Logger()
	return &Server{
		log:      logger,
		engine:   opts.Engine,
		store:    opts.Store,
		verifier: opts.Verifier,
		hub:      opts.Hub,
		chat:     newChatLog(opts.KV, opts.Log),
		stats:    stats,
		starting: opts.StartingBalance,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Handler returns the HTTP surface: the websocket endpoint and a liveness
// probe. Metrics are mounted by the caller so the gateway does not depend
// on the registry.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// bearerToken extracts the token from the query string or the
// Authorization header. Browsers cannot set headers on websocket dials,
// so the query form is primary.
func bearerToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	identity, err := s.verifier.Verify(r.Context(), bearerToken(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			http.Error(w, "invalid token", http.StatusUnauthorized)
		case errors.Is(err, auth.ErrUnavailable):
			http.Error(w, "auth unavailable", http.StatusServiceUnavailable)
		default:
			http.Error(w, "auth failed", http.StatusInternalServerError)
		}
		return
	}

	if err := s.store.EnsureUser(r.Context(), identity.UserID, identity.Username, s.starting); err != nil {
		s.log.Error().Err(err).Str("user_id", identity.UserID).Msg("ensure user")
		http.Error(w, "account unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade")
		return
	}

	conn := newConnection(ws, *identity, s.log)
	s.hub.Join(UserRoom(identity.UserID), conn)
	s.stats.ConnectionOpened()
	s.log.Info().Str("user_id", identity.UserID).Str("username", identity.Username).Msg("client connected")

	balance, err := s.store.Balance(context.Background(), identity.UserID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", identity.UserID).Msg("load balance")
	}
	conn.sendData(EvtWelcome, WelcomeData{
		UserID:   identity.UserID,
		Username: identity.Username,
		Balance:  balance,
	})

	conn.start(s)
}

// connectionClosed runs once per connection when its read pump exits. The
// player's seats queue a departure only when their last connection goes.
func (s *Server) connectionClosed(c *Connection) {
	s.hub.Drop(c)
	s.stats.ConnectionClosed()

	userID := c.user.UserID
	if !s.hub.Occupied(UserRoom(userID)) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.engine.Disconnect(ctx, userID)
	}
	s.log.Info().Str("user_id", userID).Msg("client disconnected")
}
