package gateway

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/openfelt/cardroom/internal/engine"
)

// TableRoom names the broadcast room for a table's public events.
func TableRoom(tableID string) string { return "table:" + tableID }

// UserRoom names the private room for one player's events. Hole cards only
// ever travel here.
func UserRoom(userID string) string { return "user:" + userID }

// Hub fans engine events out to room members. It implements
// engine.Broadcaster; the engine calls it while holding table locks, so
// delivery must never block. A member whose send buffer is full is closed
// and dropped.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	rooms   map[string]map[*Connection]struct{}
	joined  map[*Connection]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		log:    logger.With().Str("component", "hub").Logger(),
		rooms:  make(map[string]map[*Connection]struct{}),
		joined: make(map[*Connection]map[string]struct{}),
	}
}

// Join adds the connection to a room. Joining twice is a no-op.
func (h *Hub) Join(room string, c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Connection]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	rooms, ok := h.joined[c]
	if !ok {
		rooms = make(map[string]struct{})
		h.joined[c] = rooms
	}
	rooms[room] = struct{}{}
}

// Leave removes the connection from one room.
func (h *Hub) Leave(room string, c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, c)
}

// Drop removes the connection from every room it joined.
func (h *Hub) Drop(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.joined[c] {
		h.leaveLocked(room, c)
	}
}

func (h *Hub) leaveLocked(room string, c *Connection) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.joined[c]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(h.joined, c)
		}
	}
}

// Occupied reports whether any connection is in the room.
func (h *Hub) Occupied(room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room]) > 0
}

// ToTable delivers an engine event to everyone watching the table.
func (h *Hub) ToTable(tableID string, ev *engine.Event) {
	h.send(TableRoom(tableID), ev)
}

// ToUser delivers an engine event to one player's connections.
func (h *Hub) ToUser(userID string, ev *engine.Event) {
	h.send(UserRoom(userID), ev)
}

func (h *Hub) send(room string, ev *engine.Event) {
	frame, err := encodeEvent(ev)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(ev.Type)).Msg("encode event")
		return
	}

	h.mu.RLock()
	members := make([]*Connection, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(frame)
	}
}
