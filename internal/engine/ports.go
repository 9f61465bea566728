package engine

import (
	"github.com/openfelt/cardroom/internal/deck"
	"github.com/openfelt/cardroom/internal/eval"
)

// EventType discriminates engine events on the wire.
type EventType string

const (
	EventStateSnapshot  EventType = "STATE_SNAPSHOT"
	EventHandStarted    EventType = "HAND_STARTED"
	EventPrivateCards   EventType = "PRIVATE_CARDS"
	EventShowdownReveal EventType = "SHOWDOWN_REVEAL"
	EventHandEnded      EventType = "HAND_ENDED"
	EventPlayerKicked   EventType = "PLAYER_KICKED"
	EventLeavePending   EventType = "LEAVE_PENDING"
	EventChatMessage    EventType = "CHAT_MESSAGE"
	EventError          EventType = "ERROR"
)

// Hand-end reasons.
const (
	EndReasonFold     = "fold"
	EndReasonShowdown = "showdown"
)

// Departure reasons.
const (
	DepartLeave    = "leave"
	DepartAwayKick = "away_kick"
)

// Reveal is one seat's cards turned face up at showdown.
type Reveal struct {
	Seat     int         `json:"seat"`
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Cards    []deck.Card `json:"cards"`
	Value    eval.Value  `json:"value"`
	Hand     string      `json:"hand"`
}

// Winner is one seat's share of the pot.
type Winner struct {
	Seat   int    `json:"seat"`
	UserID string `json:"userId"`
	Payout int64  `json:"payout"`
}

// Event is the engine's outbound message. Type decides which of the
// optional fields are set.
type Event struct {
	Type       EventType   `json:"type"`
	TableID    string      `json:"tableId"`
	HandID     string      `json:"handId,omitempty"`
	Snapshot   *Snapshot   `json:"snapshot,omitempty"`
	Cards      []deck.Card `json:"cards,omitempty"`
	DealerSeat int         `json:"dealerSeat,omitempty"`
	Reveals    []Reveal    `json:"reveals,omitempty"`
	Winners    []Winner    `json:"winners,omitempty"`
	Pot        int64       `json:"pot,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Seat       int         `json:"seat,omitempty"`
	UserID     string      `json:"userId,omitempty"`
	Username   string      `json:"username,omitempty"`
	Message    string      `json:"message,omitempty"`
	SentAt     int64       `json:"sentAt,omitempty"`
	Code       Code        `json:"code,omitempty"`
}

// Broadcaster delivers engine events to connected clients. Implementations
// must not block: the engine calls these while holding the table's write
// lock.
type Broadcaster interface {
	ToTable(tableID string, event *Event)
	ToUser(userID string, event *Event)
}

// NopBroadcaster drops every event.
type NopBroadcaster struct{}

func (NopBroadcaster) ToTable(string, *Event) {}
func (NopBroadcaster) ToUser(string, *Event)  {}

// HandEnd summarizes a finished hand for monitors.
type HandEnd struct {
	TableID string
	HandID  string
	Board   []deck.Card
	Pot     int64
	Reason  string
	Winners []Winner
}

// Monitor observes engine activity. Implementations must be cheap and must
// never fail the hand; anything slow belongs behind a queue.
type Monitor interface {
	HandStarted(tableID, handID string, players int)
	HandEnded(end HandEnd)
	ActionApplied(tableID string, action Action, timeout bool)
	TimerFired(tableID string)
	PlayerKicked(tableID, userID string)
}

// NullMonitor ignores everything. Embed it to implement only part of the
// Monitor interface.
type NullMonitor struct{}

func (NullMonitor) HandStarted(string, string, int)    {}
func (NullMonitor) HandEnded(HandEnd)                  {}
func (NullMonitor) ActionApplied(string, Action, bool) {}
func (NullMonitor) TimerFired(string)                  {}
func (NullMonitor) PlayerKicked(string, string)        {}

// MultiMonitor fans out to several monitors in order.
type MultiMonitor []Monitor

func (m MultiMonitor) HandStarted(tableID, handID string, players int) {
	for _, mon := range m {
		mon.HandStarted(tableID, handID, players)
	}
}

func (m MultiMonitor) HandEnded(end HandEnd) {
	for _, mon := range m {
		mon.HandEnded(end)
	}
}

func (m MultiMonitor) ActionApplied(tableID string, action Action, timeout bool) {
	for _, mon := range m {
		mon.ActionApplied(tableID, action, timeout)
	}
}

func (m MultiMonitor) TimerFired(tableID string) {
	for _, mon := range m {
		mon.TimerFired(tableID)
	}
}

func (m MultiMonitor) PlayerKicked(tableID, userID string) {
	for _, mon := range m {
		mon.PlayerKicked(tableID, userID)
	}
}
