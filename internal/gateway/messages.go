package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/openfelt/cardroom/internal/engine"
)

// Client to server event names.
const (
	EvtTableJoin   = "table:join"
	EvtTableSit    = "table:sit"
	EvtTableLeave  = "table:leave"
	EvtTableRebuy  = "table:rebuy"
	EvtTableSitOut = "table:sit_out"
	EvtTableSitIn  = "table:sit_in"
	EvtTableAction = "table:action"
	EvtChatMessage = "chat:message"
	EvtChatHistory = "chat:history"
	EvtLobbyList   = "lobby:list"
)

// Server to client event names that do not come from the engine.
const (
	EvtWelcome  = "WELCOME"
	EvtLobby    = "LOBBY"
	EvtChatTail = "CHAT_HISTORY"
)

// Gateway-level error codes, same wire shape as engine codes.
const (
	codeUnknownEvent engine.Code = "UNKNOWN_EVENT"
	codeBadMessage   engine.Code = "BAD_MESSAGE"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps data under an event name.
func NewEnvelope(event string, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return &Envelope{Event: event, Data: raw}, nil
}

// encodeEvent turns an engine event into a ready-to-send frame. Encoding
// once here lets the hub hand the same bytes to every room member.
func encodeEvent(ev *engine.Event) ([]byte, error) {
	env, err := NewEnvelope(string(ev.Type), ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// JoinPayload subscribes the connection to a table's broadcasts.
type JoinPayload struct {
	TableID string `json:"tableId"`
}

// SitPayload claims a seat with a buy-in from the caller's wallet.
type SitPayload struct {
	TableID string `json:"tableId"`
	SeatNo  int    `json:"seatNo"`
	BuyIn   int64  `json:"buyIn"`
}

// LeavePayload gives up the caller's seat.
type LeavePayload struct {
	TableID string `json:"tableId"`
}

// RebuyPayload tops up the caller's stack between hands.
type RebuyPayload struct {
	TableID string `json:"tableId"`
	Amount  int64  `json:"amount"`
}

// SitOutPayload and SitInPayload toggle the away state.
type SitOutPayload struct {
	TableID string `json:"tableId"`
}

type SitInPayload struct {
	TableID string `json:"tableId"`
}

// ActionPayload is a betting decision for the caller's current turn.
type ActionPayload struct {
	TableID string `json:"tableId"`
	Action  string `json:"action"`
	Amount  int64  `json:"amount,omitempty"`
}

// ChatPayload posts a message to the table chat.
type ChatPayload struct {
	TableID string `json:"tableId"`
	Text    string `json:"text"`
}

// ChatHistoryPayload requests the recent chat tail.
type ChatHistoryPayload struct {
	TableID string `json:"tableId"`
}

// WelcomeData greets a freshly authenticated connection.
type WelcomeData struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Balance  int64  `json:"balance"`
}

// LobbyTable is one configured table in the lobby listing.
type LobbyTable struct {
	TableID    string `json:"tableId"`
	Name       string `json:"name"`
	SmallBlind int64  `json:"smallBlind"`
	BigBlind   int64  `json:"bigBlind"`
	MaxSeats   int    `json:"maxSeats"`
	Occupied   int    `json:"occupied"`
}

// LobbyData lists every table the server runs.
type LobbyData struct {
	Tables []LobbyTable `json:"tables"`
}

// ChatTailData is the recent chat history, oldest first.
type ChatTailData struct {
	TableID  string      `json:"tableId"`
	Messages []ChatEntry `json:"messages"`
}
