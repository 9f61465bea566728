package gateway

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/openfelt/cardroom/internal/engine"
)

// replyError maps a failed engine call onto an ERROR event for the caller.
// Plain infrastructure errors are logged and reported without detail.
func (s *Server) replyError(c *Connection, err error) {
	var e *engine.Error
	if errors.As(err, &e) {
		c.sendError(e.Code, e.Message)
		return
	}
	s.log.Error().Err(err).Str("user_id", c.user.UserID).Msg("request failed")
	c.sendError(engine.CodeInternal, "internal error")
}

// dispatch routes one client envelope. Responses and errors go to the
// calling connection; everything the table should see is broadcast by the
// engine through the hub.
func (s *Server) dispatch(c *Connection, env *Envelope) {
	ctx := c.ctx

	switch env.Event {
	case EvtTableJoin:
		var p JoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError(codeBadMessage, "malformed table:join payload")
			return
		}
		snap, err := s.engine.Snapshot(ctx, p.TableID)
		if err != nil {
			s.replyError(c, err)
			return
		}
		s.hub.Join(TableRoom(p.TableID), c)
		c.sendEvent(&engine.Event{Type: engine.EventStateSnapshot, TableID: p.TableID, Snapshot: snap})
		if cards, handID, err := s.engine.HoleCards(ctx, p.TableID, c.user.UserID); err == nil && len(cards) > 0 {
			c.sendEvent(&engine.Event{Type: engine.EventPrivateCards, TableID: p.TableID, HandID: handID, Cards: cards})
		}

	case EvtTableSit:
		var p SitPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError(codeBadMessage, "malformed table:sit payload")
			return
		}
		// Sitting implies watching. Join before the call so the seat and
		// hand broadcasts triggered by it reach this connection.
		s.hub.Join(TableRoom(p.TableID), c)
		if err := s.engine.Sit(ctx, p.TableID, c.user.UserID, c.user.Username, p.SeatNo, p.BuyIn); err != nil {
			s.replyError(c, err)
		}

	case EvtTableLeave:
		var p LeavePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError(codeBadMessage, "malformed table:leave payload")
			return
		}
		if _, err := s.engine.Leave(ctx, p.TableID, c.user.UserID); err != nil {
			s.replyError(c, err)
		}

	case EvtTableRebuy:
		var p RebuyPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError(codeBadMessage, "malformed table:rebuy payload")
			return
		}
		if err := s.engine.Rebuy(ctx, p.TableID, c.user.UserID, p.Amount); err != nil {
			s.replyError(c, err)
		}

	case EvtTableSitOut:
		var p SitOutPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError(codeBadMessage, "malformed table:sit_out payload")
			return
		}
		if err := s.engine.SitOut(ctx, p.TableID, c.user.UserID); err != nil {
			s.replyError(c, err)
		}

	case EvtTableSitIn:
		var p SitInPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError(codeBadMessage, "malformed table:sit_in payload")
			return
		}
		if err := s.engine.SitIn(ctx, p.TableID, c.user.UserID); err != nil {
			s.replyError(c, err)
		}

	case EvtTableAction:
		var p ActionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError(codeBadMessage, "malformed table:action payload")
			return
		}
		action, err := engine.ParseAction(p.Action)
		if err != nil {
			s.replyError(c, err)
			return
		}
		if err := s.engine.Apply(ctx, p.TableID, c.user.UserID, action, p.Amount); err != nil {
			s.replyError(c, err)
		}

	case EvtChatMessage:
		var p ChatPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError(codeBadMessage, "malformed chat:message payload")
			return
		}
		s.relayChat(c, p)

	case EvtChatHistory:
		var p ChatHistoryPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError(codeBadMessage, "malformed chat:history payload")
			return
		}
		c.sendData(EvtChatTail, ChatTailData{
			TableID:  p.TableID,
			Messages: s.chat.tail(ctx, p.TableID, chatMax),
		})

	case EvtLobbyList:
		s.sendLobby(c)

	default:
		c.sendError(codeUnknownEvent, "unknown event "+env.Event)
	}
}

// relayChat stores and broadcasts a chat line. Watchers may chat too; chat
// never touches hand state.
func (s *Server) relayChat(c *Connection, p ChatPayload) {
	text := sanitize(p.Text)
	if text == "" || p.TableID == "" {
		return
	}
	entry := ChatEntry{
		UserID:   c.user.UserID,
		Username: c.user.Username,
		Text:     text,
		SentAt:   time.Now().UnixMilli(),
	}
	s.chat.append(c.ctx, p.TableID, entry)
	s.hub.ToTable(p.TableID, &engine.Event{
		Type:     engine.EventChatMessage,
		TableID:  p.TableID,
		UserID:   entry.UserID,
		Username: entry.Username,
		Message:  entry.Text,
		SentAt:   entry.SentAt,
	})
}

// sendLobby lists configured tables with their occupancy.
func (s *Server) sendLobby(c *Connection) {
	tables, err := s.store.ListTables(c.ctx)
	if err != nil {
		s.replyError(c, err)
		return
	}
	data := LobbyData{Tables: make([]LobbyTable, 0, len(tables))}
	for _, table := range tables {
		seats, err := s.store.ListSeats(c.ctx, table.ID)
		if err != nil {
			s.log.Error().Err(err).Str("table_id", table.ID).Msg("list seats")
			continue
		}
		data.Tables = append(data.Tables, LobbyTable{
			TableID:    table.ID,
			Name:       table.Name,
			SmallBlind: table.SmallBlind,
			BigBlind:   table.BigBlind,
			MaxSeats:   table.MaxSeats,
			Occupied:   len(seats),
		})
	}
	c.sendData(EvtLobby, data)
}
