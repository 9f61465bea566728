package console

import (
	"encoding/json"
	"fmt"

	"github.com/openfelt/cardroom/internal/engine"
	"github.com/openfelt/cardroom/internal/gateway"
)

// handleFrame routes one server frame into log lines and display state.
func (m *Model) handleFrame(env *gateway.Envelope) {
	switch env.Event {
	case gateway.EvtWelcome:
		var w gateway.WelcomeData
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return
		}
		m.userID = w.UserID
		m.username = w.Username
		m.balance = w.Balance
		m.appendLine(fmt.Sprintf("Signed in as %s • bankroll $%d", w.Username, w.Balance))

	case gateway.EvtLobby:
		var lobby gateway.LobbyData
		if err := json.Unmarshal(env.Data, &lobby); err != nil {
			return
		}
		m.appendLine("")
		m.appendLine("Tables:")
		for _, t := range lobby.Tables {
			m.appendLine(fmt.Sprintf("  %s  %s  $%d/$%d  (%d/%d seated)",
				t.TableID, t.Name, t.SmallBlind, t.BigBlind, t.Occupied, t.MaxSeats))
		}

	case gateway.EvtChatTail:
		var tail gateway.ChatTailData
		if err := json.Unmarshal(env.Data, &tail); err != nil {
			return
		}
		m.appendLine(infoStyle.Render("--- recent chat ---"))
		for _, msg := range tail.Messages {
			m.appendLine(chatStyle.Render(fmt.Sprintf("%s: %s", msg.Username, msg.Text)))
		}

	default:
		var ev engine.Event
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			m.logger.Debug("undecodable frame", "event", env.Event)
			return
		}
		m.handleEngineEvent(&ev)
	}
}

func (m *Model) handleEngineEvent(ev *engine.Event) {
	switch ev.Type {
	case engine.EventStateSnapshot:
		m.applySnapshot(ev.Snapshot)

	case engine.EventHandStarted:
		m.handID = ev.HandID
		m.holeCards = nil
		m.boardShown = 0
		m.myTurn = false
		m.appendLine("")
		m.appendLine(headerStyle.Render(fmt.Sprintf(" Hand %s ", ev.HandID)) + infoStyle.Render(fmt.Sprintf("  button seat %d", ev.DealerSeat)))

	case engine.EventPrivateCards:
		m.holeCards = ev.Cards
		m.appendLine(fmt.Sprintf("Dealt to you: %s", m.formatCards(ev.Cards)))

	case engine.EventShowdownReveal:
		m.appendLine(headerStyle.Render(" SHOWDOWN "))
		for _, r := range ev.Reveals {
			m.appendLine(fmt.Sprintf("%s shows %s (%s)", r.Username, m.formatCards(r.Cards), r.Hand))
		}

	case engine.EventHandEnded:
		m.myTurn = false
		m.appendLine(fmt.Sprintf("Pot $%d", ev.Pot))
		for _, w := range ev.Winners {
			name := m.usernameFor(w.UserID, w.Seat)
			if ev.Reason == engine.EndReasonFold {
				m.appendLine(successStyle.Render(fmt.Sprintf("%s wins $%d, everyone folded", name, w.Payout)))
			} else {
				m.appendLine(successStyle.Render(fmt.Sprintf("%s wins $%d", name, w.Payout)))
			}
		}

	case engine.EventPlayerKicked:
		name := m.usernameFor(ev.UserID, ev.Seat)
		m.appendLine(warningStyle.Render(fmt.Sprintf("%s was removed after repeated timeouts", name)))

	case engine.EventLeavePending:
		m.appendLine(infoStyle.Render("You leave the table when this hand ends"))

	case engine.EventChatMessage:
		m.appendLine(chatStyle.Render(fmt.Sprintf("%s: %s", ev.Username, ev.Message)))

	case engine.EventError:
		m.appendLine(errorStyle.Render(fmt.Sprintf("Server error [%s]: %s", ev.Code, ev.Message)))

	default:
		m.logger.Debug("unhandled event", "type", ev.Type)
	}
}

// applySnapshot takes the latest public table state and narrates what
// changed: newly revealed board cards and the turn passing to the player.
func (m *Model) applySnapshot(snap *engine.Snapshot) {
	if snap == nil {
		return
	}
	m.snap = snap
	m.tableID = snap.TableID
	if seat := m.mySeatView(); seat != nil {
		m.seatNo = seat.SeatNo
	} else {
		m.seatNo = 0
	}

	g := snap.Game
	if g == nil {
		m.boardShown = 0
		m.myTurn = false
		return
	}

	// A snapshot for a hand whose start frame this client never saw means a
	// mid-hand join; sync quietly instead of replaying street banners.
	if m.handID != g.HandID {
		m.handID = g.HandID
		m.boardShown = len(g.Board)
		if len(g.Board) > 0 {
			m.appendLine(fmt.Sprintf("Board: %s", m.formatCards(g.Board)))
		}
	}

	m.narrateBoard(g)

	wasMyTurn := m.myTurn
	m.myTurn = m.seatNo != 0 && g.CurrentTurn == m.seatNo && !g.IsDealingBoard
	if m.myTurn && !wasMyTurn {
		m.appendLine(handInfoStyle.Render("Your turn"))
	}
}

// narrateBoard logs street banners as reveal snapshots push cards out one
// by one.
func (m *Model) narrateBoard(g *engine.GameView) {
	n := len(g.Board)
	if n <= m.boardShown {
		return
	}
	if m.boardShown == 0 && n >= 1 {
		m.appendLine(headerStyle.Render(" FLOP "))
	}
	if m.boardShown < 3 && n >= 3 {
		m.appendLine(fmt.Sprintf("Board: %s", m.formatCards(g.Board[:3])))
	}
	if m.boardShown < 4 && n >= 4 {
		m.appendLine(headerStyle.Render(" TURN "))
		m.appendLine(fmt.Sprintf("Board: %s %s", m.formatCards(g.Board[:3]), m.formatCards(g.Board[3:4])))
	}
	if m.boardShown < 5 && n >= 5 {
		m.appendLine(headerStyle.Render(" RIVER "))
		m.appendLine(fmt.Sprintf("Board: %s %s", m.formatCards(g.Board[:4]), m.formatCards(g.Board[4:5])))
	}
	m.boardShown = n
}

// usernameFor resolves a display name from the current snapshot, falling
// back to the raw user id once the seat is gone.
func (m *Model) usernameFor(userID string, seatNo int) string {
	if m.snap != nil {
		for _, s := range m.snap.Seats {
			if s.User == nil {
				continue
			}
			if s.User.ID == userID || (seatNo != 0 && s.SeatNo == seatNo) {
				return s.User.Username
			}
		}
	}
	if userID == m.userID {
		return m.username
	}
	return userID
}
