package console

import (
	"fmt"
	"strconv"
	"strings"
)

// request is one parsed input line.
type request struct {
	kind   string // "action", "command", "chat", "none"
	verb   string // action verb or command name
	args   []string
	amount int64
}

// parseInput classifies a line of input. Action verbs and their one-letter
// shorthands come first, "/" prefixes commands, everything else is chat.
func parseInput(text string) request {
	text = strings.TrimSpace(text)
	if text == "" {
		return request{kind: "none"}
	}

	fields := strings.Fields(text)
	head := strings.ToLower(fields[0])

	if strings.HasPrefix(head, "/") {
		return request{kind: "command", verb: head, args: fields[1:]}
	}

	switch head {
	case "fold", "f":
		return request{kind: "action", verb: "FOLD"}
	case "check", "k":
		return request{kind: "action", verb: "CHECK"}
	case "call", "c":
		return request{kind: "action", verb: "CALL"}
	case "raise", "r":
		if len(fields) < 2 {
			return request{kind: "command", verb: "/malformed", args: []string{"raise needs an amount: raise <to>"}}
		}
		amount, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || amount <= 0 {
			return request{kind: "command", verb: "/malformed", args: []string{fmt.Sprintf("bad raise amount %q", fields[1])}}
		}
		return request{kind: "action", verb: "RAISE", amount: amount}
	}

	return request{kind: "chat", args: []string{text}}
}

// submit executes one input line. It returns true when the console should
// quit.
func (m *Model) submit(text string) bool {
	req := parseInput(text)

	switch req.kind {
	case "none":
		return false

	case "action":
		if m.tableID == "" {
			m.appendLine(errorStyle.Render("Not at a table; /join one first"))
			return false
		}
		if err := m.client.Action(m.tableID, req.verb, req.amount); err != nil {
			m.appendLine(errorStyle.Render("send failed: " + err.Error()))
		}
		return false

	case "chat":
		if m.tableID == "" {
			m.appendLine(errorStyle.Render("Not at a table; /join one to chat"))
			return false
		}
		if err := m.client.Chat(m.tableID, req.args[0]); err != nil {
			m.appendLine(errorStyle.Render("send failed: " + err.Error()))
		}
		return false

	case "command":
		return m.runCommand(req)
	}
	return false
}

func (m *Model) runCommand(req request) bool {
	switch req.verb {
	case "/quit", "/exit":
		return true

	case "/help":
		m.appendLines(
			"Commands:",
			"  /tables              list tables",
			"  /join <table>        watch a table",
			"  /sit <seat> [buyin]  take a seat",
			"  /leave               give the seat up",
			"  /rebuy <amount>      top the stack up between hands",
			"  /sitout              skip the coming hands",
			"  /back                return from sitting out",
			"  /chat                show recent table chat",
			"  /quit                exit",
			"Actions when it is your turn: fold, check, call, raise <to>",
			"Anything else is table chat.",
		)

	case "/tables", "/list":
		if err := m.client.Lobby(); err != nil {
			m.appendLine(errorStyle.Render("send failed: " + err.Error()))
		}

	case "/join":
		if len(req.args) != 1 {
			m.appendLine(errorStyle.Render("usage: /join <table>"))
			return false
		}
		if err := m.client.JoinTable(req.args[0]); err != nil {
			m.appendLine(errorStyle.Render("send failed: " + err.Error()))
			return false
		}
		m.tableID = req.args[0]

	case "/sit":
		if m.tableID == "" {
			m.appendLine(errorStyle.Render("Not at a table; /join one first"))
			return false
		}
		if len(req.args) < 1 {
			m.appendLine(errorStyle.Render("usage: /sit <seat> [buyin]"))
			return false
		}
		seatNo, err := strconv.Atoi(req.args[0])
		if err != nil {
			m.appendLine(errorStyle.Render("bad seat number " + req.args[0]))
			return false
		}
		buyIn := m.defaultBuyIn
		if len(req.args) > 1 {
			buyIn, err = strconv.ParseInt(req.args[1], 10, 64)
			if err != nil {
				m.appendLine(errorStyle.Render("bad buy-in " + req.args[1]))
				return false
			}
		}
		if err := m.client.Sit(m.tableID, seatNo, buyIn); err != nil {
			m.appendLine(errorStyle.Render("send failed: " + err.Error()))
		}

	case "/leave":
		if m.tableID == "" {
			m.appendLine(errorStyle.Render("Not at a table"))
			return false
		}
		if err := m.client.Leave(m.tableID); err != nil {
			m.appendLine(errorStyle.Render("send failed: " + err.Error()))
		}

	case "/rebuy":
		if m.tableID == "" {
			m.appendLine(errorStyle.Render("Not at a table"))
			return false
		}
		if len(req.args) != 1 {
			m.appendLine(errorStyle.Render("usage: /rebuy <amount>"))
			return false
		}
		amount, err := strconv.ParseInt(req.args[0], 10, 64)
		if err != nil || amount <= 0 {
			m.appendLine(errorStyle.Render("bad amount " + req.args[0]))
			return false
		}
		if err := m.client.Rebuy(m.tableID, amount); err != nil {
			m.appendLine(errorStyle.Render("send failed: " + err.Error()))
		}

	case "/sitout":
		if m.tableID == "" {
			m.appendLine(errorStyle.Render("Not at a table"))
			return false
		}
		if err := m.client.SitOut(m.tableID); err != nil {
			m.appendLine(errorStyle.Render("send failed: " + err.Error()))
		}

	case "/back":
		if m.tableID == "" {
			m.appendLine(errorStyle.Render("Not at a table"))
			return false
		}
		if err := m.client.SitIn(m.tableID); err != nil {
			m.appendLine(errorStyle.Render("send failed: " + err.Error()))
		}

	case "/chat":
		if m.tableID == "" {
			m.appendLine(errorStyle.Render("Not at a table"))
			return false
		}
		if err := m.client.ChatHistory(m.tableID); err != nil {
			m.appendLine(errorStyle.Render("send failed: " + err.Error()))
		}

	case "/malformed":
		m.appendLine(errorStyle.Render(req.args[0]))

	default:
		m.appendLine(errorStyle.Render("Unknown command " + req.verb + "; /help lists them"))
	}
	return false
}
