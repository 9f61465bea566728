package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/openfelt/cardroom/internal/deck"
	"github.com/openfelt/cardroom/internal/engine"
	"github.com/openfelt/cardroom/internal/gateway"
)

const (
	paneLog = iota
	paneInput
)

// serverMsg carries one server frame into the update loop.
type serverMsg struct {
	env *gateway.Envelope
}

// streamClosedMsg arrives when the websocket session ends.
type streamClosedMsg struct{}

// Model is the Bubble Tea model for the console. All server state it renders
// comes from snapshots and events; nothing is simulated locally.
type Model struct {
	client *Client
	logger *log.Logger

	logView viewport.Model
	input   textinput.Model

	lines    []string
	focused  int
	quitting bool
	sized    bool

	width  int
	height int

	// Identity from the WELCOME frame.
	userID   string
	username string
	balance  int64

	// Table state, derived from the last snapshot.
	tableID      string
	snap         *engine.Snapshot
	seatNo       int
	holeCards    []deck.Card
	handID       string
	boardShown   int
	myTurn       bool
	defaultBuyIn int64
}

// NewModel builds the console UI bound to a connected client.
func NewModel(client *Client, logger *log.Logger, defaultBuyIn int64) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "/help for commands, plain text chats"
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 80
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.Prompt = "> "

	return &Model{
		client:       client,
		logger:       logger.WithPrefix("console"),
		logView:      vp,
		input:        ti,
		focused:      paneInput,
		defaultBuyIn: defaultBuyIn,
	}
}

// Init starts the cursor blink and the server frame listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listen())
}

// listen waits for the next server frame.
func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		env, ok := <-m.client.Frames()
		if !ok {
			return streamClosedMsg{}
		}
		return serverMsg{env: env}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case serverMsg:
		m.handleFrame(msg.env)
		cmds = append(cmds, m.listen())

	case streamClosedMsg:
		m.appendLine(errorStyle.Render("Connection closed by server"))
		m.quitting = true
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.client.Close()
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			if m.focused == paneLog {
				m.focused = paneInput
				m.input.Focus()
			} else {
				m.focused = paneLog
				m.input.Blur()
			}
		case "enter":
			if m.focused == paneInput {
				text := strings.TrimSpace(m.input.Value())
				m.input.SetValue("")
				if quit := m.submit(text); quit {
					m.quitting = true
					m.client.Close()
					return m, tea.Sequence(tea.ClearScreen, tea.Quit)
				}
			}
		case "up", "k":
			if m.focused == paneLog {
				m.logView.ScrollUp(1)
			}
		case "down", "j":
			if m.focused == paneLog {
				m.logView.ScrollDown(1)
			}
		case "pgup":
			if m.focused == paneLog {
				m.logView.HalfPageUp()
			}
		case "pgdown":
			if m.focused == paneLog {
				m.logView.HalfPageDown()
			}
		case "home":
			if m.focused == paneLog {
				m.logView.GotoTop()
			}
		case "end":
			if m.focused == paneLog {
				m.logView.GotoBottom()
			}
		}
	}

	var cmd tea.Cmd
	if m.focused == paneInput {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logView, cmd = m.logView.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// appendLine adds a log line and keeps the viewport pinned to the bottom.
func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.logView.SetContent(strings.Join(m.lines, "\n"))
	if m.logView.Height > 0 && m.logView.Width > 0 {
		m.logView.GotoBottom()
	}
}

func (m *Model) appendLines(lines ...string) {
	for _, l := range lines {
		m.appendLine(l)
	}
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionWidth := max(m.width-2, 1)

	actionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(actionWidth).
		Height(max(actionHeight-2, 1))
	actionPane := actionStyle.Render(actionContent)

	sidebarContent := m.renderSidebar()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 28)
	sidebarHeight := max(m.height-actionHeight-4, 1)

	sidebarStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(sidebarHeight)
	sidebarPane := sidebarStyle.Render(sidebarContent)

	logWidth := max(m.width-sidebarWidth-4, 1)
	logHeight := max(m.height-actionHeight-4, 1)
	m.logView.Width = logWidth
	m.logView.Height = logHeight
	m.logView.SetContent(strings.Join(m.lines, "\n"))
	if !m.sized && logWidth > 1 && logHeight > 1 {
		m.logView.GotoBottom()
		m.sized = true
	}

	borderColor := lipgloss.Color("#626262")
	if m.focused == paneLog {
		borderColor = lipgloss.Color("#04B575")
	}
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(logWidth).
		Height(logHeight)
	logPane := logStyle.Render(m.logView.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

// renderSidebar summarizes the table: blinds, pot, board and every seat.
func (m *Model) renderSidebar() string {
	var b strings.Builder

	if m.username != "" {
		b.WriteString(fmt.Sprintf("%s  bankroll $%d\n", m.username, m.balance))
	}
	if m.snap == nil {
		b.WriteString(infoStyle.Render("\nNo table joined.\n/tables lists them"))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%s  $%d/$%d\n", m.snap.Name, m.snap.SmallBlind, m.snap.BigBlind))
	if g := m.snap.Game; g != nil {
		b.WriteString(warningStyle.Render(fmt.Sprintf("Pot $%d", g.Pot.Total)))
		if g.CurrentBet > 0 {
			b.WriteString(warningStyle.Render(fmt.Sprintf("  bet $%d", g.CurrentBet)))
		}
		b.WriteString("\n" + g.Round.String())
		if len(g.Board) > 0 {
			b.WriteString("  " + m.formatCards(g.Board))
		}
		b.WriteString("\n")
	} else {
		b.WriteString(infoStyle.Render("between hands") + "\n")
	}
	b.WriteString("\n")

	for _, seat := range m.snap.Seats {
		if seat.User == nil {
			continue
		}
		marker := "  "
		if seat.IsTurn {
			marker = successStyle.Render("> ")
		}
		name := seat.User.Username
		if seat.User.ID == m.userID {
			name += " (you)"
		}
		flags := ""
		if seat.IsDealer {
			flags += " D"
		}
		if seat.HasFolded {
			flags += " folded"
		}
		if seat.IsAllIn {
			flags += " all-in"
		}
		if seat.IsSittingOut {
			flags += " away"
		}
		line := fmt.Sprintf("%s%d %s $%d%s", marker, seat.SeatNo, name, seat.Stack, flags)
		if seat.Bet > 0 {
			line += fmt.Sprintf(" (bet $%d)", seat.Bet)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// renderActionPane shows hole cards, the live prompt and the input field.
func (m *Model) renderActionPane() string {
	var b strings.Builder

	if m.myTurn {
		info := fmt.Sprintf("Hand: %s  Pot: $%d", m.formatCards(m.holeCards), m.potTotal())
		b.WriteString(handInfoStyle.Render(info) + "\n")
		b.WriteString(actionsStyle.Render(m.renderChoices()) + "\n")
		m.input.Placeholder = "fold, check, call, raise <to>"
	} else {
		if len(m.holeCards) > 0 {
			b.WriteString(handInfoStyle.Render("Hand: "+m.formatCards(m.holeCards)) + "\n")
		} else {
			b.WriteString(handInfoStyle.Render("Waiting...") + "\n")
		}
		m.input.Placeholder = "/help for commands, plain text chats"
	}

	b.WriteString(m.input.View() + "\n")
	if m.focused == paneLog {
		b.WriteString(infoStyle.Render("Log focused: arrows scroll, Tab back to input"))
	} else {
		b.WriteString(infoStyle.Render("Tab to scroll log • Enter to submit • Ctrl+C to quit"))
	}
	return b.String()
}

// renderChoices lists what the acting player can do right now.
func (m *Model) renderChoices() string {
	mySeat := m.mySeatView()
	g := m.gameView()
	if mySeat == nil || g == nil {
		return "Actions: [fold]"
	}

	choices := []string{errorStyle.Render("[fold]")}
	toCall := g.CurrentBet - mySeat.Bet
	if toCall <= 0 {
		choices = append(choices, successStyle.Render("[check]"))
	} else if toCall >= mySeat.Stack {
		choices = append(choices, successStyle.Render(fmt.Sprintf("[call $%d all-in]", mySeat.Stack)))
	} else {
		choices = append(choices, successStyle.Render(fmt.Sprintf("[call $%d]", toCall)))
	}
	if mySeat.Stack > toCall {
		choices = append(choices, warningStyle.Render(fmt.Sprintf("[raise to $%d+]", g.CurrentBet+g.MinRaise)))
	}
	return "Actions: " + strings.Join(choices, " ")
}

func (m *Model) potTotal() int64 {
	if g := m.gameView(); g != nil {
		return g.Pot.Total
	}
	return 0
}

func (m *Model) gameView() *engine.GameView {
	if m.snap == nil {
		return nil
	}
	return m.snap.Game
}

// mySeatView finds the caller's seat in the last snapshot.
func (m *Model) mySeatView() *engine.SeatView {
	if m.snap == nil {
		return nil
	}
	for i := range m.snap.Seats {
		if u := m.snap.Seats[i].User; u != nil && u.ID == m.userID {
			return &m.snap.Seats[i]
		}
	}
	return nil
}

// formatCards colors cards red or black.
func (m *Model) formatCards(cards []deck.Card) string {
	if len(cards) == 0 {
		return ""
	}
	formatted := make([]string, 0, len(cards))
	for _, card := range cards {
		if card.IsRed() {
			formatted = append(formatted, redCardStyle.Render(card.String()))
		} else {
			formatted = append(formatted, blackCardStyle.Render(card.String()))
		}
	}
	return "[" + strings.Join(formatted, " ") + "]"
}
