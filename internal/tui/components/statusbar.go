package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/internal/tui/styles"
)

// StateMsg carries a handshake state change into the UI
type StateMsg struct {
	State m3d.State
}

// ConnectedMsg is sent once the handshake finished, with Err set on failure
type ConnectedMsg struct {
	Conn *m3d.Conn
	Err  error
}

// StatusBar is the bottom line of the connect screen
type StatusBar struct {
	port    string
	session string
	baud    int
	rules   int
	state   m3d.State
	err     error
	width   int
}

func NewStatusBar(port string, baud, rules int) *StatusBar {
	return &StatusBar{port: port, baud: baud, rules: rules}
}

func (sb *StatusBar) SetWidth(width int) { sb.width = width }

func (sb *StatusBar) SetState(s m3d.State) { sb.state = s }

func (sb *StatusBar) State() m3d.State { return sb.state }

// SetConnected switches the bar to the resolved port and session
func (sb *StatusBar) SetConnected(port, session string, baud int) {
	sb.port = port
	sb.session = session
	if baud > 0 {
		sb.baud = baud
	}
	sb.state = m3d.StateReady
	sb.err = nil
}

func (sb *StatusBar) SetFailed(err error) {
	sb.state = m3d.StateFailed
	sb.err = err
}

func (sb *StatusBar) Err() error { return sb.err }

func (sb *StatusBar) View(inputMode string, sendingMode SendingMode, timestamp string) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	modeBg := styles.Blue
	if inputMode == "INSERT" {
		modeBg = styles.Green
	}
	mode := lipgloss.NewStyle().
		Foreground(styles.Base).
		Background(modeBg).
		Bold(true).
		Padding(0, 1).
		Render(inputMode)

	port := lipgloss.NewStyle().
		Foreground(styles.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.port)

	state := styles.StateStyle(sb.state).Padding(0, 1).Render(sb.state.String())

	divider := lipgloss.NewStyle().
		Foreground(styles.Surface2).
		Padding(0, 1).
		Render("│")

	left := []string{mode, port, state}
	if inputMode == "INSERT" {
		left = append(left, lipgloss.NewStyle().
			Foreground(styles.Peach).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sendingMode)))
	}
	left = append(left, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)

	details := fmt.Sprintf("⚡ %d baud  %d rules", sb.baud, sb.rules)
	if sb.session != "" {
		details += "  " + shortSession(sb.session)
	}
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left,
		lipgloss.NewStyle().Foreground(styles.Subtext0).Padding(0, 1).Render(details),
		divider,
		lipgloss.NewStyle().Foreground(styles.Subtext1).Padding(0, 1).Render(timestamp),
	)

	spacer := lipgloss.NewStyle().
		Width(max(width-lipgloss.Width(leftSide)-lipgloss.Width(rightSide), 1)).
		Render("")

	return lipgloss.NewStyle().
		Foreground(styles.Text).
		Background(styles.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
