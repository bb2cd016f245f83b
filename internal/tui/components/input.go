package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-m3d/internal/tui/styles"
)

// SendingMode selects how an entered line reaches the printer
type SendingMode int

const (
	// SendingModePipeline runs the line through the rewrite rules
	SendingModePipeline SendingMode = iota
	// SendingModeDirect writes the line as typed
	SendingModeDirect
)

func (s SendingMode) String() string {
	switch s {
	case SendingModeDirect:
		return "DIRECT"
	default:
		return "PIPELINE"
	}
}

const historySize = 100

// history is a bounded list of sent lines with a browse cursor. A cursor
// equal to len(lines) points at the unsent draft.
type history struct {
	lines  []string
	cursor int
	draft  string
}

func (h *history) add(line string) {
	if n := len(h.lines); n == 0 || h.lines[n-1] != line {
		h.lines = append(h.lines, line)
		if over := len(h.lines) - historySize; over > 0 {
			h.lines = h.lines[over:]
		}
	}
	h.cursor, h.draft = len(h.lines), ""
}

func (h *history) older(current string) (string, bool) {
	if len(h.lines) == 0 {
		return "", false
	}
	if h.cursor >= len(h.lines) {
		h.draft, h.cursor = current, len(h.lines)
	}
	if h.cursor > 0 {
		h.cursor--
	}
	return h.lines[h.cursor], true
}

func (h *history) newer() (string, bool) {
	if h.cursor >= len(h.lines) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.lines) {
		return h.draft, true
	}
	return h.lines[h.cursor], true
}

// Input is the command line at the bottom of the connect view
type Input struct {
	textInput     textinput.Model
	sendingMode   SendingMode
	history       history
	terminalWidth int
}

func NewInput(placeholder string) *Input {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.Prompt = ""

	return &Input{textInput: ti, sendingMode: SendingModePipeline}
}

// SetWidth sizes the field for a terminal of the given width, leaving room
// for the border, padding and prompt
func (i *Input) SetWidth(width int) {
	i.terminalWidth = width
	i.textInput.Width = max(width-6, 20)
}

func (i *Input) Focus() {
	i.textInput.Focus()
}

func (i *Input) Blur() {
	i.textInput.Blur()
}

func (i *Input) Value() string {
	return i.textInput.Value()
}

func (i *Input) SetValue(value string) {
	i.textInput.SetValue(value)
}

func (i *Input) ToggleSendingMode() {
	if i.sendingMode == SendingModePipeline {
		i.sendingMode = SendingModeDirect
	} else {
		i.sendingMode = SendingModePipeline
	}
}

func (i *Input) GetSendingMode() SendingMode {
	return i.sendingMode
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

func (i *Input) View(insert bool) string {
	prompt := lipgloss.NewStyle().Bold(true).Foreground(styles.Green).Render(">")
	if i.sendingMode == SendingModeDirect {
		prompt = lipgloss.NewStyle().Bold(true).Foreground(styles.Peach).Render("!")
	}

	var field string
	if insert {
		field = i.textInput.View()
	} else {
		field = styles.FaintStyle.Render("Press 'i' to type a command")
	}

	style := styles.InputStyle.
		Width(max(i.terminalWidth-4, 10)).
		AlignHorizontal(lipgloss.Left)
	if insert {
		style = style.BorderForeground(styles.Green)
	}
	return style.Render(lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", field))
}

// History returns entered commands, oldest first
func (i *Input) History() []string {
	return append([]string(nil), i.history.lines...)
}

// AddToHistory records command unless it is blank or repeats the last one
func (i *Input) AddToHistory(command string) {
	if command = strings.TrimSpace(command); command != "" {
		i.history.add(command)
	}
}

func (i *Input) NavigateHistoryUp() {
	if line, ok := i.history.older(i.textInput.Value()); ok {
		i.textInput.SetValue(line)
	}
}

func (i *Input) NavigateHistoryDown() {
	if line, ok := i.history.newer(); ok {
		i.textInput.SetValue(line)
	}
}
