package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-m3d/internal/tui/styles"
)

// Direction tells where a console line came from
type Direction int

const (
	DirectionRX Direction = iota
	DirectionTX
	DirectionInfo
)

// TxStatus tracks an outgoing line
type TxStatus int

const (
	TxPending TxStatus = iota
	TxWritten
	TxFailed
)

// LineMsg is one console entry. ID ties TX status updates to the entry
// they belong to.
type LineMsg struct {
	ID     int
	Time   time.Time
	Dir    Direction
	Line   string
	Frame  []byte
	Status TxStatus
	Err    error
}

// TxStatusMsg updates the status of a TX entry
type TxStatusMsg struct {
	ID     int
	Status TxStatus
	Err    error
}

// Formatter renders console lines
type Formatter struct {
	ShowFrames     bool
	ShowTimestamps bool
}

func NewFormatter() *Formatter {
	return &Formatter{ShowTimestamps: true}
}

func (f *Formatter) Format(msg LineMsg) string {
	var parts []string

	if f.ShowTimestamps {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(styles.Subtext0).
			Render("["+msg.Time.Format("15:04:05.000")+"]"))
	}

	parts = append(parts, indicator(msg))
	parts = append(parts, printable(msg.Line))

	if f.ShowFrames && len(msg.Frame) > 0 {
		parts = append(parts, styles.FaintStyle.Render(fmt.Sprintf("[% X]", msg.Frame)))
	}
	if msg.Err != nil {
		parts = append(parts, styles.ErrorStyle.Render(msg.Err.Error()))
	}
	return strings.Join(parts, " ")
}

func (f *Formatter) FormatAll(msgs []LineMsg) []string {
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = f.Format(msg)
	}
	return out
}

func indicator(msg LineMsg) string {
	style := lipgloss.NewStyle().Bold(true)
	switch msg.Dir {
	case DirectionTX:
		switch msg.Status {
		case TxPending:
			return style.Foreground(styles.Yellow).Render("↗ TX ○")
		case TxWritten:
			return style.Foreground(styles.Green).Render("↗ TX ✓")
		default:
			return style.Foreground(styles.Red).Render("↗ TX ✗")
		}
	case DirectionInfo:
		return style.Foreground(styles.Mauve).Render("• --")
	default:
		return style.Foreground(styles.Sky).Render("↙ RX")
	}
}

// printable replaces control characters so a stray escape sequence from the
// printer can't corrupt the screen
func printable(s string) string {
	s = strings.TrimRight(s, "\r\n")
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return '·'
		}
		return r
	}, s)
}
