package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// maxEntries bounds the scrollback; a long print would otherwise grow it
// without limit
const maxEntries = 5000

// Console is the scrolling printer log. Lines are formatted once when they
// arrive, and the viewport only ever holds the visible window of them.
type Console struct {
	viewport  viewport.Model
	formatter *Formatter
	entries   []LineMsg
	lines     []string // entries, formatted
	top       int      // index of the first visible line
	follow    bool
}

func NewConsole(width, height int) *Console {
	return &Console{
		viewport:  viewport.New(width, height),
		formatter: NewFormatter(),
		follow:    true,
	}
}

func (c *Console) SetSize(width, height int) {
	c.viewport.Width = width
	c.viewport.Height = height
	c.refresh()
}

func (c *Console) Width() int { return c.viewport.Width }

func (c *Console) Add(msg LineMsg) {
	c.entries = append(c.entries, msg)
	c.lines = append(c.lines, c.formatter.Format(msg))
	if over := len(c.entries) - maxEntries; over > 0 {
		c.entries = c.entries[over:]
		c.lines = c.lines[over:]
		c.top = max(c.top-over, 0)
	}
	c.refresh()
}

// SetStatus updates the TX entry with the given ID. Entries that already
// scrolled out are ignored.
func (c *Console) SetStatus(msg TxStatusMsg) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := &c.entries[i]
		if e.Dir == DirectionTX && e.ID == msg.ID {
			e.Status = msg.Status
			e.Err = msg.Err
			c.lines[i] = c.formatter.Format(*e)
			c.refresh()
			return
		}
	}
}

func (c *Console) Entries() []LineMsg {
	return c.entries
}

func (c *Console) Clear() {
	c.entries = nil
	c.lines = nil
	c.top = 0
	c.refresh()
}

func (c *Console) ToggleFrames() {
	c.formatter.ShowFrames = !c.formatter.ShowFrames
	c.reformat()
}

func (c *Console) ToggleTimestamps() {
	c.formatter.ShowTimestamps = !c.formatter.ShowTimestamps
	c.reformat()
}

// ScrollUp leaves follow mode so new lines don't yank the view back down
func (c *Console) ScrollUp(n int) {
	c.follow = false
	c.top = max(c.top-n, 0)
	c.refresh()
}

func (c *Console) ScrollDown(n int) {
	c.top = min(c.top+n, c.maxTop())
	if c.top == c.maxTop() {
		c.follow = true
	}
	c.refresh()
}

func (c *Console) GotoTop() {
	c.follow = false
	c.top = 0
	c.refresh()
}

func (c *Console) GotoBottom() {
	c.follow = true
	c.refresh()
}

func (c *Console) Following() bool { return c.follow }

func (c *Console) maxTop() int {
	return max(len(c.lines)-c.viewport.Height, 0)
}

// reformat renders every entry again. Only needed when the format changes.
func (c *Console) reformat() {
	c.lines = c.formatter.FormatAll(c.entries)
	c.refresh()
}

func (c *Console) refresh() {
	if c.follow {
		c.top = c.maxTop()
	}
	c.top = min(c.top, c.maxTop())
	end := min(c.top+max(c.viewport.Height, 0), len(c.lines))
	c.viewport.SetContent(strings.Join(c.lines[c.top:end], "\n"))
	c.viewport.GotoTop()
}

func (c *Console) Update(msg tea.Msg) tea.Cmd {
	// key messages stay with the connect model's bindings
	if _, ok := msg.(tea.WindowSizeMsg); !ok {
		return nil
	}
	var cmd tea.Cmd
	c.viewport, cmd = c.viewport.Update(msg)
	return cmd
}

func (c *Console) View() string {
	return c.viewport.View()
}
