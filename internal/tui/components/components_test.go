package components

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/allbin/go-m3d"
)

func TestFormatterFormat(t *testing.T) {
	f := NewFormatter()
	at := time.Date(2025, 1, 2, 3, 4, 5, 6e6, time.UTC)

	out := f.Format(LineMsg{Time: at, Dir: DirectionRX, Line: "ok\r\n"})
	require.Contains(t, out, "03:04:05.006")
	require.Contains(t, out, "RX")
	require.Contains(t, out, "ok")

	f.ShowTimestamps = false
	f.ShowFrames = true
	out = f.Format(LineMsg{Dir: DirectionTX, Line: "M115", Frame: []byte{0x82, 0x00}, Status: TxWritten})
	require.NotContains(t, out, "03:04:05")
	require.Contains(t, out, "TX ✓")
	require.Contains(t, out, "82 00")

	out = f.Format(LineMsg{Dir: DirectionTX, Line: "G28", Status: TxFailed, Err: errors.New("boom")})
	require.Contains(t, out, "TX ✗")
	require.Contains(t, out, "boom")
}

func TestPrintable(t *testing.T) {
	require.Equal(t, "a·b", printable("a\x1bb\r\n"))
	require.Equal(t, "ok T:21.0", printable("ok T:21.0"))
}

func TestConsoleStatusAndLimit(t *testing.T) {
	c := NewConsole(80, 10)
	c.Add(LineMsg{ID: 1, Dir: DirectionTX, Line: "G28", Status: TxPending})
	c.Add(LineMsg{ID: 1, Dir: DirectionRX, Line: "ok"})

	c.SetStatus(TxStatusMsg{ID: 1, Status: TxWritten})
	require.Equal(t, TxWritten, c.Entries()[0].Status)
	require.Equal(t, DirectionRX, c.Entries()[1].Dir)

	c.SetStatus(TxStatusMsg{ID: 99, Status: TxFailed})
	require.Len(t, c.Entries(), 2)

	for i := 0; i < maxEntries+10; i++ {
		c.Add(LineMsg{Dir: DirectionRX, Line: "wait"})
	}
	require.Len(t, c.Entries(), maxEntries)

	c.Clear()
	require.Empty(t, c.Entries())
}

func TestConsoleFormatsOnlyNewLines(t *testing.T) {
	c := NewConsole(80, 10)
	c.Add(LineMsg{ID: 1, Dir: DirectionTX, Line: "G28", Status: TxPending})
	first := c.lines[0]

	// an earlier entry is not rendered again when a line arrives
	c.entries[0].Line = "M84"
	c.Add(LineMsg{Dir: DirectionRX, Line: "ok"})
	require.Equal(t, first, c.lines[0])
	require.Equal(t, c.formatter.Format(c.entries[1]), c.lines[1])

	c.SetStatus(TxStatusMsg{ID: 1, Status: TxFailed})
	require.Contains(t, c.lines[0], "M84")

	c.entries[1].Line = "busy"
	c.ToggleTimestamps()
	require.Len(t, c.lines, 2)
	require.Contains(t, c.lines[1], "busy")
	require.Equal(t, c.formatter.Format(c.entries[1]), c.lines[1])
}

func TestConsoleScrollbackStaysAligned(t *testing.T) {
	c := NewConsole(80, 10)
	for i := 0; i < maxEntries+10; i++ {
		c.Add(LineMsg{Dir: DirectionRX, Line: fmt.Sprintf("line %d", i)})
	}
	require.Len(t, c.lines, maxEntries)
	require.Contains(t, c.lines[0], "line 10")
	require.Contains(t, c.lines[maxEntries-1], fmt.Sprintf("line %d", maxEntries+9))

	c.Clear()
	require.Empty(t, c.lines)
}

func TestConsoleShowsVisibleWindow(t *testing.T) {
	c := NewConsole(80, 2)
	for i := 0; i < 10; i++ {
		c.Add(LineMsg{Dir: DirectionRX, Line: fmt.Sprintf("line %d", i)})
	}
	require.Contains(t, c.View(), "line 9")
	require.Contains(t, c.View(), "line 8")
	require.NotContains(t, c.View(), "line 7")

	c.ScrollUp(3)
	require.False(t, c.Following())
	require.Contains(t, c.View(), "line 5")
	c.Add(LineMsg{Dir: DirectionRX, Line: "line 10"})
	require.Contains(t, c.View(), "line 5", "scrolled view must stay put")

	c.GotoTop()
	require.Contains(t, c.View(), "line 0")

	c.ScrollDown(100)
	require.True(t, c.Following())
	require.Contains(t, c.View(), "line 10")
}

func TestConsoleFollow(t *testing.T) {
	c := NewConsole(80, 2)
	for i := 0; i < 10; i++ {
		c.Add(LineMsg{Dir: DirectionRX, Line: "ok"})
	}
	require.True(t, c.Following())

	c.GotoTop()
	require.False(t, c.Following())

	c.GotoBottom()
	require.True(t, c.Following())
}

func TestInputHistory(t *testing.T) {
	in := NewInput("")
	in.AddToHistory("G28")
	in.AddToHistory("G28")
	in.AddToHistory("  ")
	in.AddToHistory("M105")
	require.Equal(t, []string{"G28", "M105"}, in.History())

	in.SetValue("G1 X")
	in.NavigateHistoryUp()
	require.Equal(t, "M105", in.Value())
	in.NavigateHistoryUp()
	require.Equal(t, "G28", in.Value())
	in.NavigateHistoryUp()
	require.Equal(t, "G28", in.Value())

	in.NavigateHistoryDown()
	require.Equal(t, "M105", in.Value())
	in.NavigateHistoryDown()
	require.Equal(t, "G1 X", in.Value())
}

func TestInputHistoryBounded(t *testing.T) {
	in := NewInput("")
	for i := 0; i < historySize+5; i++ {
		in.AddToHistory(string(rune('A'+i%26)) + "x")
	}
	require.Len(t, in.History(), historySize)
}

func TestInputSendingMode(t *testing.T) {
	in := NewInput("")
	require.Equal(t, SendingModePipeline, in.GetSendingMode())
	in.ToggleSendingMode()
	require.Equal(t, SendingModeDirect, in.GetSendingMode())
	require.Equal(t, "DIRECT", in.GetSendingMode().String())
	in.ToggleSendingMode()
	require.Equal(t, "PIPELINE", in.GetSendingMode().String())
}

func TestStatusBar(t *testing.T) {
	sb := NewStatusBar(m3d.AutoPort, 115200, 1)
	sb.SetWidth(120)
	sb.SetState(m3d.StateProbing)
	require.Contains(t, sb.View("NORMAL", SendingModePipeline, "12:00:00"), "probing")

	sb.SetConnected("/dev/ttyACM0", "0123456789abcdef", 0)
	require.Equal(t, m3d.StateReady, sb.State())
	view := sb.View("INSERT", SendingModeDirect, "12:00:00")
	require.Contains(t, view, "/dev/ttyACM0")
	require.Contains(t, view, "01234567")
	require.Contains(t, view, "[DIRECT]")
	require.Contains(t, view, "115200 baud")

	sb.SetFailed(errors.New("no printer"))
	require.Equal(t, m3d.StateFailed, sb.State())
	require.Error(t, sb.Err())
}
