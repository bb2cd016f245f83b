/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/internal/tui/components"
	"github.com/allbin/go-m3d/internal/tui/keys"
	"github.com/allbin/go-m3d/internal/tui/models"
	"github.com/allbin/go-m3d/internal/tui/styles"
	"github.com/allbin/go-m3d/rewrite"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect [port]",
	Short: "Open an interactive printer console",
	Long: `Connect to the printer and open an interactive console.

The handshake runs in the background and its progress shows in the status
bar. Once the printer is ready, press 'i' and type G-code. Lines go
through the rewrite rules (PIPELINE) or as typed (DIRECT, Tab toggles).
Every line actually written shows as a TX row with its status; 'f' adds
the binary frame in hex. Printer output shows as RX rows.

Example usage:
  m3d connect
  m3d connect /dev/ttyACM0 --zigzag`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transformer, err := cfg.Transformer()
		if err != nil {
			return err
		}
		return runConnectTUI(portArg(args), transformer)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

// connectModel represents the Bubble Tea model for the connect command
type connectModel struct {
	*models.PrinterModel
	console   *components.Console
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.ConnectKeys
}

func newConnectModel(port string, t *rewrite.Transformer) *connectModel {
	baud := cfg.Baud
	if baud == 0 {
		baud = m3d.DefaultBaudRate
	}
	return &connectModel{
		PrinterModel: models.NewPrinterModel(t),
		console:      components.NewConsole(0, 0),
		statusBar:    components.NewStatusBar(port, baud, len(t.Rules())),
		input:        components.NewInput("G-code, e.g. M115"),
		help:         help.New(),
		keys:         keys.NewConnectKeys(),
	}
}

func runConnectTUI(port string, t *rewrite.Transformer) error {
	m := newConnectModel(port, t)
	p := tea.NewProgram(m, tea.WithAltScreen())

	reporter := m3d.ReporterFuncs{
		OnStateChanged: func(s m3d.State) { p.Send(components.StateMsg{State: s}) },
	}

	go func() {
		opts, err := cfg.Options()
		if err != nil {
			p.Send(components.ConnectedMsg{Err: err})
			return
		}
		opts = append(opts, m3d.WithLogger(logger), m3d.WithReporter(reporter))

		conn, err := m3d.Open(m.Context(), port, cfg.Baud, cfg.ReadTimeout, opts...)
		if err != nil {
			p.Send(components.ConnectedMsg{Err: err})
			return
		}
		if !m.SetPrinter(conn) {
			return
		}
		p.Send(components.ConnectedMsg{Conn: conn})

		m.ReadLoop(m.Context(), p.Send)
	}()

	_, err := p.Run()
	m.Cleanup()
	return err
}

func (m *connectModel) Init() tea.Cmd {
	return nil
}

// send runs in a tea.Cmd goroutine; progress arrives as LineMsg and
// TxStatusMsg through the program
func (m *connectModel) send(line string, mode components.SendingMode) tea.Cmd {
	return func() tea.Msg {
		var msgs []tea.Msg
		err := m.Send(line, mode, func(msg tea.Msg) { msgs = append(msgs, msg) })
		if err != nil && len(msgs) == 0 {
			msgs = append(msgs, components.LineMsg{
				Time: time.Now(),
				Dir:  components.DirectionInfo,
				Line: "not sent: " + line,
				Err:  err,
			})
		}
		return batchMsg(msgs)
	}
}

// batchMsg delivers several messages from one command in order
type batchMsg []tea.Msg

func (m *connectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// input box is 3 lines with its border, status bar 1, console border 1
		m.console.SetSize(msg.Width, msg.Height-5)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.SetReady(true)

	case batchMsg:
		for _, inner := range msg {
			m.apply(inner)
		}

	case components.StateMsg, components.ConnectedMsg, components.LineMsg, components.TxStatusMsg:
		m.apply(msg)

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			switch {
			case msg.Type == tea.KeyCtrlC:
				m.Cleanup()
				return m, tea.Quit
			case key.Matches(msg, m.keys.Escape):
				m.SetInputMode(models.InputModeNormal)
				m.input.Blur()
				return m, nil
			case key.Matches(msg, m.keys.Enter):
				line := m.input.Value()
				if line == "" {
					return m, nil
				}
				m.input.AddToHistory(line)
				m.input.SetValue("")
				return m, m.send(line, m.input.GetSendingMode())
			case msg.Type == tea.KeyUp:
				m.input.NavigateHistoryUp()
				return m, nil
			case msg.Type == tea.KeyDown:
				m.input.NavigateHistoryDown()
				return m, nil
			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()
				return m, nil
			}
		} else {
			switch {
			case key.Matches(msg, m.keys.Quit):
				m.Cleanup()
				return m, tea.Quit
			case key.Matches(msg, m.keys.InsertMode):
				m.SetInputMode(models.InputModeInsert)
				m.input.Focus()
				return m, nil
			case key.Matches(msg, m.keys.Clear):
				m.console.Clear()
			case key.Matches(msg, m.keys.Help):
				m.help.ShowAll = !m.help.ShowAll
			case key.Matches(msg, m.keys.ToggleFrames):
				m.console.ToggleFrames()
			case key.Matches(msg, m.keys.ToggleTimestamps):
				m.console.ToggleTimestamps()
			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()
			case key.Matches(msg, m.keys.Up):
				m.console.ScrollUp(1)
			case key.Matches(msg, m.keys.Down):
				m.console.ScrollDown(1)
			case key.Matches(msg, m.keys.GotoTop):
				m.console.GotoTop()
			case key.Matches(msg, m.keys.GotoBottom):
				m.console.GotoBottom()
			}
		}
	}

	if m.IsInInsertMode() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, m.console.Update(msg))

	return m, tea.Batch(cmds...)
}

func (m *connectModel) apply(msg tea.Msg) {
	switch msg := msg.(type) {
	case components.StateMsg:
		m.statusBar.SetState(msg.State)
	case components.ConnectedMsg:
		if msg.Err != nil {
			m.statusBar.SetFailed(msg.Err)
			m.console.Add(components.LineMsg{Time: time.Now(), Dir: components.DirectionInfo, Line: "connection failed", Err: msg.Err})
			return
		}
		baud, _ := msg.Conn.BaudRate()
		m.statusBar.SetConnected(msg.Conn.Port(), msg.Conn.Session(), baud)
		m.console.Add(components.LineMsg{
			Time: time.Now(),
			Dir:  components.DirectionInfo,
			Line: fmt.Sprintf("connected to %s", msg.Conn.Port()),
		})
		m.SetInputMode(models.InputModeInsert)
		m.input.Focus()
	case components.LineMsg:
		m.console.Add(msg)
	case components.TxStatusMsg:
		m.console.SetStatus(msg)
	}
}

func (m *connectModel) View() string {
	content := "Initializing..."
	if m.IsReady() {
		content = m.console.View()
	}

	view := lipgloss.JoinVertical(
		lipgloss.Left,
		styles.ContentBorderStyle.Render(content),
		m.input.View(m.IsInInsertMode()),
		m.statusBar.View(m.InputMode().String(), m.input.GetSendingMode(), time.Now().Format("15:04:05")),
	)
	if m.help.ShowAll {
		view = lipgloss.JoinVertical(lipgloss.Left, view, m.help.View(m.keys))
	}
	return view
}
