package models

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/gcode"
	"github.com/allbin/go-m3d/internal/tui/components"
	"github.com/allbin/go-m3d/rewrite"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	if m == InputModeInsert {
		return "INSERT"
	}
	return "NORMAL"
}

// Printer is the part of *m3d.Conn the console uses
type Printer interface {
	ReadLine() ([]byte, error)
	WriteLine(line string) error
	Close() error
}

// PrinterModel holds the console's connection state. The printer is set
// from the handshake goroutine and used from command goroutines.
type PrinterModel struct {
	mu      sync.RWMutex
	printer Printer

	transformer *rewrite.Transformer
	encoder     gcode.Encoder
	nextID      atomic.Int64

	inputMode InputMode
	ready     bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewPrinterModel(t *rewrite.Transformer) *PrinterModel {
	ctx, cancel := context.WithCancel(context.Background())
	return &PrinterModel{transformer: t, ctx: ctx, cancel: cancel}
}

func (m *PrinterModel) Printer() Printer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.printer
}

// SetPrinter hands the model a connection. After Cleanup the connection is
// closed instead and SetPrinter returns false.
func (m *PrinterModel) SetPrinter(p Printer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		if p != nil {
			p.Close()
		}
		return false
	}
	m.printer = p
	return true
}

func (m *PrinterModel) Transformer() *rewrite.Transformer { return m.transformer }

func (m *PrinterModel) IsReady() bool            { return m.ready }
func (m *PrinterModel) SetReady(r bool)          { m.ready = r }
func (m *PrinterModel) Context() context.Context { return m.ctx }

func (m *PrinterModel) InputMode() InputMode        { return m.inputMode }
func (m *PrinterModel) SetInputMode(mode InputMode) { m.inputMode = mode }
func (m *PrinterModel) IsInInsertMode() bool        { return m.inputMode == InputModeInsert }

// Send writes line the way mode asks and reports every outgoing line
// through emit, first as pending and then with its final status. It blocks
// until the last write returns, so run it from a tea.Cmd.
func (m *PrinterModel) Send(line string, mode components.SendingMode, emit func(tea.Msg)) error {
	p := m.Printer()
	if p == nil {
		return m3d.ErrClosed
	}

	w := &echoWriter{model: m, printer: p, emit: emit}
	if mode == components.SendingModeDirect {
		return w.WriteLine(line)
	}
	pipe := m3d.Pipeline{Transformer: m.transformer, Conn: w}
	n, err := pipe.SendLine(line)
	if err == nil && n == 0 {
		emit(components.LineMsg{
			Time: time.Now(),
			Dir:  components.DirectionInfo,
			Line: "dropped by rewrite rules: " + line,
		})
	}
	return err
}

// ReadLoop forwards printer output until ctx ends or the connection fails.
// Read timeouts are not failures; the loop just tries again.
func (m *PrinterModel) ReadLoop(ctx context.Context, emit func(tea.Msg)) {
	p := m.Printer()
	if p == nil {
		return
	}
	for ctx.Err() == nil {
		line, err := p.ReadLine()
		if len(line) > 0 {
			emit(components.LineMsg{
				Time: time.Now(),
				Dir:  components.DirectionRX,
				Line: strings.TrimRight(string(line), "\r\n"),
			})
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, m3d.ErrClosed) {
				emit(components.LineMsg{
					Time: time.Now(),
					Dir:  components.DirectionInfo,
					Line: "read stopped",
					Err:  err,
				})
			}
			return
		}
	}
}

func (m *PrinterModel) Cancel() {
	m.cancel()
}

// Cleanup stops the reader and closes the printer
func (m *PrinterModel) Cleanup() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.printer != nil {
		m.printer.Close()
		m.printer = nil
	}
}

// echoWriter reports each line on its way to the printer
type echoWriter struct {
	model   *PrinterModel
	printer Printer
	emit    func(tea.Msg)
}

func (w *echoWriter) WriteLine(line string) error {
	id := int(w.model.nextID.Add(1))

	shown, _ := m3d.Substitute(line)
	var raw []byte
	if frame, err := w.model.encoder.Encode(shown); err == nil {
		raw = frame.Binary
	}
	w.emit(components.LineMsg{
		ID:     id,
		Time:   time.Now(),
		Dir:    components.DirectionTX,
		Line:   shown,
		Frame:  raw,
		Status: components.TxPending,
	})

	err := w.printer.WriteLine(line)
	status := components.TxWritten
	if err != nil {
		status = components.TxFailed
	}
	w.emit(components.TxStatusMsg{ID: id, Status: status, Err: err})
	return err
}
