package models

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/internal/tui/components"
	"github.com/allbin/go-m3d/rewrite"
)

type fakePrinter struct {
	mu      sync.Mutex
	written []string
	failOn  string
	reads   [][]byte
	readErr error
	closed  bool
}

func (p *fakePrinter) WriteLine(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.failOn {
		return errors.New("write failed")
	}
	p.written = append(p.written, line)
	return nil
}

func (p *fakePrinter) ReadLine() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reads) > 0 {
		line := p.reads[0]
		p.reads = p.reads[1:]
		return line, nil
	}
	if p.readErr != nil {
		return nil, p.readErr
	}
	return nil, nil
}

func (p *fakePrinter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type recorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recorder) emit(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) lines(dir components.Direction) []components.LineMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []components.LineMsg
	for _, msg := range r.msgs {
		if l, ok := msg.(components.LineMsg); ok && l.Dir == dir {
			out = append(out, l)
		}
	}
	return out
}

func (r *recorder) statuses() []components.TxStatusMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []components.TxStatusMsg
	for _, msg := range r.msgs {
		if s, ok := msg.(components.TxStatusMsg); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestSendPipelineExpands(t *testing.T) {
	p := &fakePrinter{}
	m := NewPrinterModel(rewrite.New(rewrite.ZigZag()))
	m.SetPrinter(p)
	rec := &recorder{}

	require.NoError(t, m.Send("G1 X1.0000 F1946", components.SendingModePipeline, rec.emit))
	require.Equal(t, []string{"G1 Y10.0000 F1946", "G1 Y-10.0000 F1946", "G1 X1.0000 F1946"}, p.written)

	tx := rec.lines(components.DirectionTX)
	require.Len(t, tx, 3)
	for _, l := range tx {
		require.Equal(t, components.TxPending, l.Status)
		require.NotEmpty(t, l.Frame)
	}
	statuses := rec.statuses()
	require.Len(t, statuses, 3)
	require.Equal(t, tx[2].ID, statuses[2].ID)
	require.Equal(t, components.TxWritten, statuses[2].Status)
}

func TestSendDirectSkipsRules(t *testing.T) {
	p := &fakePrinter{}
	m := NewPrinterModel(rewrite.New(rewrite.ZigZag()))
	m.SetPrinter(p)
	rec := &recorder{}

	require.NoError(t, m.Send("G1 X1.0000 F1946", components.SendingModeDirect, rec.emit))
	require.Equal(t, []string{"G1 X1.0000 F1946"}, p.written)
}

func TestSendShowsSubstitution(t *testing.T) {
	p := &fakePrinter{}
	m := NewPrinterModel(nil)
	m.SetPrinter(p)
	rec := &recorder{}

	require.NoError(t, m.Send("M84", components.SendingModePipeline, rec.emit))
	tx := rec.lines(components.DirectionTX)
	require.Len(t, tx, 1)
	require.Equal(t, "M115", tx[0].Line)
	require.Equal(t, []string{"M84"}, p.written)
}

func TestSendDroppedLine(t *testing.T) {
	m := NewPrinterModel(rewrite.New(rewrite.Rule{Match: "M300"}))
	m.SetPrinter(&fakePrinter{})
	rec := &recorder{}

	require.NoError(t, m.Send("M300", components.SendingModePipeline, rec.emit))
	require.Len(t, rec.lines(components.DirectionInfo), 1)
	require.Empty(t, rec.lines(components.DirectionTX))
}

func TestSendFailure(t *testing.T) {
	p := &fakePrinter{failOn: "G28"}
	m := NewPrinterModel(nil)
	m.SetPrinter(p)
	rec := &recorder{}

	require.Error(t, m.Send("G28", components.SendingModePipeline, rec.emit))
	statuses := rec.statuses()
	require.Len(t, statuses, 1)
	require.Equal(t, components.TxFailed, statuses[0].Status)
	require.Error(t, statuses[0].Err)
}

func TestSendWithoutPrinter(t *testing.T) {
	m := NewPrinterModel(nil)
	err := m.Send("G28", components.SendingModePipeline, func(tea.Msg) {})
	require.ErrorIs(t, err, m3d.ErrClosed)
}

func TestReadLoop(t *testing.T) {
	p := &fakePrinter{
		reads:   [][]byte{[]byte("ok\n"), []byte("T:21.0\n")},
		readErr: m3d.ErrRead,
	}
	m := NewPrinterModel(nil)
	m.SetPrinter(p)
	rec := &recorder{}

	m.ReadLoop(context.Background(), rec.emit)

	rx := rec.lines(components.DirectionRX)
	require.Len(t, rx, 2)
	require.Equal(t, "ok", rx[0].Line)
	require.Equal(t, "T:21.0", rx[1].Line)

	info := rec.lines(components.DirectionInfo)
	require.Len(t, info, 1)
	require.ErrorIs(t, info[0].Err, m3d.ErrRead)
}

func TestReadLoopStopsOnCancel(t *testing.T) {
	m := NewPrinterModel(nil)
	m.SetPrinter(&fakePrinter{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.ReadLoop(ctx, func(tea.Msg) {})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read loop did not stop")
	}
}

func TestCleanupClosesPrinter(t *testing.T) {
	p := &fakePrinter{}
	m := NewPrinterModel(nil)
	m.SetPrinter(p)

	m.Cleanup()
	require.True(t, p.closed)
	require.Nil(t, m.Printer())
	require.Error(t, m.Context().Err())
}

func TestInputMode(t *testing.T) {
	m := NewPrinterModel(nil)
	require.False(t, m.IsInInsertMode())
	m.SetInputMode(InputModeInsert)
	require.True(t, m.IsInInsertMode())
	require.Equal(t, "INSERT", m.InputMode().String())
}

func TestSetPrinterAfterCleanupCloses(t *testing.T) {
	m := NewPrinterModel(nil)
	m.Cleanup()

	p := &fakePrinter{}
	require.False(t, m.SetPrinter(p))
	require.True(t, p.closed, "late connection must not leak")
	require.Nil(t, m.Printer())
}

func TestCleanupClosesPrinterAfterSetPrinter(t *testing.T) {
	m := NewPrinterModel(nil)
	p := &fakePrinter{}
	require.True(t, m.SetPrinter(p))

	m.Cleanup()
	require.True(t, p.closed)
	require.Nil(t, m.Printer())
}
