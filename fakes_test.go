package m3d

import (
	"context"
	"sync"
	"time"

	"github.com/allbin/go-m3d/serial"
)

// fakeDevice is a scripted printer. The i-th opened port answers the probe
// with script[i], or with fallback once the script runs out.
type fakeDevice struct {
	mu       sync.Mutex
	script   []string
	fallback string
	openErr  error

	opens   []openCall
	ports   []*fakePort
	live    int
	maxLive int
}

type openCall struct {
	name   string
	config serial.Config
}

func (d *fakeDevice) Open(name string, config serial.Config) (serial.Port, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.openErr != nil {
		return nil, d.openErr
	}

	answer := d.fallback
	if i := len(d.opens); i < len(d.script) {
		answer = d.script[i]
	}
	d.opens = append(d.opens, openCall{name: name, config: config})

	p := &fakePort{dev: d, answer: answer, baud: config.BaudRate, readTimeout: config.ReadTimeout}
	d.ports = append(d.ports, p)
	d.live++
	if d.live > d.maxLive {
		d.maxLive = d.live
	}
	return p, nil
}

type fakePort struct {
	mu          sync.Mutex
	dev         *fakeDevice
	answer      string
	rx          []byte
	written     []string
	closed      int
	baud        int
	readTimeout time.Duration

	readErr    error
	writeErr   error
	shortWrite bool
}

var _ serial.Port = (*fakePort)(nil)

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.rx) == 0 {
		return 0, nil
	}
	n := copy(buf, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, string(data))
	if string(data) == "M115" {
		p.rx = append(p.rx, p.answer...)
	}
	if p.shortWrite {
		return len(data) - 1, nil
	}
	return len(data), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed++
	first := p.closed == 1
	p.mu.Unlock()

	if !first {
		return serial.ErrPortClosed
	}
	if p.dev != nil {
		p.dev.mu.Lock()
		p.dev.live--
		p.dev.mu.Unlock()
	}
	return nil
}

func (p *fakePort) WriteContext(ctx context.Context, data []byte) (int, error) {
	return p.Write(data)
}

func (p *fakePort) ReadContext(ctx context.Context, buf []byte) (int, error) {
	return p.Read(buf)
}

func (p *fakePort) Buffered() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rx), nil
}

func (p *fakePort) Drain() error       { return nil }
func (p *fakePort) FlushInput() error  { return nil }
func (p *fakePort) FlushOutput() error { return nil }
func (p *fakePort) SetDTR(bool) error  { return nil }
func (p *fakePort) SetRTS(bool) error  { return nil }

func (p *fakePort) BaudRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baud
}

func (p *fakePort) SetBaudRate(rate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baud = rate
	return nil
}

func (p *fakePort) ReadTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readTimeout
}

func (p *fakePort) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = d
	return nil
}

func (p *fakePort) writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

// fakeEnumerator returns results[i] on the i-th call and repeats the last one
type fakeEnumerator struct {
	mu      sync.Mutex
	results [][]serial.PortDetails
	err     error
	calls   int
}

func (e *fakeEnumerator) Ports() ([]serial.PortDetails, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if len(e.results) == 0 {
		return nil, nil
	}
	i := e.calls - 1
	if i >= len(e.results) {
		i = len(e.results) - 1
	}
	return e.results[i], nil
}

func printerAt(name string) serial.PortDetails {
	return serial.PortDetails{Name: name, IsUSB: true, VID: "03eb", PID: "2404", SerialNumber: "BK15127E2CF0392", Product: "The Micro"}
}

type recordingReporter struct {
	mu       sync.Mutex
	states   []State
	failures []error
}

func (r *recordingReporter) StateChanged(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingReporter) SetupFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}
