package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bugst "go.bug.st/serial"
)

// portablePort adapts go.bug.st/serial to Port. The library has no way to
// query the input queue, so Buffered drains it into pending.
type portablePort struct {
	mu     sync.RWMutex
	p      bugst.Port
	config Config
	closed bool

	pendMu  sync.Mutex
	pending []byte
}

var _ Port = (*portablePort)(nil)

func bugstMode(config Config) *bugst.Mode {
	mode := &bugst.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
		StopBits: bugst.OneStopBit,
	}
	if config.StopBits == 2 {
		mode.StopBits = bugst.TwoStopBits
	}
	switch config.Parity {
	case ParityOdd:
		mode.Parity = bugst.OddParity
	case ParityEven:
		mode.Parity = bugst.EvenParity
	case ParityMark:
		mode.Parity = bugst.MarkParity
	case ParitySpace:
		mode.Parity = bugst.SpaceParity
	default:
		mode.Parity = bugst.NoParity
	}
	if config.InitialDTR != nil || config.InitialRTS != nil {
		bits := &bugst.ModemOutputBits{DTR: true, RTS: true}
		if config.InitialDTR != nil {
			bits.DTR = *config.InitialDTR
		}
		if config.InitialRTS != nil {
			bits.RTS = *config.InitialRTS
		}
		mode.InitialStatusBits = bits
	}
	return mode
}

func bugstTimeout(d time.Duration) time.Duration {
	if d == NoTimeout {
		return bugst.NoTimeout
	}
	return d
}

func portableOpenError(device string, err error) error {
	var perr *bugst.PortError
	if errors.As(err, &perr) {
		switch perr.Code() {
		case bugst.PortNotFound:
			return fmt.Errorf("failed to open %s: %w", device, ErrDeviceNotFound)
		case bugst.PermissionDenied:
			return fmt.Errorf("failed to open %s: %w", device, ErrPermissionDenied)
		case bugst.PortBusy:
			return fmt.Errorf("failed to open %s: %w", device, ErrDeviceInUse)
		case bugst.InvalidSpeed:
			return fmt.Errorf("failed to open %s: %w", device, ErrInvalidBaudRate)
		}
	}
	return fmt.Errorf("failed to open %s: %w", device, err)
}

func openPortable(device string, config Config) (Port, error) {
	p, err := bugst.Open(device, bugstMode(config))
	if err != nil {
		return nil, portableOpenError(device, err)
	}
	if err := p.SetReadTimeout(bugstTimeout(config.ReadTimeout)); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	return &portablePort{p: p, config: config}, nil
}

func (p *portablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	p.closed = true
	return p.p.Close()
}

func (p *portablePort) Read(buf []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	p.pendMu.Lock()
	if len(p.pending) > 0 {
		n := copy(buf, p.pending)
		p.pending = p.pending[n:]
		p.pendMu.Unlock()
		return n, nil
	}
	p.pendMu.Unlock()

	return p.p.Read(buf)
}

// Write enforces WriteTimeout by abandoning the blocked write. The port is
// unusable afterwards and should be closed.
func (p *portablePort) Write(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	if p.config.WriteTimeout == NoTimeout {
		return p.p.Write(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.config.WriteTimeout)
	defer cancel()
	n, err := withContext(ctx, func() (int, error) { return p.p.Write(data) })
	if errors.Is(err, context.DeadlineExceeded) {
		return n, ErrWriteTimeout
	}
	return n, err
}

func (p *portablePort) WriteContext(ctx context.Context, data []byte) (int, error) {
	return withContext(ctx, func() (int, error) { return p.Write(data) })
}

func (p *portablePort) ReadContext(ctx context.Context, buf []byte) (int, error) {
	return withContext(ctx, func() (int, error) { return p.Read(buf) })
}

// Buffered moves everything the driver holds into pending and reports its size.
func (p *portablePort) Buffered() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	if err := p.p.SetReadTimeout(0); err != nil {
		return 0, err
	}
	defer p.p.SetReadTimeout(bugstTimeout(p.config.ReadTimeout))

	p.pendMu.Lock()
	defer p.pendMu.Unlock()

	chunk := make([]byte, 256)
	for {
		n, err := p.p.Read(chunk)
		if err != nil {
			return len(p.pending), err
		}
		if n == 0 {
			return len(p.pending), nil
		}
		p.pending = append(p.pending, chunk[:n]...)
	}
}

func (p *portablePort) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	return p.p.Drain()
}

func (p *portablePort) FlushInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	p.pendMu.Lock()
	p.pending = nil
	p.pendMu.Unlock()
	return p.p.ResetInputBuffer()
}

func (p *portablePort) FlushOutput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	return p.p.ResetOutputBuffer()
}

func (p *portablePort) BaudRate() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.BaudRate
}

func (p *portablePort) SetBaudRate(rate int) error {
	if err := checkBaudRate(rate); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}

	config := p.config
	config.BaudRate = rate
	config.InitialDTR, config.InitialRTS = nil, nil
	if err := p.p.SetMode(bugstMode(config)); err != nil {
		return err
	}
	p.config.BaudRate = rate
	return nil
}

func (p *portablePort) ReadTimeout() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.ReadTimeout
}

func (p *portablePort) SetReadTimeout(timeout time.Duration) error {
	if !validTimeout(timeout) {
		return ErrInvalidConfig
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	if err := p.p.SetReadTimeout(bugstTimeout(timeout)); err != nil {
		return err
	}
	p.config.ReadTimeout = timeout
	return nil
}

func (p *portablePort) SetDTR(state bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	return p.p.SetDTR(state)
}

func (p *portablePort) SetRTS(state bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	return p.p.SetRTS(state)
}
