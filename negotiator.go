package m3d

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/allbin/go-m3d/serial"
)

var (
	probeCommand  = []byte("M115")
	escapeCommand = []byte("Q")
)

// negotiator drives the printer out of its bootloader and hands back a
// firmware mode line. It owns at most one raw handle at a time.
type negotiator struct {
	cfg     *Config
	locator *Locator
	log     *zap.Logger

	port        string
	pinned      bool
	baud        int
	readTimeout time.Duration

	state    State
	switches int
	handle   serial.Port
}

func newNegotiator(cfg *Config, port string, baud int, readTimeout time.Duration) *negotiator {
	n := &negotiator{
		cfg:         cfg,
		locator:     NewLocator(cfg.Enumerator, cfg.Signature, cfg.Logger),
		log:         cfg.Logger,
		baud:        baud,
		readTimeout: readTimeout,
		state:       StateResolving,
	}
	if port != "" && port != AutoPort {
		n.port = port
		n.pinned = true
	}
	if n.baud == 0 {
		n.baud = DefaultBaudRate
		n.log.Info("no baud rate given, using default", zap.Int("baud", n.baud))
	}
	return n
}

func (n *negotiator) setState(s State) {
	n.state = s
	n.log.Debug("handshake state", zap.Stringer("state", s), zap.String("port", n.port), zap.Int("attempt", n.switches))
	n.cfg.Reporter.StateChanged(s)
}

// fail releases the handle and reports err once
func (n *negotiator) fail(err error) error {
	n.release()
	serr := &SetupError{State: n.state, Port: n.port, Attempt: n.switches, Err: err}
	n.setState(StateFailed)
	n.log.Error("printer setup failed",
		zap.String("port", n.port),
		zap.Stringer("state", serr.State),
		zap.Int("attempt", n.switches),
		zap.Error(err),
	)
	n.cfg.Reporter.SetupFailed(serr)
	return serr
}

func (n *negotiator) release() {
	if n.handle == nil {
		return
	}
	if err := n.handle.Close(); err != nil && !errors.Is(err, serial.ErrPortClosed) {
		n.log.Warn("closing probe handle", zap.String("port", n.port), zap.Error(err))
	}
	n.handle = nil
}

// run performs the whole handshake and returns the final handle
func (n *negotiator) run(ctx context.Context) (serial.Port, error) {
	n.setState(StateResolving)
	if err := n.resolve(ctx); err != nil {
		return nil, n.fail(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, n.fail(err)
		}

		n.setState(StateOpening)
		if err := n.open(n.cfg.ProbeTimeout, n.cfg.ProbeTimeout); err != nil {
			return nil, n.fail(err)
		}

		n.setState(StateProbing)
		mode, err := n.probe()
		if err != nil {
			return nil, n.fail(err)
		}
		if mode == ModeFirmware {
			break
		}

		if n.switches >= n.cfg.MaxModeSwitches {
			return nil, n.fail(fmt.Errorf("%w: %w", ErrHandshake, ErrModeSwitchExhausted))
		}
		n.setState(StateSwitching)
		if err := n.switchMode(ctx); err != nil {
			return nil, n.fail(err)
		}
		n.setState(StateResolving)
		if err := n.reresolve(ctx); err != nil {
			return nil, n.fail(err)
		}
	}

	n.setState(StateReopeningFinal)
	n.release()
	if err := n.settle(ctx); err != nil {
		return nil, n.fail(err)
	}
	if err := n.open(n.readTimeout, n.cfg.WriteTimeout); err != nil {
		return nil, n.fail(err)
	}

	handle := n.handle
	n.handle = nil
	n.setState(StateReady)
	return handle, nil
}

func (n *negotiator) resolve(ctx context.Context) error {
	if n.pinned {
		return nil
	}
	port, err := n.locator.Locate(ctx)
	if err != nil {
		return err
	}
	n.port = port
	return nil
}

// reresolve looks the printer up again after a mode switch since it may come
// back under another device node. A pinned port survives a failed lookup.
func (n *negotiator) reresolve(ctx context.Context) error {
	port, err := n.locator.Locate(ctx)
	if err != nil {
		if n.pinned && errors.Is(err, ErrDeviceNotFound) {
			n.log.Warn("printer not found after mode switch, reusing port", zap.String("port", n.port))
			return nil
		}
		return err
	}
	if port != n.port {
		n.log.Info("printer re-enumerated", zap.String("from", n.port), zap.String("to", port))
	}
	n.port = port
	return nil
}

func (n *negotiator) open(readTimeout, writeTimeout time.Duration) error {
	if n.handle != nil {
		return fmt.Errorf("%w: %s is already open", ErrOpenFailed, n.port)
	}

	cfg, err := serial.NewConfig(
		serial.WithBaudRate(n.baud),
		serial.WithParity(serial.ParityNone),
		serial.WithReadTimeout(readTimeout),
		serial.WithWriteTimeout(writeTimeout),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	n.log.Debug("opening port", zap.String("port", n.port), zap.Stringer("line", cfg))

	handle, err := n.cfg.Opener.Open(n.port, cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	n.handle = handle
	return nil
}

// probe asks for the firmware banner and classifies the first byte of the
// answer. The rest of the answer is discarded.
func (n *negotiator) probe() (Mode, error) {
	if _, err := n.handle.Write(probeCommand); err != nil {
		return ModeUnknown, fmt.Errorf("%w: writing probe: %w", ErrHandshake, err)
	}

	first := make([]byte, 1)
	read, err := n.handle.Read(first)
	if err != nil {
		return ModeUnknown, fmt.Errorf("%w: reading probe answer: %w", ErrHandshake, err)
	}
	if read == 0 {
		return ModeUnknown, fmt.Errorf("%w: no answer to probe within %s", ErrHandshake, n.cfg.ProbeTimeout)
	}

	n.drain()

	mode := modeFromByte(first[0])
	n.log.Info("probe answered", zap.String("port", n.port), zap.String("first_byte", string(first)), zap.Stringer("mode", mode))
	if mode == ModeUnknown {
		return mode, fmt.Errorf("%w: unexpected probe answer %q", ErrHandshake, first[0])
	}
	return mode, nil
}

// drain discards whatever is queued after the first byte
func (n *negotiator) drain() {
	pending, err := n.handle.Buffered()
	if err != nil || pending <= 0 {
		return
	}
	discard := make([]byte, pending)
	got := 0
	for got < pending {
		k, err := n.handle.Read(discard[got:])
		got += k
		if err != nil || k == 0 {
			break
		}
	}
	n.log.Debug("drained input", zap.String("port", n.port), zap.Int("bytes", got))
}

func (n *negotiator) switchMode(ctx context.Context) error {
	n.log.Info("switching printer to firmware mode", zap.String("port", n.port), zap.Int("attempt", n.switches+1))
	if _, err := n.handle.Write(escapeCommand); err != nil {
		return fmt.Errorf("%w: writing escape: %w", ErrHandshake, err)
	}
	n.switches++
	n.release()
	return n.settle(ctx)
}

func (n *negotiator) settle(ctx context.Context) error {
	if n.cfg.SettleDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(n.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
