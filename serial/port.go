package serial

import (
	"context"
	"io"
	"runtime"
	"time"
)

// Port represents a serial port connection interface
type Port interface {
	io.ReadWriteCloser
	WriteContext(ctx context.Context, data []byte) (int, error)
	ReadContext(ctx context.Context, buf []byte) (int, error)

	// Buffered reports how many received bytes are waiting to be read.
	Buffered() (int, error)
	Drain() error
	FlushInput() error
	FlushOutput() error

	BaudRate() int
	SetBaudRate(rate int) error
	ReadTimeout() time.Duration
	SetReadTimeout(timeout time.Duration) error

	SetDTR(state bool) error
	SetRTS(state bool) error
}

var supportedBaudRates = []int{
	50, 75, 110, 134, 150, 200, 300, 600, 1200, 1800, 2400, 4800, 9600,
	19200, 38400, 57600, 115200, 230400, 460800, 500000, 576000, 921600,
	1000000, 1152000, 1500000, 2000000, 2500000, 3000000, 3500000, 4000000,
}

// SupportedBaudRates lists the rates accepted by WithBaudRate.
func SupportedBaudRates() []int {
	out := make([]int, len(supportedBaudRates))
	copy(out, supportedBaudRates)
	return out
}

func checkBaudRate(rate int) error {
	for _, r := range supportedBaudRates {
		if r == rate {
			return nil
		}
	}
	return ErrInvalidBaudRate
}

// Open opens a serial port with the given device path and options using the
// native backend.
func Open(device string, opts ...Option) (Port, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}
	return BackendNative.Open(device, config)
}

// OpenPortable is Open on top of go.bug.st/serial.
func OpenPortable(device string, opts ...Option) (Port, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}
	return BackendPortable.Open(device, config)
}

// Backend names a Port implementation.
type Backend string

const (
	BackendNative   Backend = "native"
	BackendPortable Backend = "portable"
)

// DefaultBackend is native on Linux and portable elsewhere.
var DefaultBackend = backendFor(runtime.GOOS)

func backendFor(goos string) Backend {
	if goos == "linux" {
		return BackendNative
	}
	return BackendPortable
}

// ParseBackend accepts "native", "portable" or an empty string
// (DefaultBackend).
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "":
		return DefaultBackend, nil
	case BackendNative:
		return BackendNative, nil
	case BackendPortable:
		return BackendPortable, nil
	default:
		return "", ErrUnknownBackend
	}
}

// Open opens device with an already assembled configuration.
func (b Backend) Open(device string, config Config) (Port, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch b {
	case BackendNative, "":
		return openNative(device, config)
	case BackendPortable:
		return openPortable(device, config)
	default:
		return nil, ErrUnknownBackend
	}
}

type ioResult struct {
	n   int
	err error
}

// withContext runs a blocking read or write and gives up when ctx is done.
// The operation keeps running in the background until its own timeout.
func withContext(ctx context.Context, op func() (int, error)) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	resultCh := make(chan ioResult, 1)
	go func() {
		n, err := op()
		resultCh <- ioResult{n: n, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.n, result.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
