package m3d

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/allbin/go-m3d/gcode"
	"github.com/allbin/go-m3d/serial"
)

const (
	// AutoPort asks Open to find the printer by its device signature.
	AutoPort = "AUTO"

	DefaultBaudRate        = 115200
	DefaultMaxModeSwitches = 5
	DefaultSettleDelay     = time.Second
	DefaultProbeTimeout    = 20 * time.Second
	DefaultWriteTimeout    = 10000 * time.Second
)

var errInvalidOption = errors.New("m3d: invalid option")

// Opener opens the raw serial line. serial.Backend implements it.
type Opener interface {
	Open(name string, config serial.Config) (serial.Port, error)
}

// Encoder turns one host line into the bytes sent to the printer.
type Encoder interface {
	Encode(line string) (gcode.Frame, error)
}

// Config holds everything Open needs besides port, baud and read timeout.
type Config struct {
	Signature  Signature
	Enumerator serial.Enumerator
	Opener     Opener
	Encoder    Encoder
	Reporter   Reporter
	Logger     *zap.Logger

	// MaxModeSwitches bounds how often the printer is asked to leave its
	// bootloader before Open gives up.
	MaxModeSwitches int
	SettleDelay     time.Duration
	ProbeTimeout    time.Duration
	WriteTimeout    time.Duration

	// Extensions carries settings this package does not interpret, for the
	// host to read back from the connection.
	Extensions map[string]any
}

// Option is a functional option for Open
type Option func(*Config) error

// DefaultConfig returns the settings Open starts from
func DefaultConfig() Config {
	return Config{
		Signature:       M3DSignature,
		Enumerator:      serial.USBEnumerator{},
		Opener:          serial.DefaultBackend,
		Encoder:         gcode.Encoder{},
		Reporter:        NopReporter{},
		Logger:          zap.NewNop(),
		MaxModeSwitches: DefaultMaxModeSwitches,
		SettleDelay:     DefaultSettleDelay,
		ProbeTimeout:    DefaultProbeTimeout,
		WriteTimeout:    DefaultWriteTimeout,
	}
}

// WithSignature sets the VID:PID the locator looks for
func WithSignature(sig Signature) Option {
	return func(c *Config) error {
		if _, err := ParseSignature(string(sig)); err != nil {
			return err
		}
		c.Signature = sig
		return nil
	}
}

// WithEnumerator replaces the device enumeration primitive
func WithEnumerator(e serial.Enumerator) Option {
	return func(c *Config) error {
		if e == nil {
			return errInvalidOption
		}
		c.Enumerator = e
		return nil
	}
}

// WithOpener replaces the raw serial primitive
func WithOpener(o Opener) Option {
	return func(c *Config) error {
		if o == nil {
			return errInvalidOption
		}
		c.Opener = o
		return nil
	}
}

// WithBackend selects one of the serial package backends
func WithBackend(b serial.Backend) Option {
	return WithOpener(b)
}

// WithEncoder replaces the line encoder
func WithEncoder(e Encoder) Option {
	return func(c *Config) error {
		if e == nil {
			return errInvalidOption
		}
		c.Encoder = e
		return nil
	}
}

// WithReporter registers the host's progress and failure sink
func WithReporter(r Reporter) Option {
	return func(c *Config) error {
		if r == nil {
			r = NopReporter{}
		}
		c.Reporter = r
		return nil
	}
}

// WithLogger sets the logger used for diagnostics
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			l = zap.NewNop()
		}
		c.Logger = l
		return nil
	}
}

// WithMaxModeSwitches caps bootloader escape attempts
func WithMaxModeSwitches(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return errInvalidOption
		}
		c.MaxModeSwitches = n
		return nil
	}
}

// WithSettleDelay sets the pause between closing and reopening the port
func WithSettleDelay(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return errInvalidOption
		}
		c.SettleDelay = d
		return nil
	}
}

// WithProbeTimeout sets read and write timeouts used while probing
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return errInvalidOption
		}
		c.ProbeTimeout = d
		return nil
	}
}

// WithWriteTimeout sets the write timeout of the final connection
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 && d != serial.NoTimeout {
			return errInvalidOption
		}
		c.WriteTimeout = d
		return nil
	}
}

// WithExtension stores an uninterpreted setting on the connection
func WithExtension(key string, value any) Option {
	return func(c *Config) error {
		if c.Extensions == nil {
			c.Extensions = make(map[string]any)
		}
		c.Extensions[key] = value
		return nil
	}
}
