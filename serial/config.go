package serial

import (
	"fmt"
	"strings"
	"time"
)

// NoTimeout makes reads or writes block until they can make progress.
const NoTimeout time.Duration = -1

// WriteMode represents the write synchronization mode
type WriteMode int

const (
	WriteModeBuffered WriteMode = iota // Default: kernel buffers writes
	WriteModeSynced                    // O_SYNC: writes block until hardware transmission
)

// FlowControl represents the flow control mode
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTSCTS
)

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	case ParityMark:
		return "mark"
	case ParitySpace:
		return "space"
	default:
		return "unknown"
	}
}

// Config holds the configuration for a serial port
type Config struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl

	// ReadTimeout bounds a single Read. Zero returns immediately with
	// whatever is buffered, NoTimeout blocks until data arrives.
	ReadTimeout time.Duration

	// WriteTimeout bounds a single Write. A Write that cannot hand all of
	// its data to the driver in time returns ErrWriteTimeout.
	WriteTimeout time.Duration

	WriteMode  WriteMode
	InitialDTR *bool
	InitialRTS *bool
}

// Option is a functional option for configuring a serial port
type Option func(*Config) error

// DefaultConfig is 115200 8N1 without flow control. Reads give up after
// 2.5s and writes block.
func DefaultConfig() Config {
	return Config{
		BaudRate:     115200,
		DataBits:     8,
		StopBits:     1,
		ReadTimeout:  2500 * time.Millisecond,
		WriteTimeout: NoTimeout,
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...Option) (Config, error) {
	c := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}

// Validate checks a configuration that was assembled by hand. It runs the
// same checks as the options.
func (c Config) Validate() error {
	probe := c
	for _, opt := range []Option{
		WithBaudRate(c.BaudRate),
		WithDataBits(c.DataBits),
		WithStopBits(c.StopBits),
		WithReadTimeout(c.ReadTimeout),
		WithWriteTimeout(c.WriteTimeout),
	} {
		if err := opt(&probe); err != nil {
			return err
		}
	}
	return nil
}

// String formats the line settings the usual way, e.g. "115200 8N1".
func (c Config) String() string {
	parity := "N"
	if p := c.Parity.String(); p != "unknown" {
		parity = strings.ToUpper(p[:1])
	}
	s := fmt.Sprintf("%d %d%s%d", c.BaudRate, c.DataBits, parity, c.StopBits)
	if c.FlowControl == FlowControlRTSCTS {
		s += " rtscts"
	}
	return s
}

func validTimeout(d time.Duration) bool {
	return d >= 0 || d == NoTimeout
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if err := checkBaudRate(rate); err != nil {
			return err
		}
		c.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if bits < 5 || bits > 8 {
			return ErrInvalidConfig
		}
		c.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(c *Config) error {
		if bits != 1 && bits != 2 {
			return ErrInvalidConfig
		}
		c.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		c.Parity = parity
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(c *Config) error {
		c.FlowControl = fc
		return nil
	}
}

// WithReadTimeout sets how long a Read waits for the first byte
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if !validTimeout(timeout) {
			return ErrInvalidConfig
		}
		c.ReadTimeout = timeout
		return nil
	}
}

// WithWriteTimeout sets how long a Write may block
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if !validTimeout(timeout) {
			return ErrInvalidConfig
		}
		c.WriteTimeout = timeout
		return nil
	}
}

// WithInitialDTR sets the DTR line right after the port is opened
func WithInitialDTR(state bool) Option {
	return func(c *Config) error {
		c.InitialDTR = &state
		return nil
	}
}

// WithInitialRTS sets the RTS line right after the port is opened
func WithInitialRTS(state bool) Option {
	return func(c *Config) error {
		c.InitialRTS = &state
		return nil
	}
}

// WithWriteMode sets the write synchronization mode
func WithWriteMode(mode WriteMode) Option {
	return func(c *Config) error {
		c.WriteMode = mode
		return nil
	}
}

// WithSyncWrite enables synchronous writes (O_SYNC) for guaranteed transmission
func WithSyncWrite() Option {
	return func(c *Config) error {
		c.WriteMode = WriteModeSynced
		return nil
	}
}
