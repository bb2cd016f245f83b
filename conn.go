package m3d

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/allbin/go-m3d/serial"
)

// legacyCommands are answered by the printer only as M115
var legacyCommands = map[string]bool{
	"M110": true,
	"M21":  true,
	"M84":  true,
}

// Conn is a printer connection in firmware mode. ReadLine and WriteLine may
// be called from different goroutines; calls of the same kind are serialized.
type Conn struct {
	mu   sync.RWMutex // guards port
	port serial.Port

	readMu  sync.Mutex
	writeMu sync.Mutex

	name     string
	session  string
	switches int
	enc      Encoder
	log      *zap.Logger
	ext      map[string]any
}

// Open finds the printer when port is AutoPort or empty, takes it out of
// bootloader mode and returns the connection. A baud of 0 means
// DefaultBaudRate. readTimeout applies to ReadLine on the returned
// connection; probing uses its own timeout.
//
// Any failure is returned as a *SetupError and reported to the configured
// Reporter.
func Open(ctx context.Context, port string, baud int, readTimeout time.Duration, opts ...Option) (*Conn, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if readTimeout < 0 && readTimeout != serial.NoTimeout {
		return nil, fmt.Errorf("%w: read timeout %v", errInvalidOption, readTimeout)
	}

	session := uuid.NewString()
	log := cfg.Logger.With(zap.String("session", session))
	cfg.Logger = log

	n := newNegotiator(&cfg, port, baud, readTimeout)
	handle, err := n.run(ctx)
	if err != nil {
		return nil, err
	}

	log.Info("printer ready", zap.String("port", n.port), zap.Int("baud", n.baud), zap.Int("mode_switches", n.switches))

	ext := make(map[string]any, len(cfg.Extensions))
	for k, v := range cfg.Extensions {
		ext[k] = v
	}

	return &Conn{
		port:     handle,
		name:     n.port,
		session:  session,
		switches: n.switches,
		enc:      cfg.Encoder,
		log:      log.With(zap.String("port", n.port)),
		ext:      ext,
	}, nil
}

// handle returns the raw port under the read lock. The caller must RUnlock.
func (c *Conn) handle() (serial.Port, error) {
	c.mu.RLock()
	if c.port == nil {
		c.mu.RUnlock()
		return nil, ErrClosed
	}
	return c.port, nil
}

// ReadLine returns bytes up to and including '\n'. When the read timeout
// expires first, the partial line is returned with a nil error, so an empty
// result means the printer sent nothing.
func (c *Conn) ReadLine() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	port, err := c.handle()
	if err != nil {
		return nil, err
	}
	defer c.mu.RUnlock()

	var line []byte
	b := make([]byte, 1)
	for {
		n, err := port.Read(b)
		if err != nil {
			c.log.Error("read failed", zap.ByteString("partial", line), zap.Error(err))
			return line, fmt.Errorf("%w: %w", ErrRead, err)
		}
		if n == 0 {
			return line, nil
		}
		line = append(line, b[0])
		if b[0] == '\n' {
			return line, nil
		}
	}
}

// WriteLine encodes one host line and sends it. M110, M21 and M84 are sent
// as M115. Errors leave the connection open.
func (c *Conn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	port, err := c.handle()
	if err != nil {
		return err
	}
	defer c.mu.RUnlock()

	if sub, ok := Substitute(line); ok {
		c.log.Debug("substituting legacy command", zap.String("line", strings.TrimSpace(line)))
		line = sub
	}

	frame, err := c.enc.Encode(line)
	if err != nil {
		c.log.Error("encoding failed", zap.String("line", strings.TrimSpace(line)), zap.Error(err))
		return fmt.Errorf("%w: encoding %q: %w", ErrTransmission, strings.TrimSpace(line), err)
	}

	c.log.Debug("sending", zap.String("display", frame.ASCII), zap.Int("bytes", len(frame.Binary)))
	n, err := port.Write(frame.Binary)
	if err == nil && n < len(frame.Binary) {
		err = io.ErrShortWrite
	}
	if err != nil {
		c.log.Error("write failed", zap.String("display", frame.ASCII), zap.Int("written", n), zap.Error(err))
		return fmt.Errorf("%w: sending %s: %w", ErrTransmission, frame.ASCII, err)
	}
	return nil
}

// Substitute returns the line WriteLine actually encodes for line, and
// whether it differs.
func Substitute(line string) (string, bool) {
	if legacyCommands[strings.TrimRight(line, "\r\n")] {
		return "M115", true
	}
	return line, false
}

// Close releases the port. Closing an already closed connection is a no-op.
// A ReadLine in progress finishes first, bounded by the read timeout.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	if err != nil && !errors.Is(err, serial.ErrPortClosed) {
		c.log.Warn("close failed", zap.Error(err))
		return err
	}
	c.log.Info("connection closed")
	return nil
}

// BaudRate returns the line speed
func (c *Conn) BaudRate() (int, error) {
	port, err := c.handle()
	if err != nil {
		return 0, err
	}
	defer c.mu.RUnlock()
	return port.BaudRate(), nil
}

// SetBaudRate changes the line speed
func (c *Conn) SetBaudRate(rate int) error {
	port, err := c.handle()
	if err != nil {
		return err
	}
	defer c.mu.RUnlock()
	return port.SetBaudRate(rate)
}

// Timeout returns the ReadLine timeout
func (c *Conn) Timeout() (time.Duration, error) {
	port, err := c.handle()
	if err != nil {
		return 0, err
	}
	defer c.mu.RUnlock()
	return port.ReadTimeout(), nil
}

// SetTimeout changes the ReadLine timeout
func (c *Conn) SetTimeout(d time.Duration) error {
	port, err := c.handle()
	if err != nil {
		return err
	}
	defer c.mu.RUnlock()
	return port.SetReadTimeout(d)
}

// Port returns the device path the printer was found on
func (c *Conn) Port() string { return c.name }

// ModeSwitches is how many times the printer had to be taken out of
// bootloader mode during Open
func (c *Conn) ModeSwitches() int { return c.switches }

// Session identifies this connection in log output
func (c *Conn) Session() string { return c.session }

// Extension returns a value passed with WithExtension
func (c *Conn) Extension(key string) (any, bool) {
	v, ok := c.ext[key]
	return v, ok
}

func (c *Conn) String() string {
	return fmt.Sprintf("m3d connection on %s", c.name)
}
