package m3d

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/allbin/go-m3d/serial"
)

// Signature identifies a USB device as "VID:PID" in hex.
type Signature string

// M3DSignature is the Micro 3D printer's USB vendor and product id.
const M3DSignature Signature = "03EB:2404"

var signaturePattern = regexp.MustCompile(`^[0-9A-Fa-f]{4}:[0-9A-Fa-f]{4}$`)

// ParseSignature validates s and normalizes it to upper case.
func ParseSignature(s string) (Signature, error) {
	s = strings.TrimSpace(s)
	if !signaturePattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSignature, s)
	}
	return Signature(strings.ToUpper(s)), nil
}

// Matches reports whether a hardware id such as
// "USB VID:PID=03EB:2404 SER=..." belongs to the signature. The comparison
// ignores case.
func (s Signature) Matches(hardwareID string) bool {
	prefix := "USB VID:PID=" + strings.ToUpper(string(s))
	return strings.HasPrefix(strings.ToUpper(hardwareID), prefix)
}

// Locator finds attached devices by signature. It never opens a port.
type Locator struct {
	enum serial.Enumerator
	sig  Signature
	log  *zap.Logger
}

func NewLocator(enum serial.Enumerator, sig Signature, log *zap.Logger) *Locator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Locator{enum: enum, sig: sig, log: log}
}

// Candidates returns every attached device matching the signature, in
// enumeration order.
func (l *Locator) Candidates(ctx context.Context) ([]serial.PortDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ports, err := l.enum.Ports()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
	}

	var out []serial.PortDetails
	for _, p := range ports {
		if l.sig.Matches(p.HardwareID()) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Locate returns the first port whose hardware id matches the signature.
func (l *Locator) Locate(ctx context.Context) (string, error) {
	candidates, err := l.Candidates(ctx)
	if err != nil {
		l.log.Warn("device enumeration failed", zap.Error(err))
		return "", err
	}
	if len(candidates) == 0 {
		l.log.Debug("no device matches signature", zap.String("signature", string(l.sig)))
		return "", fmt.Errorf("%w %s", ErrDeviceNotFound, l.sig)
	}

	port := candidates[0].Name
	l.log.Info("detected printer",
		zap.String("port", port),
		zap.String("hwid", candidates[0].HardwareID()),
		zap.Int("candidates", len(candidates)),
	)
	return port, nil
}
