package m3d

import (
	"errors"
	"fmt"
)

// Predefined error kinds. Use errors.Is to tell them apart.
var (
	ErrDeviceNotFound      = errors.New("m3d: no printer matching the device signature")
	ErrOpenFailed          = errors.New("m3d: failed to open serial port")
	ErrHandshake           = errors.New("m3d: handshake protocol error")
	ErrModeSwitchExhausted = errors.New("m3d: printer did not leave bootloader mode")
	ErrTransmission        = errors.New("m3d: transmission failed")
	ErrRead                = errors.New("m3d: read failed")
	ErrClosed              = errors.New("m3d: connection is closed")
	ErrInvalidSignature    = errors.New("m3d: invalid device signature")
)

// SetupError is returned by Open when the connection could not be brought up.
type SetupError struct {
	State   State  // state the negotiator was in when it failed
	Port    string // empty if the port was never resolved
	Attempt int    // mode switches performed before the failure
	Err     error
}

func (e *SetupError) Error() string {
	port := e.Port
	if port == "" {
		port = "unresolved port"
	}
	return fmt.Sprintf("m3d: setup failed while %s %s (after %d mode switches): %v", e.State, port, e.Attempt, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
