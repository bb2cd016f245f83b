package serial

import "errors"

// Predefined error types for robust error handling
var (
	ErrDeviceNotFound     = errors.New("serial device not found")
	ErrPermissionDenied   = errors.New("permission denied accessing serial device")
	ErrDeviceInUse        = errors.New("serial device already in use")
	ErrDeviceDisconnected = errors.New("serial device reported readiness but returned no data")
	ErrInvalidBaudRate    = errors.New("invalid baud rate")
	ErrInvalidConfig      = errors.New("invalid serial configuration")
	ErrPortClosed         = errors.New("serial port is closed")
	ErrWriteTimeout       = errors.New("write operation timed out")
	ErrUnknownBackend     = errors.New("unknown serial backend")
	ErrNativeUnsupported  = errors.New("native serial backend is only available on linux")

	// USB-related errors
	ErrUSBInfoNotAvailable  = errors.New("USB device information not available")
	ErrUSBResetNotAvailable = errors.New("usbreset utility not available")
)
