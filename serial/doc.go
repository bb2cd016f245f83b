// Package serial is the raw serial line used to talk to M3D printers.
//
// Two backends implement Port: a Linux driver built directly on termios with
// poll(2) based read and write timeouts, and a portable one on top of
// go.bug.st/serial for other hosts.
//
//	port, err := serial.Open("/dev/ttyACM0",
//	    serial.WithBaudRate(115200),
//	    serial.WithReadTimeout(20*time.Second),
//	    serial.WithWriteTimeout(20*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
// A Read that times out returns zero bytes and a nil error, the same as a
// plain serial read. Timeouts can be changed on an open port with
// SetReadTimeout, and Buffered reports how much input is queued, which the
// bootloader handshake uses to drain stale bytes.
//
// # Port Discovery
//
// ListPorts and GetPortInfo scan /dev and read USB metadata from sysfs.
// Enumerator implementations turn that, or go.bug.st/serial/enumerator, into
// PortDetails whose HardwareID is what device signatures are matched against.
//
// # USB Reset
//
// ResetUSBDevice re-enumerates a hung device through the usbreset utility
// from usbutils. It needs root.
package serial
