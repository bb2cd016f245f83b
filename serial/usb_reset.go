package serial

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ReenumerateDelay is how long a reset waits for the device to come back
var ReenumerateDelay = 2 * time.Second

// usbreset runs the usbreset utility on a BBB/DDD device address
var usbreset = func(address string) ([]byte, error) {
	return exec.Command("usbreset", address).CombinedOutput()
}

// IsUSBResetAvailable reports whether the usbreset utility is in PATH
func IsUSBResetAvailable() bool {
	_, err := exec.LookPath("usbreset")
	return err == nil
}

// ResetUSBDevice resets the USB device behind portPath with usbreset, which
// recovers a printer left hanging in bootloader mode. It needs usbutils
// installed and usually root.
func ResetUSBDevice(portPath string) error {
	info, err := GetPortInfo(portPath)
	if err != nil {
		return fmt.Errorf("failed to get port info: %w", err)
	}
	if !IsUSBResetAvailable() {
		return ErrUSBResetNotAvailable
	}
	return resetPort(info)
}

// ResetUSBDeviceBySerial resets the port whose USB serial number matches.
// Port paths change across re-enumeration; serial numbers don't.
func ResetUSBDeviceBySerial(serialNumber string) error {
	ports, err := ListPorts()
	if err != nil {
		return err
	}
	for _, path := range ports {
		if info, err := GetPortInfo(path); err == nil && info.SerialNumber == serialNumber {
			return ResetUSBDevice(path)
		}
	}
	return fmt.Errorf("device with serial %s: %w", serialNumber, ErrDeviceNotFound)
}

func resetPort(info *PortInfo) error {
	if info.BusNumber == "" || info.DeviceNumber == "" {
		return ErrUSBInfoNotAvailable
	}

	address := pad3(info.BusNumber) + "/" + pad3(info.DeviceNumber)
	if out, err := usbreset(address); err != nil {
		return fmt.Errorf("usbreset %s failed: %w (output: %s)", address, err, out)
	}
	time.Sleep(ReenumerateDelay)
	return nil
}

// pad3 zero-pads sysfs bus and device numbers to the three digits usbreset
// expects
func pad3(n string) string {
	if len(n) >= 3 {
		return n
	}
	return strings.Repeat("0", 3-len(n)) + n
}
