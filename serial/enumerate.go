package serial

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortDetails describes one attached serial device
type PortDetails struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// HardwareID renders the details in the form "USB VID:PID=03EB:2404 SER=...",
// which device signatures are matched against. Non-USB ports report "n/a".
func (d PortDetails) HardwareID() string {
	if !d.IsUSB {
		return "n/a"
	}
	id := fmt.Sprintf("USB VID:PID=%s:%s", strings.ToUpper(d.VID), strings.ToUpper(d.PID))
	if d.SerialNumber != "" {
		id += " SER=" + d.SerialNumber
	}
	return id
}

// Enumerator lists the serial devices attached to the host
type Enumerator interface {
	Ports() ([]PortDetails, error)
}

// USBEnumerator uses go.bug.st/serial/enumerator and works on every
// platform that library supports.
type USBEnumerator struct{}

func (USBEnumerator) Ports() ([]PortDetails, error) {
	list, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}

	out := make([]PortDetails, 0, len(list))
	for _, p := range list {
		out = append(out, PortDetails{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return out, nil
}

// SysfsEnumerator scans /dev and reads USB metadata from sysfs (Linux).
type SysfsEnumerator struct{}

func (SysfsEnumerator) Ports() ([]PortDetails, error) {
	paths, err := ListPorts()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}

	out := make([]PortDetails, 0, len(paths))
	for _, path := range paths {
		info, err := GetPortInfo(path)
		if err != nil {
			continue
		}
		out = append(out, info.Details())
	}
	return out, nil
}

// Details converts sysfs metadata into PortDetails
func (i *PortInfo) Details() PortDetails {
	product := i.Product
	if product == "" {
		product = i.Description
	}
	return PortDetails{
		Name:         i.Path,
		IsUSB:        i.IsUSB(),
		VID:          i.VendorID,
		PID:          i.ProductID,
		SerialNumber: i.SerialNumber,
		Product:      product,
	}
}

// NewEnumerator returns the enumerator registered under name ("usb" or "sysfs").
func NewEnumerator(name string) (Enumerator, error) {
	switch name {
	case "", "usb":
		return USBEnumerator{}, nil
	case "sysfs":
		return SysfsEnumerator{}, nil
	default:
		return nil, fmt.Errorf("unknown enumerator %q", name)
	}
}
