// Package usb resets printers at the USB level through libusb. It is the
// fallback for a printer stuck in bootloader mode when usbreset is not
// installed.
package usb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
	"go.uber.org/zap"
)

var ErrNoDevice = errors.New("no matching USB device")

// Device identifies one matched USB device
type Device struct {
	Bus     int
	Address int
	Vendor  gousb.ID
	Product gousb.ID
}

func (d Device) String() string {
	return fmt.Sprintf("%s:%s bus %03d device %03d", d.Vendor, d.Product, d.Bus, d.Address)
}

// ParseID splits a VID:PID signature such as "03EB:2404"
func ParseID(sig string) (vid, pid gousb.ID, err error) {
	v, p, ok := strings.Cut(sig, ":")
	if !ok {
		return 0, 0, fmt.Errorf("signature %q is not VID:PID", sig)
	}
	vv, err := strconv.ParseUint(v, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("vendor id %q: %w", v, err)
	}
	pv, err := strconv.ParseUint(p, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("product id %q: %w", p, err)
	}
	return gousb.ID(vv), gousb.ID(pv), nil
}

func matcher(vid, pid gousb.ID) func(*gousb.DeviceDesc) bool {
	return func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vid && desc.Product == pid
	}
}

// Resetter resets USB devices by VID:PID
type Resetter struct {
	log   *zap.Logger
	debug int
}

func NewResetter(log *zap.Logger) *Resetter {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resetter{log: log}
	if log.Core().Enabled(zap.DebugLevel) {
		r.debug = 3
	}
	return r
}

// Reset resets every device matching sig and returns the devices touched.
// Devices that fail to reset are logged and the first error is returned
// after all have been tried.
func (r *Resetter) Reset(sig string) ([]Device, error) {
	vid, pid, err := ParseID(sig)
	if err != nil {
		return nil, err
	}

	ctx := gousb.NewContext()
	defer func() {
		if err := ctx.Close(); err != nil {
			r.log.Warn("failed to close USB context", zap.Error(err))
		}
	}()
	ctx.Debug(r.debug)

	devices, err := ctx.OpenDevices(matcher(vid, pid))
	defer func() {
		for _, dev := range devices {
			if dev == nil {
				continue
			}
			if err := dev.Close(); err != nil {
				r.log.Warn("failed to close USB device", zap.Error(err))
			}
		}
	}()
	// OpenDevices can return both opened devices and an error for the
	// ones it could not open
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to open USB devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, sig)
	}

	var (
		reset    []Device
		firstErr error
	)
	for _, dev := range devices {
		d := Device{Bus: dev.Desc.Bus, Address: dev.Desc.Address, Vendor: dev.Desc.Vendor, Product: dev.Desc.Product}
		if err := dev.Reset(); err != nil {
			r.log.Error("USB reset failed", zap.Stringer("device", d), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("reset %s: %w", d, err)
			}
			continue
		}
		r.log.Info("USB device reset", zap.Stringer("device", d))
		reset = append(reset, d)
	}
	return reset, firstErr
}
