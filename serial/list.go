package serial

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ttyKind is a family of kernel serial device names. Order matters where
// prefixes overlap: ttySAC before ttyS, ttyO after ttyTHS.
type ttyKind struct {
	prefix      string
	description string
	usb         bool
}

var ttyKinds = []ttyKind{
	{"ttyACM", "USB CDC/ACM Device", true}, // the M3D enumerates as one
	{"ttyUSB", "USB Serial Port", true},
	{"ttyAMA", "ARM Serial Port", false},
	{"ttymxc", "i.MX Serial Port", false},
	{"ttySAC", "Samsung Serial Port", false},
	{"ttyTHS", "Tegra Serial Port", false},
	{"ttyS", "Standard Serial Port", false},
	{"ttyO", "OMAP Serial Port", false},
}

// ttyIndex is the numeric suffix every serial device name ends in; virtual
// consoles (tty1), ptys and the like never match a kind with it
var ttyIndex = regexp.MustCompile(`^\d+$`)

// sysfsRoot is where USB metadata is looked up
var sysfsRoot = "/sys"

func kindOf(name string) (ttyKind, bool) {
	for _, k := range ttyKinds {
		if rest, ok := strings.CutPrefix(name, k.prefix); ok && ttyIndex.MatchString(rest) {
			return k, true
		}
	}
	return ttyKind{}, false
}

// Describe returns a human readable port type for a device name or path
func Describe(name string) string {
	if k, ok := kindOf(filepath.Base(name)); ok {
		return k.description
	}
	return "Serial Port"
}

// ListPorts returns the serial character devices under /dev, sorted
func ListPorts() ([]string, error) {
	return listPortsIn("/dev")
}

func listPortsIn(devDir string) ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		if _, ok := kindOf(entry.Name()); !ok {
			continue
		}
		path := filepath.Join(devDir, entry.Name())
		if isCharacterDevice(path) {
			ports = append(ports, path)
		}
	}
	sort.Strings(ports)
	return ports, nil
}

func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// PortInfo holds what the kernel exposes about a serial port
type PortInfo struct {
	Name         string
	Path         string
	Description  string
	VendorID     string
	ProductID    string
	SerialNumber string

	InterfaceNumber string
	BusNumber       string
	DeviceNumber    string
	Manufacturer    string
	Product         string
}

// IsUSB reports whether USB metadata was found for the port
func (i *PortInfo) IsUSB() bool {
	return i.VendorID != "" && i.ProductID != ""
}

// GetPortInfo describes the port at portPath, reading USB metadata from
// sysfs for USB kinds
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(portPath)
	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Description: Describe(name),
	}
	if k, ok := kindOf(name); ok && k.usb {
		readUSBInfo(sysfsRoot, info)
	}
	return info, nil
}

// readUSBInfo follows class/tty/<name>/device to the USB interface
// directory; the USB device directory is its parent. Missing attributes
// leave fields empty.
func readUSBInfo(root string, info *PortInfo) {
	resolved, err := filepath.EvalSymlinks(filepath.Join(root, "class", "tty", info.Name, "device"))
	if err != nil {
		return
	}

	// ttyUSB nodes sit one level below the interface, ttyACM nodes are it
	iface := resolved
	if strings.HasPrefix(filepath.Base(resolved), "tty") {
		iface = filepath.Dir(resolved)
	}
	info.InterfaceNumber = readAttr(iface, "bInterfaceNumber")

	dev := filepath.Dir(iface)
	for attr, field := range map[string]*string{
		"idVendor":     &info.VendorID,
		"idProduct":    &info.ProductID,
		"serial":       &info.SerialNumber,
		"manufacturer": &info.Manufacturer,
		"product":      &info.Product,
		"busnum":       &info.BusNumber,
		"devnum":       &info.DeviceNumber,
	} {
		*field = readAttr(dev, attr)
	}
}

// readAttr returns the trimmed value of a sysfs attribute, or ""
func readAttr(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
