/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allbin/go-m3d/serial"
	"github.com/allbin/go-m3d/usb"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset [port]",
	Short: "Reset a printer at the USB level",
	Long: `Perform a USB-level reset. This recovers a printer stuck in bootloader
mode without unplugging it.

Without arguments every device matching the printer signature is reset
through libusb. With a port path, or --serial, the usbreset utility is
used instead.

The printer re-enumerates after the reset, so its port path may change.

Examples:
  sudo m3d reset                      # Reset all printers by VID:PID
  sudo m3d reset /dev/ttyACM0         # Reset by port path
  sudo m3d reset --serial 0123456789  # Reset by serial number`,
	Args: func(cmd *cobra.Command, args []string) error {
		serialFlag, _ := cmd.Flags().GetString("serial")
		if serialFlag != "" && len(args) > 0 {
			return errors.New("cannot specify both port path and --serial flag")
		}
		return cobra.MaximumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		serialFlag, _ := cmd.Flags().GetString("serial")

		if serialFlag == "" && len(args) == 0 {
			fmt.Printf("Resetting USB devices matching %s\n", cfg.Signature)
			devices, err := usb.NewResetter(logger).Reset(cfg.Signature)
			for _, d := range devices {
				fmt.Printf("%s %s\n", successStyle.Render("✓"), d)
			}
			if err != nil {
				return err
			}
			return resetDone()
		}

		if !serial.IsUSBResetAvailable() {
			return fmt.Errorf("%w: install with: sudo apt-get install usbutils", serial.ErrUSBResetNotAvailable)
		}

		var err error
		if serialFlag != "" {
			fmt.Printf("Resetting USB device with serial: %s\n", serialFlag)
			err = serial.ResetUSBDeviceBySerial(serialFlag)
		} else {
			fmt.Printf("Resetting USB device: %s\n", args[0])
			err = serial.ResetUSBDevice(args[0])
		}
		if errors.Is(err, serial.ErrUSBInfoNotAvailable) {
			return fmt.Errorf("%w: this does not appear to be a USB device", err)
		}
		if err != nil {
			return err
		}
		return resetDone()
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringP("serial", "s", "", "Reset device by serial number")
}

func resetDone() error {
	fmt.Println("USB device reset successfully")
	fmt.Println("Device will re-enumerate (port path may change)")
	fmt.Println("\nUse 'm3d list --table' to see updated device list")
	return nil
}
