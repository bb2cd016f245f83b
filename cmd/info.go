/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/serial"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a serial port",
	Long: `Display USB metadata for a serial port and whether it matches the
printer signature.

Examples:
  m3d info /dev/ttyACM0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := serial.GetPortInfo(args[0])
		if err != nil {
			return fmt.Errorf("error getting port info: %w", err)
		}
		sig, err := m3d.ParseSignature(cfg.Signature)
		if err != nil {
			return err
		}
		details := info.Details()

		fmt.Printf("Port Information: %s\n\n", info.Path)
		fmt.Printf("  Name:        %s\n", info.Name)
		fmt.Printf("  Description: %s\n", info.Description)
		fmt.Printf("  Hardware ID: %s\n", details.HardwareID())
		if sig.Matches(details.HardwareID()) {
			fmt.Printf("  Printer:     %s\n", successStyle.Render("yes"))
		} else {
			fmt.Printf("  Printer:     no (looking for %s)\n", sig)
		}

		if !info.IsUSB() {
			return nil
		}
		fmt.Println("\nUSB Device Information:")
		for _, f := range []struct{ label, value string }{
			{"Vendor ID", info.VendorID},
			{"Product ID", info.ProductID},
			{"Serial", info.SerialNumber},
			{"Interface", info.InterfaceNumber},
			{"Bus", info.BusNumber},
			{"Device", info.DeviceNumber},
			{"Manufacturer", info.Manufacturer},
			{"Product", info.Product},
		} {
			if f.value != "" {
				fmt.Printf("  %-13s %s\n", f.label+":", f.value)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
