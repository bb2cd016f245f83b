/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/serial"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List M3D printers and other serial ports",
	Long: `List serial ports whose USB hardware id matches the printer signature
(03EB:2404 unless configured otherwise).

With --all every serial port the enumerator reports is shown and printers
are marked. --table renders a styled table.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		tableFormat, _ := cmd.Flags().GetBool("table")

		sig, err := m3d.ParseSignature(cfg.Signature)
		if err != nil {
			return err
		}
		enum, err := serial.NewEnumerator(cfg.Enumerator)
		if err != nil {
			return err
		}

		ports, err := enum.Ports()
		if err != nil {
			return fmt.Errorf("error listing ports: %w", err)
		}
		ports = filterPorts(ports, sig, all)

		if len(ports) == 0 {
			if all {
				fmt.Println("No serial ports found")
			} else {
				fmt.Printf("No printers matching %s found (try --all)\n", sig)
			}
			return nil
		}

		if tableFormat {
			fmt.Println(renderTable(ports, sig))
		} else {
			renderSimple(ports, sig)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolP("all", "a", false, "Show all serial ports, not just printers")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

func filterPorts(ports []serial.PortDetails, sig m3d.Signature, all bool) []serial.PortDetails {
	if all {
		return ports
	}
	var filtered []serial.PortDetails
	for _, p := range ports {
		if sig.Matches(p.HardwareID()) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

const (
	columnKeyPort    = "port"
	columnKeyKind    = "kind"
	columnKeyHWID    = "hwid"
	columnKeyProduct = "product"
	columnKeyPrinter = "printer"
)

// renderTable renders the port list as a static bubble-table
func renderTable(ports []serial.PortDetails, sig m3d.Signature) string {
	rows := make([]table.Row, 0, len(ports))
	for _, p := range ports {
		printer := ""
		if sig.Matches(p.HardwareID()) {
			printer = "✓"
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyPort:    p.Name,
			columnKeyKind:    serial.Describe(p.Name),
			columnKeyHWID:    p.HardwareID(),
			columnKeyProduct: p.Product,
			columnKeyPrinter: printer,
		}))
	}

	t := table.New([]table.Column{
		table.NewColumn(columnKeyPort, "Port", 16),
		table.NewColumn(columnKeyKind, "Type", 16),
		table.NewColumn(columnKeyHWID, "Hardware ID", 40),
		table.NewColumn(columnKeyProduct, "Product", 24),
		table.NewColumn(columnKeyPrinter, "M3D", 5).
			WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Align(lipgloss.Center)),
	}).
		WithRows(rows).
		BorderRounded().
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))).
		WithBaseStyle(lipgloss.NewStyle().Align(lipgloss.Left))

	return fmt.Sprintf("Found %d port(s):\n\n%s", len(ports), t.View())
}

func renderSimple(ports []serial.PortDetails, sig m3d.Signature) {
	for _, p := range ports {
		mark := ""
		if sig.Matches(p.HardwareID()) {
			mark = " *"
		}
		fmt.Printf("%s\t%s%s\n", p.Name, p.HardwareID(), mark)
	}
}
