/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/allbin/go-m3d"
)

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe [port]",
	Short: "Run the printer handshake and report each step",
	Long: `Find the printer, take it out of bootloader mode and close the
connection again. Every handshake state is printed with the time it was
entered, which helps when a printer hangs in bootloader mode.

Examples:
  m3d probe
  m3d probe /dev/ttyACM0 --timeout 90s`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		start := time.Now()
		reporter := m3d.ReporterFuncs{
			OnStateChanged: func(s m3d.State) {
				fmt.Printf("%8s  %s\n", time.Since(start).Round(time.Millisecond), s)
			},
		}

		conn, err := openPrinter(ctx, portArg(args), reporter)
		if err != nil {
			return err
		}
		defer conn.Close()

		fmt.Printf("\n%s %s ready (session %s)\n", successStyle.Render("✓"), conn.Port(), conn.Session())
		if n := conn.ModeSwitches(); n > 0 {
			fmt.Println(infoStyle.Render(fmt.Sprintf("left bootloader mode after %d switch(es)", n)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().Duration("timeout", 0, "Give up after this long (0 waits for the handshake)")
}
