/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/rewrite"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [gcode...]",
	Short: "Send G-code lines to the printer",
	Long: `Send G-code to the printer and print its responses.

Each argument is one line. Without arguments lines are read from stdin, or
prompted for when stdin is a terminal. Lines go through the rewrite rules
unless --direct is given.

Example usage:
  m3d send M115
  m3d send "G28" "G1 X10 Y10 F3000"
  echo M105 | m3d send
  m3d send --port /dev/ttyACM0 --direct "G1 X1.0000 F1946"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		direct, _ := cmd.Flags().GetBool("direct")
		wait, _ := cmd.Flags().GetBool("wait")
		waitTimeout, _ := cmd.Flags().GetDuration("wait-timeout")

		lines := args
		if len(lines) == 0 {
			var err error
			if lines, err = readInput(); err != nil {
				return err
			}
		}
		if len(lines) == 0 {
			return nil
		}

		transformer, err := cfg.Transformer()
		if err != nil {
			return err
		}
		if direct {
			transformer = nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		conn, err := openPrinter(ctx, cfg.Port, cliReporter())
		if err != nil {
			return err
		}
		defer conn.Close()

		pipe := m3d.Pipeline{Transformer: transformer, Conn: conn}
		maxIdle := idleReads(waitTimeout, cfg.ReadTimeout)
		for _, line := range lines {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n, err := pipe.Send(rewrite.Command{Line: line})
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", infoStyle.Render("→"), line)
			if !wait {
				continue
			}
			// one ok per line actually written
			for i := 0; i < n; i++ {
				if _, err := waitOK(conn, maxIdle, func(s string) { fmt.Printf("%s %s\n", successStyle.Render("←"), s) }); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().Bool("direct", false, "Bypass the rewrite rules")
	sendCmd.Flags().BoolP("wait", "w", true, "Wait for ok after each line")
	sendCmd.Flags().Duration("wait-timeout", 30*time.Second, "How long to wait for a response")
}

// readInput reads lines from a pipe, or prompts for one on a terminal
func readInput() ([]string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		fmt.Print(infoStyle.Render("G-code: "))
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			return commandLines(strings.NewReader(scanner.Text()))
		}
		return nil, scanner.Err()
	}
	lines, err := commandLines(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("error reading from stdin: %w", err)
	}
	return lines, nil
}
