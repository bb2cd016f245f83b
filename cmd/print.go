/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/allbin/go-m3d"
)

// printCmd represents the print command
var printCmd = &cobra.Command{
	Use:   "print <file.gcode>",
	Short: "Stream a G-code file to the printer",
	Long: `Stream a G-code file to the printer one command at a time, waiting for
"ok" after every line actually written. Comments and blank lines are
skipped. Interrupting stops after the command in flight.

Example usage:
  m3d print part.gcode
  m3d print --zigzag part.gcode`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		waitTimeout, _ := cmd.Flags().GetDuration("wait-timeout")

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		lines, err := commandLines(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		if len(lines) == 0 {
			return fmt.Errorf("%s has no commands", args[0])
		}

		transformer, err := cfg.Transformer()
		if err != nil {
			return err
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
		log := logger.With(zap.String("session", conn.Session()), zap.String("file", args[0]))

		bar := pb.StartNew(len(lines))
		defer bar.Finish()

		start := time.Now()
		for i, line := range lines {
			if ctx.Err() != nil {
				log.Warn("print interrupted", zap.Int("line", i+1))
				return ctx.Err()
			}
			n, err := pipe.SendLine(line)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			for j := 0; j < n; j++ {
				if _, err := waitOK(conn, maxIdle, nil); err != nil {
					return fmt.Errorf("line %d %q: %w", i+1, line, err)
				}
			}
			bar.Increment()
		}

		log.Info("print finished", zap.Int("lines", len(lines)), zap.Duration("elapsed", time.Since(start)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(printCmd)

	printCmd.Flags().Duration("wait-timeout", 5*time.Minute, "How long one command may take before giving up")
}
