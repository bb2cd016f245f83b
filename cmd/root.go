/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/internal/config"
	"github.com/allbin/go-m3d/internal/logging"
	"github.com/allbin/go-m3d/serial"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config
	logger  = zap.NewNop()
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "m3d",
	Short: "Talk to M3D printers over USB serial",
	Long: `m3d finds an M3D printer on the USB bus, takes it out of bootloader mode
and sends it G-code in the printer's binary framing.

Settings come from m3d.yaml (in the user config dir or the working
directory), M3D_* environment variables and flags, flags winning.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(v, cfgFile); err != nil {
			return err
		}
		if logger, err = logging.New(cfg.Logging); err != nil {
			return err
		}
		logger.Debug("configuration loaded",
			zap.String("file", v.ConfigFileUsed()),
			zap.String("port", cfg.Port),
			zap.String("backend", cfg.Backend))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError is the one place a failed command's error is shown
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", errorStyle.Render("✗"), err)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is m3d.yaml in the user config dir)")
	flags.StringP("port", "p", m3d.AutoPort, "serial port, or AUTO to find the printer")
	flags.IntP("baud", "b", 0, "baud rate (0 means 115200)")
	flags.Duration("read-timeout", 2*time.Second, "timeout for reading printer responses")
	flags.String("backend", string(serial.DefaultBackend), "serial backend: native or portable")
	flags.String("enumerator", "usb", "port enumerator: usb or sysfs")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-output", "stderr", "log output: stdout, stderr, off or a file path")
	flags.Bool("zigzag", false, "expand the zig-zag X move")
	flags.String("rules", "", "YAML file with command rewrite rules")

	for key, flag := range map[string]string{
		"port":               "port",
		"baud":               "baud",
		"read_timeout":       "read-timeout",
		"backend":            "backend",
		"enumerator":         "enumerator",
		"logging.level":      "log-level",
		"logging.output":     "log-output",
		"rewrite.zigzag":     "zigzag",
		"rewrite.rules_file": "rules",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// cliReporter prints handshake progress for interactive commands. Setup
// failures come back from Open and are printed by Execute.
func cliReporter() m3d.Reporter {
	return m3d.ReporterFuncs{
		OnStateChanged: func(s m3d.State) {
			switch s {
			case m3d.StateSwitching:
				fmt.Fprintf(os.Stderr, "%s Printer in bootloader, switching to firmware...\n", infoStyle.Render("⚡"))
			case m3d.StateReady:
				fmt.Fprintf(os.Stderr, "%s Printer ready\n", successStyle.Render("✓"))
			}
		},
	}
}

// portArg returns the port from args when given, else the configured one
func portArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Port
}

// openPrinter runs the handshake with the loaded configuration
func openPrinter(ctx context.Context, port string, reporter m3d.Reporter) (*m3d.Conn, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, m3d.WithLogger(logger), m3d.WithReporter(reporter))

	fmt.Fprintf(os.Stderr, "%s Opening %s...\n", infoStyle.Render("⚡"), port)
	return m3d.Open(ctx, port, cfg.Baud, cfg.ReadTimeout, opts...)
}
