package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/rewrite"
	"github.com/allbin/go-m3d/serial"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, m3d.AutoPort, cfg.Port)
	require.Zero(t, cfg.Baud)
	require.Equal(t, 2*time.Second, cfg.ReadTimeout)
	require.Equal(t, string(m3d.M3DSignature), cfg.Signature)
	require.Equal(t, m3d.DefaultMaxModeSwitches, cfg.Negotiation.MaxModeSwitches)
	require.Equal(t, time.Second, cfg.Negotiation.SettleDelay)
	require.Equal(t, 20*time.Second, cfg.Negotiation.ProbeTimeout)
	require.Equal(t, 10000*time.Second, cfg.Negotiation.WriteTimeout)
	require.Equal(t, string(serial.DefaultBackend), cfg.Backend)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "m3d.yaml", `
port: /dev/ttyACM1
baud: 57600
read_timeout: 500ms
backend: portable
enumerator: sysfs
negotiation:
  max_mode_switches: 2
rewrite:
  zigzag: true
logging:
  level: debug
extensions:
  printer_name: micro
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM1", cfg.Port)
	require.Equal(t, 57600, cfg.Baud)
	require.Equal(t, 500*time.Millisecond, cfg.ReadTimeout)
	require.Equal(t, "portable", cfg.Backend)
	require.Equal(t, 2, cfg.Negotiation.MaxModeSwitches)
	require.True(t, cfg.Rewrite.ZigZag)
	require.Equal(t, "micro", cfg.Extensions["printer_name"])

	opts, err := cfg.Options()
	require.NoError(t, err)
	require.Len(t, opts, 8)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("M3D_PORT", "/dev/ttyACM7")
	t.Setenv("M3D_NEGOTIATION_MAX_MODE_SWITCHES", "9")

	cfg, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM7", cfg.Port)
	require.Equal(t, 9, cfg.Negotiation.MaxModeSwitches)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"baud", "baud: 12345\n"},
		{"signature", "signature: printer\n"},
		{"backend", "backend: tarm\n"},
		{"enumerator", "enumerator: udev\n"},
		{"switches", "negotiation:\n  max_mode_switches: -1\n"},
		{"level", "logging:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), writeFile(t, "m3d.yaml", tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestTransformer(t *testing.T) {
	rules := writeFile(t, "rules.yaml", "rules:\n  - match: M300\n    output: []\n")
	cfg := &Config{Rewrite: RewriteConfig{ZigZag: true, RulesFile: rules}}

	tr, err := cfg.Transformer()
	require.NoError(t, err)
	require.Len(t, tr.Rules(), 2)
	require.Len(t, tr.Transform(rewrite.Command{Line: "G1 X1.0000 F1946"}), 3)
	require.Empty(t, tr.Transform(rewrite.Command{Line: "M300"}))

	cfg.Rewrite.RulesFile = filepath.Join(t.TempDir(), "nope.yaml")
	_, err = cfg.Transformer()
	require.Error(t, err)
}

func TestSavePort(t *testing.T) {
	path := writeFile(t, "m3d.yaml", "baud: 115200\n")
	v := viper.New()
	_, err := Load(v, path)
	require.NoError(t, err)

	saved, err := SavePort(v, "/dev/ttyACM3")
	require.NoError(t, err)
	require.Equal(t, path, saved)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM3", cfg.Port)
	require.Equal(t, 115200, cfg.Baud)
}
