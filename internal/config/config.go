// Package config loads CLI settings from m3d.yaml, M3D_* environment
// variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/rewrite"
	"github.com/allbin/go-m3d/serial"
)

const (
	EnvPrefix = "M3D"
	FileName  = "m3d"
)

// Config is the CLI configuration
type Config struct {
	Port        string            `mapstructure:"port"`
	Baud        int               `mapstructure:"baud"`
	ReadTimeout time.Duration     `mapstructure:"read_timeout"`
	Signature   string            `mapstructure:"signature"`
	Backend     string            `mapstructure:"backend"`
	Enumerator  string            `mapstructure:"enumerator"`
	Negotiation NegotiationConfig `mapstructure:"negotiation"`
	Rewrite     RewriteConfig     `mapstructure:"rewrite"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Extensions  map[string]any    `mapstructure:"extensions"`
}

// NegotiationConfig tunes the bootloader handshake
type NegotiationConfig struct {
	MaxModeSwitches int           `mapstructure:"max_mode_switches"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// RewriteConfig selects command rewrite rules
type RewriteConfig struct {
	ZigZag    bool   `mapstructure:"zigzag"`
	RulesFile string `mapstructure:"rules_file"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultDir is where the config file is looked for and saved to
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "m3d")
	}
	return "."
}

// Load reads path, or m3d.yaml from DefaultDir and the working directory
// when path is empty. A missing file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", m3d.AutoPort)
	v.SetDefault("baud", 0)
	v.SetDefault("read_timeout", "2s")
	v.SetDefault("signature", string(m3d.M3DSignature))
	v.SetDefault("backend", string(serial.DefaultBackend))
	v.SetDefault("enumerator", "usb")

	v.SetDefault("negotiation.max_mode_switches", m3d.DefaultMaxModeSwitches)
	v.SetDefault("negotiation.settle_delay", m3d.DefaultSettleDelay.String())
	v.SetDefault("negotiation.probe_timeout", m3d.DefaultProbeTimeout.String())
	v.SetDefault("negotiation.write_timeout", m3d.DefaultWriteTimeout.String())

	v.SetDefault("rewrite.zigzag", false)
	v.SetDefault("rewrite.rules_file", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Baud != 0 {
		found := false
		for _, rate := range serial.SupportedBaudRates() {
			if rate == cfg.Baud {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("baud %d is not a supported rate", cfg.Baud)
		}
	}
	if cfg.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout must not be negative")
	}
	if _, err := m3d.ParseSignature(cfg.Signature); err != nil {
		return err
	}
	if _, err := serial.ParseBackend(cfg.Backend); err != nil {
		return fmt.Errorf("backend %q: %w", cfg.Backend, err)
	}
	if _, err := serial.NewEnumerator(cfg.Enumerator); err != nil {
		return err
	}
	if cfg.Negotiation.MaxModeSwitches < 0 {
		return fmt.Errorf("negotiation.max_mode_switches must not be negative")
	}
	if cfg.Negotiation.ProbeTimeout <= 0 {
		return fmt.Errorf("negotiation.probe_timeout must be positive")
	}
	if cfg.Negotiation.SettleDelay < 0 {
		return fmt.Errorf("negotiation.settle_delay must not be negative")
	}
	if cfg.Negotiation.WriteTimeout <= 0 {
		return fmt.Errorf("negotiation.write_timeout must be positive")
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	for _, level := range validLevels {
		if cfg.Logging.Level == level {
			return nil
		}
	}
	return fmt.Errorf("logging.level must be one of: %v", validLevels)
}

// Options turns the configuration into m3d.Open options
func (c *Config) Options() ([]m3d.Option, error) {
	sig, err := m3d.ParseSignature(c.Signature)
	if err != nil {
		return nil, err
	}
	backend, err := serial.ParseBackend(c.Backend)
	if err != nil {
		return nil, err
	}
	enum, err := serial.NewEnumerator(c.Enumerator)
	if err != nil {
		return nil, err
	}

	opts := []m3d.Option{
		m3d.WithSignature(sig),
		m3d.WithBackend(backend),
		m3d.WithEnumerator(enum),
		m3d.WithMaxModeSwitches(c.Negotiation.MaxModeSwitches),
		m3d.WithSettleDelay(c.Negotiation.SettleDelay),
		m3d.WithProbeTimeout(c.Negotiation.ProbeTimeout),
		m3d.WithWriteTimeout(c.Negotiation.WriteTimeout),
	}
	for k, v := range c.Extensions {
		opts = append(opts, m3d.WithExtension(k, v))
	}
	return opts, nil
}

// Transformer builds the configured rewrite rules. The zig-zag rule comes
// first so it wins over a rules file entry for the same line.
func (c *Config) Transformer() (*rewrite.Transformer, error) {
	var rules []rewrite.Rule
	if c.Rewrite.ZigZag {
		rules = append(rules, rewrite.ZigZag())
	}
	if c.Rewrite.RulesFile != "" {
		f, err := os.Open(c.Rewrite.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("open rules file: %w", err)
		}
		defer f.Close()

		loaded, err := rewrite.LoadRules(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Rewrite.RulesFile, err)
		}
		rules = append(rules, loaded...)
	}
	return rewrite.New(rules...), nil
}

// SavePort stores port as the default and writes the config file,
// creating it under DefaultDir if none was loaded.
func SavePort(v *viper.Viper, port string) (string, error) {
	v.Set("port", port)

	path := v.ConfigFileUsed()
	if path == "" {
		dir := DefaultDir()
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create config dir: %w", err)
		}
		path = filepath.Join(dir, FileName+".yaml")
	}
	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
