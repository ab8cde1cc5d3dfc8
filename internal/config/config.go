package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "gitdag.toml"

// Config represents the configuration for gitdag.
type Config struct {
	DataDir     string     `toml:"data_dir"`     // repository root; objects live under <data_dir>/.gitdag
	LogLevel    string     `toml:"log_level"`    // debug, info, warn or error
	LogFormat   string     `toml:"log_format"`   // text or json
	LockTimeout Duration   `toml:"lock_timeout"` // how long import and fetch wait for the repository lock
	Kubo        KuboConfig `toml:"kubo"`
	Fuse        FuseConfig `toml:"fuse"`
}

// KuboConfig holds the address of the IPFS daemon used by publish.
type KuboConfig struct {
	APIURL  string   `toml:"api_url"`
	Timeout Duration `toml:"timeout"`
}

// FuseConfig holds mount options.
type FuseConfig struct {
	Debug bool `toml:"debug"`
}

// Duration is a time.Duration written as a string such as "10s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir:     ".",
		LogLevel:    "info",
		LogFormat:   "text",
		LockTimeout: Duration{30 * time.Second},
		Kubo: KuboConfig{
			APIURL:  "http://localhost:5001/api/v0",
			Timeout: Duration{10 * time.Second},
		},
	}
}

// Validate checks values that decode fine but make no sense.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.LockTimeout.Duration <= 0 {
		errs = append(errs, errors.New("lock_timeout must be positive"))
	}
	if c.Kubo.APIURL == "" {
		errs = append(errs, errors.New("kubo.api_url must not be empty"))
	}
	if c.Kubo.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("kubo.timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Read decodes a Config from r on top of the defaults. Keys the Config does
// not know about are an error.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to w.
func Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads path when it exists and falls back to the defaults otherwise.
func Load(path string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func writeToFile(path string, cfg *Config) (retErr error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		retErr = multierr.Append(retErr, f.Close())
	}()

	if err := Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to replace an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
