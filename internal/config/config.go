// Package config loads papapizza settings from a YAML file and the
// environment.
//
// Precedence, lowest first: Default, the file, PAPAPIZZA_* variables,
// command-line flags (applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfig    = "PAPAPIZZA_CONFIG"
	EnvAPIBase   = "PAPAPIZZA_API_BASE"
	EnvTimeout   = "PAPAPIZZA_TIMEOUT"
	EnvDatabase  = "PAPAPIZZA_DB"
	EnvRedisAddr = "PAPAPIZZA_REDIS_ADDR"
	EnvListen    = "PAPAPIZZA_LISTEN"
)

// Config holds client and server settings.
type Config struct {
	// APIBase is the order API the client talks to.
	APIBase string `yaml:"api_base"`

	// Timeout bounds each HTTP request made by the client.
	Timeout time.Duration `yaml:"timeout"`

	// Database is the SQLite file used by serve. Empty means in memory.
	Database string `yaml:"database"`

	// RedisAddr selects the Redis repository for serve when set.
	RedisAddr string `yaml:"redis_addr"`

	// RedisSession namespaces the Redis keys.
	RedisSession string `yaml:"redis_session"`

	// Menu is a CUE menu file. Empty means the built-in menu.
	Menu string `yaml:"menu"`

	// GSTRate is a decimal string such as "0.10".
	GSTRate string `yaml:"gst_rate"`

	// Listen is the serve address.
	Listen string `yaml:"listen"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIBase:      "http://localhost:1984",
		Timeout:      10 * time.Second,
		RedisSession: "default",
		GSTRate:      "0.10",
		Listen:       ":1984",
	}
}

// Load returns Default overlaid with the file at path. Unknown keys are
// errors.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Resolve loads the file named by path, or by PAPAPIZZA_CONFIG when path is
// empty, then applies the environment. With neither set it starts from
// Default.
func Resolve(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from PAPAPIZZA_* variables that are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvAPIBase); v != "" {
		c.APIBase = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvTimeout, v, err)
		}
		c.Timeout = d
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	u, err := url.Parse(c.APIBase)
	if err != nil {
		return fmt.Errorf("invalid api_base %q: %w", c.APIBase, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid api_base %q: want an http or https URL", c.APIBase)
	}
	if _, err := c.Rate(); err != nil {
		return err
	}
	if c.Database != "" && c.RedisAddr != "" {
		return errors.New("database and redis_addr are mutually exclusive")
	}
	if c.Listen == "" {
		return errors.New("listen must be set")
	}
	return nil
}

// Rate parses GSTRate, which must lie in [0, 1).
func (c Config) Rate() (decimal.Decimal, error) {
	r, err := decimal.NewFromString(c.GSTRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid gst_rate %q: %w", c.GSTRate, err)
	}
	if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("gst_rate must be in [0, 1), got %s", c.GSTRate)
	}
	return r, nil
}
