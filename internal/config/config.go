// Package config loads the station settings of a circulation desk.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL  = "http://localhost:8080"
	DefaultJournal = "circdesk.db"
)

// Config is a station's settings file
type Config struct {
	APIURL       string        `yaml:"api_url"`
	Timeout      time.Duration `yaml:"timeout"`
	Station      string        `yaml:"station"`
	Mode         string        `yaml:"mode"`
	Member       int64         `yaml:"member"`
	AutoDispatch bool          `yaml:"auto_dispatch"`
	ResetDelay   time.Duration `yaml:"reset_delay"`
	Capture      Capture       `yaml:"capture"`
	Journal      string        `yaml:"journal"`
}

// Capture describes the scanner attached to the station
type Capture struct {
	Device string `yaml:"device"` // empty for a keyboard-only station
	Prefix string `yaml:"prefix"` // symbology identifier the scanner prepends, e.g. ]Q1
}

// Default returns the settings used when no file is given
func Default() *Config {
	station, err := os.Hostname()
	if err != nil {
		station = "desk"
	}
	return &Config{
		APIURL:     DefaultAPIURL,
		Timeout:    30 * time.Second,
		Station:    station,
		Mode:       "checkout",
		ResetDelay: 1500 * time.Millisecond,
		Journal:    DefaultJournal,
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CIRCDESK_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("CIRCDESK_DEVICE"); v != "" {
		c.Capture.Device = v
	}
	if v := os.Getenv("CIRCDESK_JOURNAL"); v != "" {
		c.Journal = v
	}
}

// Validate checks the values a desk cannot run without
func (c *Config) Validate() error {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.ResetDelay < 0 {
		return fmt.Errorf("reset_delay must not be negative, got %s", c.ResetDelay)
	}
	if c.Member < 0 {
		return fmt.Errorf("member must not be negative, got %d", c.Member)
	}
	return nil
}
