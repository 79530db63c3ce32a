package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mwantia/blockdb/lock"
	"github.com/mwantia/blockdb/log"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "BLOCKDB_"

// Config describes a blockdb server process.
type Config struct {
	// Listen is the address the HTTP server binds to (default: "127.0.0.1:8420")
	Listen string `yaml:"listen"`

	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	NoTerminalLog bool   `yaml:"no_terminal_log"`
	LogJSON       bool   `yaml:"log_json"`

	// SecretKey is the hex encoded 32 byte key used for encrypted blocks (optional)
	SecretKey string `yaml:"secret_key"`

	// HierarchyFile is a YAML or JSON hierarchy ensured on start and on every change (optional)
	HierarchyFile string `yaml:"hierarchy_file"`

	// RateLimit in requests per second; zero disables limiting
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	Lock    lock.Options  `yaml:"lock"`
	Backend BackendConfig `yaml:"backend"`
}

func Default() *Config {
	return &Config{
		Listen:   "127.0.0.1:8420",
		LogLevel: "info",
		Lock:     lock.DefaultOptions(),
		Backend: BackendConfig{
			Type: BackendMemory,
		},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// An empty path only applies the overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config '%s': %w", path, err)
		}

		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config '%s': %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LISTEN":         &c.Listen,
		"LOG_LEVEL":      &c.LogLevel,
		"LOG_FILE":       &c.LogFile,
		"SECRET_KEY":     &c.SecretKey,
		"HIERARCHY_FILE": &c.HierarchyFile,
		"BACKEND":        &c.Backend.Type,
		"BACKEND_PATH":   &c.Backend.Path,
		"BACKEND_URL":    &c.Backend.URL,
	}
	for key, target := range strs {
		if val, ok := lookup(EnvPrefix + key); ok {
			*target = val
		}
	}

	if val, ok := lookup(EnvPrefix + "RATE_LIMIT"); ok {
		limit, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %sRATE_LIMIT '%s': %w", EnvPrefix, val, err)
		}
		c.RateLimit = limit
	}

	if val, ok := lookup(EnvPrefix + "RATE_BURST"); ok {
		burst, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %sRATE_BURST '%s': %w", EnvPrefix, val, err)
		}
		c.RateBurst = burst
	}

	if val, ok := lookup(EnvPrefix + "BACKEND_READ_ONLY"); ok {
		readOnly, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid %sBACKEND_READ_ONLY '%s': %w", EnvPrefix, val, err)
		}
		c.Backend.ReadOnly = readOnly
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if _, err := log.Parse(c.LogLevel); err != nil {
		return err
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Lock.LeaseDuration < 0 || c.Lock.PollInterval < 0 || c.Lock.Timeout < 0 {
		return fmt.Errorf("lock durations must not be negative")
	}

	c.Backend.Type = strings.ToLower(strings.TrimSpace(c.Backend.Type))
	return c.Backend.Validate()
}

// Level returns the parsed log level. Validate has to succeed first.
func (c *Config) Level() log.LogLevel {
	level, _ := log.Parse(c.LogLevel)
	return level
}
