// Package config handles CLI parsing and optional TOML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/squid-rewriter/config.toml",
	"configs/config.toml",
}

// Diagnostics formats.
const (
	DiagnosticsPlain = "plain"
	DiagnosticsLog   = "log"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string           `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	LogLevel    string           `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	LogFormat   string           `kong:"help='Log format: text|json (overrides config).',env='LOG_FORMAT'"`
	Diagnostics string           `kong:"help='Per-line diagnostics: plain|log (overrides config).',env='DIAGNOSTICS_FORMAT'"`
	AdminPort   int              `kong:"help='Serve the admin endpoint on this port (overrides config).',env='ADMIN_PORT'"`
	Version     kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level application configuration. None of it changes
// what is written to standard output.
type Config struct {
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Admin       AdminConfig       `toml:"admin"`
	Log         LogConfig         `toml:"log"`
	Metrics     MetricsConfig     `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// DiagnosticsConfig selects how the per-line diagnostic record is written.
type DiagnosticsConfig struct {
	Format string `toml:"format"`
}

// AdminConfig holds the optional admin HTTP endpoint settings.
type AdminConfig struct {
	Enabled   bool            `toml:"enabled"`
	Host      string          `toml:"host"`
	Port      int             `toml:"port"` // 0 means "use default" (9480)
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting on the admin endpoint.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file, if any, and applies CLI overrides.
// An explicit path (via --config or CONFIG_PATH) must exist. Otherwise it
// searches /etc/squid-rewriter/config.toml then configs/config.toml, and
// falls back to built-in defaults when neither exists.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		c.Log.Format = cli.LogFormat
	}
	if cli.Diagnostics != "" {
		c.Diagnostics.Format = cli.Diagnostics
	}
	if cli.AdminPort != 0 {
		c.Admin.Enabled = true
		c.Admin.Port = cli.AdminPort
	}
}

func (c *Config) validate() error {
	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		return fmt.Errorf("admin.port must be 0–65535; got %d", c.Admin.Port)
	}
	if c.Admin.RateLimit.Enabled && c.Admin.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("admin.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Admin.RateLimit.RequestsPerSecond)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Diagnostics.Format) {
	case DiagnosticsPlain, DiagnosticsLog, "":
	default:
		return fmt.Errorf("diagnostics.format must be one of: plain, log; got %q", c.Diagnostics.Format)
	}

	if c.Metrics.Enabled {
		if !c.Admin.Enabled {
			return fmt.Errorf("metrics.enabled requires admin.enabled")
		}
		if p := c.Metrics.Path; p != "" {
			if p[0] != '/' {
				return fmt.Errorf("metrics.path must start with '/'; got %q", p)
			}
			for _, reserved := range []string{"/healthz", "/helper/status"} {
				if p == reserved || strings.HasPrefix(p, reserved+"/") {
					return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
				}
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields. The admin endpoint binds to loopback
// unless told otherwise.
func (c *Config) setDefaults() {
	if c.Admin.Host == "" {
		c.Admin.Host = "127.0.0.1"
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 9480
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Diagnostics.Format == "" {
		c.Diagnostics.Format = DiagnosticsPlain
	}
	c.Diagnostics.Format = strings.ToLower(c.Diagnostics.Format)
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FilePath returns the config file that was loaded, or "" when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// Addr returns the admin listen address as host:port.
func (c *AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogSource reports where the configuration came from.
func (c *Config) LogSource(logger *slog.Logger) {
	if c.filePath == "" {
		logger.Debug("no config file found; using defaults", "searched", configSearchPaths)
		return
	}
	logger.Debug("config loaded", "path", c.filePath)
}
