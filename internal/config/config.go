// ABOUTME: Configuration loading and parsing for foodbot-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete foodbot-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Line      LineConfig      `yaml:"line"`
	Database  DatabaseConfig  `yaml:"database"`
	Dedupe    DedupeConfig    `yaml:"dedupe"`
	Caches    CachesConfig    `yaml:"caches"`
	Responder ResponderConfig `yaml:"responder"`
	Worker    WorkerConfig    `yaml:"worker"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// LineConfig holds LINE Messaging API credentials and endpoints
type LineConfig struct {
	ChannelSecret      string `yaml:"channel_secret"`
	ChannelAccessToken string `yaml:"channel_access_token"`
	APIBase            string `yaml:"api_base"`      // override for tests/simulators
	DataAPIBase        string `yaml:"data_api_base"` // override for tests/simulators
}

// DatabaseConfig holds sqlite and connection pool configuration
type DatabaseConfig struct {
	Path           string `yaml:"path"`
	MinConnections int    `yaml:"min_connections"`
	MaxConnections int    `yaml:"max_connections"`

	AcquireTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	AcquireTimeoutRaw string `yaml:"acquire_timeout"`
}

// DedupeConfig holds event deduplication configuration
type DedupeConfig struct {
	MaxEntries int `yaml:"max_entries"`

	Window time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	WindowRaw string `yaml:"window"`
}

// CachesConfig holds expiring-cache tuning shared by all instances
type CachesConfig struct {
	MaxEntries          int `yaml:"max_entries"`
	PopularityThreshold int `yaml:"popularity_threshold"`
}

// ResponderConfig holds fast-path response table configuration
type ResponderConfig struct {
	// TablesPath points to a TOML file overriding the built-in response
	// tables. Empty means built-ins only.
	TablesPath string `yaml:"tables_path"`
}

// WorkerConfig holds slow-path worker pool configuration
type WorkerConfig struct {
	MaxWorkers int `yaml:"max_workers"`

	TaskTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TaskTimeoutRaw string `yaml:"task_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.MinConnections < 0 {
		return fmt.Errorf("database.min_connections must not be negative")
	}
	if c.Database.MaxConnections != 0 && c.Database.MaxConnections < c.Database.MinConnections {
		return fmt.Errorf("database.max_connections must be at least database.min_connections")
	}

	if c.Dedupe.MaxEntries < 0 {
		return fmt.Errorf("dedupe.max_entries must not be negative")
	}

	if c.Worker.MaxWorkers < 0 {
		return fmt.Errorf("worker.max_workers must not be negative")
	}

	// An access token without a secret (or vice versa) is almost always a
	// deployment mistake.
	if (c.Line.ChannelSecret == "") != (c.Line.ChannelAccessToken == "") {
		return fmt.Errorf("line.channel_secret and line.channel_access_token must be set together")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Database.AcquireTimeoutRaw != "" {
		cfg.Database.AcquireTimeout, err = time.ParseDuration(cfg.Database.AcquireTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing acquire_timeout %q: %w", cfg.Database.AcquireTimeoutRaw, err)
		}
	}

	if cfg.Dedupe.WindowRaw != "" {
		cfg.Dedupe.Window, err = time.ParseDuration(cfg.Dedupe.WindowRaw)
		if err != nil {
			return fmt.Errorf("parsing window %q: %w", cfg.Dedupe.WindowRaw, err)
		}
	}

	if cfg.Worker.TaskTimeoutRaw != "" {
		cfg.Worker.TaskTimeout, err = time.ParseDuration(cfg.Worker.TaskTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing task_timeout %q: %w", cfg.Worker.TaskTimeoutRaw, err)
		}
	}

	return nil
}
