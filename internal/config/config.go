// ABOUTME: Configuration loading and parsing for roundtable-gateway
// ABOUTME: YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete roundtable-gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Generator GeneratorConfig `yaml:"generator"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GeneratorConfig selects and configures the generation backend.
type GeneratorConfig struct {
	// Backend is "openai" (chat completions endpoint) or "scripted"
	// (deterministic canned replies, useful for demos and tests).
	Backend string `yaml:"backend"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// SchedulerConfig holds scheduling knobs.
type SchedulerConfig struct {
	// HistoryLimit bounds how many stored messages feed classification.
	HistoryLimit int `yaml:"history_limit"`
	// Seed fixes the reaction scheduler's random source; 0 means unseeded.
	Seed uint64 `yaml:"seed"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path. Environment variables
// in ${VAR_NAME} form are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with the environment value, or the
// empty string when unset.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func parseDurations(cfg *Config) error {
	if cfg.Generator.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Generator.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing generator timeout %q: %w", cfg.Generator.TimeoutRaw, err)
		}
		cfg.Generator.Timeout = d
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = ":8484"
	}
	if cfg.Generator.Backend == "" {
		cfg.Generator.Backend = "scripted"
	}
	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = 30 * time.Second
	}
	if cfg.Scheduler.HistoryLimit == 0 {
		cfg.Scheduler.HistoryLimit = 50
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks required fields and enum values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Generator.Backend {
	case "scripted":
	case "openai":
		if c.Generator.BaseURL == "" {
			return fmt.Errorf("generator.base_url is required for the openai backend")
		}
		if c.Generator.Model == "" {
			return fmt.Errorf("generator.model is required for the openai backend")
		}
	default:
		return fmt.Errorf("generator.backend must be openai or scripted, got %q", c.Generator.Backend)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
