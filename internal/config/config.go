// ABOUTME: Configuration loading and parsing for finmcp
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables that override the llm section.
const EnvPrefix = "FINMCP"

// Transports accepted by server.transport.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// LLM providers accepted by llm.provider.
const (
	ProviderOpenAI   = "openai"
	ProviderTemplate = "template"
)

// Config represents the complete finmcp configuration
type Config struct {
	Server       ServerConfig       `yaml:"server" toml:"server"`
	Database     DatabaseConfig     `yaml:"database" toml:"database"`
	Tools        ToolsConfig        `yaml:"tools" toml:"tools"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" toml:"orchestrator"`
	LLM          LLMConfig          `yaml:"llm" toml:"llm"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds protocol server configuration
type ServerConfig struct {
	Name            string `yaml:"name" toml:"name"`
	Transport       string `yaml:"transport" toml:"transport"` // stdio or http
	HTTPAddr        string `yaml:"http_addr" toml:"http_addr"`
	StrictHandshake bool   `yaml:"strict_handshake" toml:"strict_handshake"`
	MaxMessageBytes int    `yaml:"max_message_bytes" toml:"max_message_bytes"`

	SessionTTL    time.Duration `yaml:"-" toml:"-"`
	SessionTTLRaw string        `yaml:"session_ttl" toml:"session_ttl"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // sqlite (pure Go) or sqlite3 (cgo)
	Path   string `yaml:"path" toml:"path"`
}

// ToolsConfig holds tool execution configuration
type ToolsConfig struct {
	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// OrchestratorConfig holds advisory pipeline configuration
type OrchestratorConfig struct {
	// AnalysisMonths limits the spending window. Zero means all time.
	AnalysisMonths int `yaml:"analysis_months" toml:"analysis_months"`

	StageTimeout    time.Duration `yaml:"-" toml:"-"`
	StageTimeoutRaw string        `yaml:"stage_timeout" toml:"stage_timeout"`
}

// LLMConfig holds text generator configuration
type LLMConfig struct {
	Provider          string  `yaml:"provider" toml:"provider"`
	Model             string  `yaml:"model" toml:"model"`
	BaseURL           string  `yaml:"base_url" toml:"base_url"`
	APIKey            string  `yaml:"api_key" toml:"api_key"`
	Temperature       float64 `yaml:"temperature" toml:"temperature"`
	MaxTokens         int64   `yaml:"max_tokens" toml:"max_tokens"`
	RequestsPerMinute int     `yaml:"requests_per_minute" toml:"requests_per_minute"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
	// Addr serves metrics on a separate listener when the stdio transport is used.
	Addr string `yaml:"addr" toml:"addr"`
}

// llmEnv mirrors the llm section for environment overrides. Unset variables
// leave the file values alone.
type llmEnv struct {
	Provider          *string  `envconfig:"LLM_PROVIDER"`
	Model             *string  `envconfig:"LLM_MODEL"`
	BaseURL           *string  `envconfig:"LLM_BASE_URL"`
	APIKey            *string  `envconfig:"LLM_API_KEY"`
	Temperature       *float64 `envconfig:"LLM_TEMPERATURE"`
	RequestsPerMinute *int     `envconfig:"LLM_REQUESTS_PER_MINUTE"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists: every
// default applied, the database at dbPath, and FINMCP_LLM_* overrides honored.
func Default(dbPath string) (*Config, error) {
	cfg := Config{Database: DatabaseConfig{Path: dbPath}}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnvOverrides lets FINMCP_LLM_* variables replace llm settings.
func applyEnvOverrides(cfg *Config) error {
	var env llmEnv
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	if env.Provider != nil {
		cfg.LLM.Provider = *env.Provider
	}
	if env.Model != nil {
		cfg.LLM.Model = *env.Model
	}
	if env.BaseURL != nil {
		cfg.LLM.BaseURL = *env.BaseURL
	}
	if env.APIKey != nil {
		cfg.LLM.APIKey = *env.APIKey
	}
	if env.Temperature != nil {
		cfg.LLM.Temperature = *env.Temperature
	}
	if env.RequestsPerMinute != nil {
		cfg.LLM.RequestsPerMinute = *env.RequestsPerMinute
	}
	return nil
}

// applyDefaults fills in zero values.
func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "finmcp"
	}
	if c.Server.Transport == "" {
		c.Server.Transport = TransportStdio
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.MaxMessageBytes == 0 {
		c.Server.MaxMessageBytes = 1 << 20
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = 30 * time.Minute
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Tools.Timeout == 0 {
		c.Tools.Timeout = 30 * time.Second
	}
	if c.Orchestrator.StageTimeout == 0 {
		c.Orchestrator.StageTimeout = 2 * time.Minute
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport)
	}
	if c.Server.Transport == TransportHTTP && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required for the http transport")
	}
	if c.Server.MaxMessageBytes < 0 {
		return fmt.Errorf("server.max_message_bytes must not be negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}

	if c.Orchestrator.AnalysisMonths < 0 {
		return fmt.Errorf("orchestrator.analysis_months must not be negative")
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderTemplate:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderOpenAI, ProviderTemplate, c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// UseTemplateGenerator reports whether the deterministic generator should be
// used, either by choice or because no API key is configured.
func (c *Config) UseTemplateGenerator() bool {
	return c.LLM.Provider == ProviderTemplate || strings.TrimSpace(c.LLM.APIKey) == ""
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.session_ttl", cfg.Server.SessionTTLRaw, &cfg.Server.SessionTTL},
		{"tools.timeout", cfg.Tools.TimeoutRaw, &cfg.Tools.Timeout},
		{"orchestrator.stage_timeout", cfg.Orchestrator.StageTimeoutRaw, &cfg.Orchestrator.StageTimeout},
		{"llm.timeout", cfg.LLM.TimeoutRaw, &cfg.LLM.Timeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
