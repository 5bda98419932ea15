package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AgentConfig holds agent loop settings.
type AgentConfig struct {
	SystemPrompt  string  `yaml:"system_prompt"`
	MaxIterations int     `yaml:"max_iterations"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
}

// LLMConfig holds streaming model provider settings.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	// Breaker settings: consecutive failures before the circuit opens and
	// how long it stays open. Zero values use defaults.
	BreakerMaxFailures uint32 `yaml:"breaker_max_failures"`
	BreakerTimeout     string `yaml:"breaker_timeout"`
}

// StoreConfig holds snapshot store settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ToolsConfig holds tool execution settings.
type ToolsConfig struct {
	// RatePerMinute caps tool executions per tool. 0 disables the limiter.
	RatePerMinute int `yaml:"rate_per_minute"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout, noop
}

// Config is the top-level application configuration.
type Config struct {
	Agent  AgentConfig  `yaml:"agent"`
	LLM    LLMConfig    `yaml:"llm"`
	Store  StoreConfig  `yaml:"store"`
	Tools  ToolsConfig  `yaml:"tools"`
	Logger LoggerConfig `yaml:"logger"`
	Tracer TracerConfig `yaml:"tracer"`
}

// Default returns a configuration with sensible defaults applied.
func Default() Config {
	return Config{
		Agent: AgentConfig{
			SystemPrompt:  "You are a deliberation coordinator. Use the available tools to run council sessions and record knowledge.",
			MaxIterations: 10,
			Temperature:   0.2,
			MaxTokens:     4096,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Store:  StoreConfig{Path: "quorum.db"},
		Logger: LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		Tracer: TracerConfig{Enabled: false, Exporter: "noop"},
	}
}

// Load reads a YAML config file, expands ${ENV_VAR} references, and applies
// defaults for unset fields. A missing file returns defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field values that would otherwise fail deep inside wiring.
func (c *Config) Validate() error {
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 10
	}
	switch strings.ToLower(c.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Logger.Level)
	}
	switch strings.ToLower(c.Tracer.Exporter) {
	case "", "stdout", "noop":
	default:
		return fmt.Errorf("config: unknown tracer exporter %q", c.Tracer.Exporter)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("config: llm.model must be set")
	}
	return nil
}
