// Package config loads PulseBot's hierarchical YAML configuration
// document, resolving ${VAR} and ${VAR:-default} environment-variable
// substitution before unmarshalling, matching pulsebot/config.py's
// _substitute_env_vars behavior.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration document described in
// spec §6 "Configuration surface".
type Config struct {
	Agent          AgentConfig                    `yaml:"agent"`
	Database       DatabaseConfig                 `yaml:"database"`
	Providers      map[string]ProviderConfig      `yaml:"providers"`
	Channels       map[string]ChannelConfig       `yaml:"channels"`
	Skills         SkillsConfig                   `yaml:"skills"`
	Search         SearchConfig                   `yaml:"search"`
	Memory         MemoryConfig                   `yaml:"memory"`
	ScheduledTasks map[string]ScheduledTaskConfig  `yaml:"scheduled_tasks"`
	Logging        LoggingConfig                  `yaml:"logging"`
}

// AgentConfig configures the agent identity and default model selection.
type AgentConfig struct {
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	Provider    string  `yaml:"provider"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// DatabaseConfig addresses the streaming database.
type DatabaseConfig struct {
	Host       string `yaml:"host"`
	QueryPort  int    `yaml:"query_port"`
	StreamPort int    `yaml:"stream_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
}

// ProviderConfig configures one named LLM or embedding provider under
// providers.<name>.
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	Host         string `yaml:"host"` // local: endpoint URL; anthropic: base URL override; gemini: location
	Enabled      bool   `yaml:"enabled"`
}

// ChannelConfig configures one named front-end channel under channels.<name>.
type ChannelConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Credentials  map[string]string `yaml:"credentials"`
	AllowedUsers []string          `yaml:"allowed_users"`
}

// SkillsConfig configures skill loading.
type SkillsConfig struct {
	Builtin        []string `yaml:"builtin"`
	Custom         []string `yaml:"custom"`
	SkillDirs      []string `yaml:"skill_dirs"`
	DisabledSkills []string `yaml:"disabled_skills"`
}

// SearchConfig configures the built-in web_search skill's backend.
type SearchConfig struct {
	Provider string `yaml:"provider"` // "brave" or "searxng" (local-alternative)
	APIKey   string `yaml:"api_key"`
	URL      string `yaml:"url"`
}

// MemoryConfig configures the Memory Manager.
type MemoryConfig struct {
	Enabled                 bool    `yaml:"enabled"`
	SimilarityThreshold     float64 `yaml:"similarity_threshold"`
	EmbeddingProvider       string  `yaml:"embedding_provider"`
	EmbeddingModel          string  `yaml:"embedding_model"`
	EmbeddingDimensions     int     `yaml:"embedding_dimensions"`
	EmbeddingTimeoutSeconds int     `yaml:"embedding_timeout_seconds"`
}

// ScheduledTaskConfig configures one named scheduled producer. Interval
// and Cron are mutually exclusive: Interval is a Go duration string
// ("30m") for the heartbeat/cost_alert style fixed-period tasks, Cron is a
// standard five-field cron expression for the daily_summary style task.
type ScheduledTaskConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Interval string         `yaml:"interval"`
	Cron     string         `yaml:"cron"`
	Payload  map[string]any `yaml:"payload"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with the documented defaults filled in, used
// both as the base merged into a loaded file and as the body of `init`'s
// generated config file.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:        "pulsebot",
			Model:       "claude-sonnet-4-20250514",
			Provider:    "anthropic",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Database: DatabaseConfig{
			Host:       "localhost",
			QueryPort:  8123,
			StreamPort: 8463,
			Username:   "default",
		},
		Providers: map[string]ProviderConfig{
			"anthropic": {DefaultModel: "claude-sonnet-4-20250514", Enabled: true},
		},
		Channels: map[string]ChannelConfig{
			"cli": {Enabled: true},
		},
		Skills: SkillsConfig{
			Builtin:   []string{"shell", "file_ops", "web_search"},
			SkillDirs: []string{"./skills"},
		},
		Search: SearchConfig{
			Provider: "brave",
		},
		Memory: MemoryConfig{
			Enabled:                 true,
			SimilarityThreshold:     0.95,
			EmbeddingProvider:       "openai",
			EmbeddingModel:          "text-embedding-3-small",
			EmbeddingTimeoutSeconds: 10,
		},
		ScheduledTasks: map[string]ScheduledTaskConfig{
			"heartbeat":      {Enabled: true, Interval: "30m"},
			"daily_summary":  {Enabled: false, Cron: "0 9 * * *"},
			"cost_alert":     {Enabled: false, Interval: "1h", Payload: map[string]any{"hourly_threshold_usd": 5.0}},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML document at path, substitutes environment
// variables, and merges it over Default().
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	substituted := substituteEnvVars(string(raw))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(substituted), cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid config", goerr.V("path", path))
	}
	return cfg, nil
}

// Validate checks invariants the loader cannot express through the YAML
// shape alone.
func (c *Config) Validate() error {
	if c.Agent.Name == "" {
		return goerr.New("agent.name is required")
	}
	if c.Agent.Provider == "" {
		return goerr.New("agent.provider is required")
	}
	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "text" {
		return goerr.New("logging.format must be json or text", goerr.V("format", c.Logging.Format))
	}
	if c.Search.Provider != "" && c.Search.Provider != "brave" && c.Search.Provider != "searxng" {
		return goerr.New("search.provider must be brave or searxng", goerr.V("provider", c.Search.Provider))
	}
	for name, task := range c.ScheduledTasks {
		if task.Interval != "" && task.Cron != "" {
			return goerr.New("scheduled_tasks entry must set interval or cron, not both", goerr.V("task", name))
		}
	}
	return nil
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// substituteEnvVars replaces every ${VAR} and ${VAR:-default} occurrence
// in s with the named environment variable, or its default when unset.
func substituteEnvVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return defaultValue
	})
}

// Write serializes cfg as YAML to path, used by the `init` subcommand.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return goerr.Wrap(err, "failed to write config file", goerr.V("path", path))
	}
	return nil
}

// ProviderFor returns the config for the named provider, or a zero value
// and false when it is not configured.
func (c *Config) ProviderFor(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok
}

// errUnknownProvider is returned by the bootstrap wiring when agent.provider
// names a provider with no providers.<name> section.
var errUnknownProvider = goerr.New("unknown provider")

// RequireProvider is a convenience wrapper used by bootstrap code that
// needs a descriptive error instead of a boolean.
func (c *Config) RequireProvider(name string) (ProviderConfig, error) {
	p, ok := c.ProviderFor(name)
	if !ok {
		return ProviderConfig{}, goerr.Wrap(errUnknownProvider, fmt.Sprintf("providers.%s is not configured", name), goerr.V("provider", name))
	}
	return p, nil
}
