// Package config handles configuration loading and management for Drover.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/seralin/drover/internal/delegation"
)

// Worker adapter types accepted in worker configs.
const (
	// WorkerTypeCLI shells out to an external command per task.
	WorkerTypeCLI = "cli"
	// WorkerTypeAnthropic sends tasks to the Anthropic API.
	WorkerTypeAnthropic = "anthropic"
)

// Config holds all configuration for Drover.
type Config struct {
	Workers      []WorkerConfig     `mapstructure:"workers"`
	Delegation   DelegationConfig   `mapstructure:"delegation"`
	Coordination CoordinationConfig `mapstructure:"coordination"`
	Router       RouterConfig       `mapstructure:"router"`
	Health       HealthConfig       `mapstructure:"health"`
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
}

// WorkerConfig declares one worker in the pool. Order matters: it is the
// registration order, and ties in selection fall back to it.
type WorkerConfig struct {
	// Name is the unique worker name.
	Name string `mapstructure:"name"`
	// Type selects the adapter: "cli" or "anthropic".
	Type string `mapstructure:"type"`
	// Enabled gates registration; disabled workers are skipped, not removed.
	Enabled bool `mapstructure:"enabled"`
	// Capabilities are the skill tags the worker advertises.
	Capabilities []string `mapstructure:"capabilities"`
	// Priority ranks workers for primary selection; higher wins.
	Priority int `mapstructure:"priority"`
	// MaxLoad caps concurrent tasks. Zero means the registry default.
	MaxLoad int `mapstructure:"max_load"`
	// Command is the executable for cli workers.
	Command string `mapstructure:"command"`
	// Args are fixed arguments placed before the task description.
	Args []string `mapstructure:"args"`
	// Model is the Claude model for anthropic workers.
	Model string `mapstructure:"model"`
}

// DelegationConfig selects how tasks map to workers.
type DelegationConfig struct {
	// Strategy is one of capability, load_balanced, priority, round_robin,
	// adaptive. Empty means capability.
	Strategy string `mapstructure:"strategy"`
	// PrimaryWorker is the preferred worker for the priority strategy.
	PrimaryWorker string `mapstructure:"primary_worker"`
}

// RetryPolicyConfig bounds the single retry/fallback round.
type RetryPolicyConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
}

// CoordinationConfig holds engine-level limits.
type CoordinationConfig struct {
	MaxConcurrentTasks int               `mapstructure:"max_concurrent_tasks"`
	TaskTimeout        time.Duration     `mapstructure:"task_timeout"`
	RetryPolicy        RetryPolicyConfig `mapstructure:"retry_policy"`
}

// RouterConfig holds direct-routing settings.
type RouterConfig struct {
	DefaultWorker string        `mapstructure:"default_worker"`
	FallbackChain []string      `mapstructure:"fallback_chain"`
	CacheSize     int           `mapstructure:"cache_size"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

// HealthConfig holds health monitor settings.
type HealthConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// AnthropicConfig holds Anthropic API settings shared by api workers.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
}

// ConfigurationError reports an invalid or inconsistent config value.
type ConfigurationError struct {
	// Field is the dotted config key, e.g. "workers[0].name".
	Field string
	// Reason says what is wrong with it.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, DROVER_*)
// 2. Project config (.drover.yaml in current directory or a parent)
// 3. User config (~/.config/drover/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("DROVER")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references left in the key value.
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file, skipping the
// XDG/project search. Used by tests and the --config flag.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("workers", workerMaps(cfg.Workers))
	v.Set("delegation.strategy", cfg.Delegation.Strategy)
	v.Set("delegation.primary_worker", cfg.Delegation.PrimaryWorker)
	v.Set("coordination.max_concurrent_tasks", cfg.Coordination.MaxConcurrentTasks)
	v.Set("coordination.task_timeout", cfg.Coordination.TaskTimeout.String())
	v.Set("coordination.retry_policy.max_retries", cfg.Coordination.RetryPolicy.MaxRetries)
	v.Set("coordination.retry_policy.backoff_multiplier", cfg.Coordination.RetryPolicy.BackoffMultiplier)
	v.Set("coordination.retry_policy.initial_delay", cfg.Coordination.RetryPolicy.InitialDelay.String())
	v.Set("router.default_worker", cfg.Router.DefaultWorker)
	v.Set("router.fallback_chain", cfg.Router.FallbackChain)
	v.Set("router.cache_size", cfg.Router.CacheSize)
	v.Set("router.cache_ttl", cfg.Router.CacheTTL.String())
	v.Set("health.poll_interval", cfg.Health.PollInterval.String())
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)

	return v.WriteConfig()
}

// workerMaps converts worker configs to plain maps so the YAML writer
// emits the mapstructure key names instead of Go field names.
func workerMaps(workers []WorkerConfig) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(workers))
	for _, w := range workers {
		m := map[string]interface{}{
			"name":    w.Name,
			"type":    w.Type,
			"enabled": w.Enabled,
		}
		if len(w.Capabilities) > 0 {
			m["capabilities"] = w.Capabilities
		}
		if w.Priority != 0 {
			m["priority"] = w.Priority
		}
		if w.MaxLoad != 0 {
			m["max_load"] = w.MaxLoad
		}
		if w.Command != "" {
			m["command"] = w.Command
		}
		if len(w.Args) > 0 {
			m["args"] = w.Args
		}
		if w.Model != "" {
			m["model"] = w.Model
		}
		out = append(out, m)
	}
	return out
}

// Validate checks the config for values that would misbehave at runtime.
// The first problem found is returned as a ConfigurationError.
func Validate(cfg *Config) error {
	seen := map[string]bool{}
	for i, w := range cfg.Workers {
		field := fmt.Sprintf("workers[%d]", i)
		if w.Name == "" {
			return &ConfigurationError{Field: field + ".name", Reason: "worker name is required"}
		}
		if seen[w.Name] {
			return &ConfigurationError{Field: field + ".name", Reason: fmt.Sprintf("duplicate worker name %q", w.Name)}
		}
		seen[w.Name] = true

		switch w.Type {
		case WorkerTypeCLI:
			if w.Enabled && w.Command == "" {
				return &ConfigurationError{Field: field + ".command", Reason: "cli worker needs a command"}
			}
		case WorkerTypeAnthropic:
		case "":
			return &ConfigurationError{Field: field + ".type", Reason: "worker type is required"}
		default:
			return &ConfigurationError{Field: field + ".type", Reason: fmt.Sprintf("unknown worker type %q", w.Type)}
		}

		if w.MaxLoad < 0 {
			return &ConfigurationError{Field: field + ".max_load", Reason: "must not be negative"}
		}
	}

	if s := cfg.Delegation.Strategy; s != "" && !delegation.Strategy(s).Valid() {
		return &ConfigurationError{Field: "delegation.strategy", Reason: fmt.Sprintf("unknown strategy %q", s)}
	}
	if p := cfg.Delegation.PrimaryWorker; p != "" && len(cfg.Workers) > 0 && !seen[p] {
		return &ConfigurationError{Field: "delegation.primary_worker", Reason: fmt.Sprintf("worker %q is not configured", p)}
	}

	if cfg.Coordination.MaxConcurrentTasks < 0 {
		return &ConfigurationError{Field: "coordination.max_concurrent_tasks", Reason: "must not be negative"}
	}
	if cfg.Coordination.TaskTimeout < 0 {
		return &ConfigurationError{Field: "coordination.task_timeout", Reason: "must not be negative"}
	}
	if cfg.Coordination.RetryPolicy.MaxRetries < 0 {
		return &ConfigurationError{Field: "coordination.retry_policy.max_retries", Reason: "must not be negative"}
	}
	if cfg.Coordination.RetryPolicy.BackoffMultiplier < 0 {
		return &ConfigurationError{Field: "coordination.retry_policy.backoff_multiplier", Reason: "must not be negative"}
	}
	if cfg.Coordination.RetryPolicy.InitialDelay < 0 {
		return &ConfigurationError{Field: "coordination.retry_policy.initial_delay", Reason: "must not be negative"}
	}

	if d := cfg.Router.DefaultWorker; d != "" && len(cfg.Workers) > 0 && !seen[d] {
		return &ConfigurationError{Field: "router.default_worker", Reason: fmt.Sprintf("worker %q is not configured", d)}
	}
	for i, name := range cfg.Router.FallbackChain {
		if len(cfg.Workers) > 0 && !seen[name] {
			return &ConfigurationError{
				Field:  fmt.Sprintf("router.fallback_chain[%d]", i),
				Reason: fmt.Sprintf("worker %q is not configured", name),
			}
		}
	}
	if cfg.Router.CacheSize < 0 {
		return &ConfigurationError{Field: "router.cache_size", Reason: "must not be negative"}
	}
	if cfg.Router.CacheTTL < 0 {
		return &ConfigurationError{Field: "router.cache_ttl", Reason: "must not be negative"}
	}

	if cfg.Health.PollInterval < 0 {
		return &ConfigurationError{Field: "health.poll_interval", Reason: "must not be negative"}
	}

	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Delegation defaults
	v.SetDefault("delegation.strategy", "capability")
	v.SetDefault("delegation.primary_worker", "")

	// Coordination defaults
	v.SetDefault("coordination.max_concurrent_tasks", 5)
	v.SetDefault("coordination.task_timeout", "5m")
	v.SetDefault("coordination.retry_policy.max_retries", 1)
	v.SetDefault("coordination.retry_policy.backoff_multiplier", 2.0)
	v.SetDefault("coordination.retry_policy.initial_delay", "1s")

	// Router defaults
	v.SetDefault("router.default_worker", "")
	v.SetDefault("router.fallback_chain", []string{})
	v.SetDefault("router.cache_size", 128)
	v.SetDefault("router.cache_ttl", "10m")

	// Health defaults
	v.SetDefault("health.poll_interval", "60s")

	// Anthropic defaults
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")
	v.SetDefault("anthropic.max_tokens", 8192)
}

// getUserConfigDir returns the XDG config directory for Drover.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "drover")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "drover")
	}
	return filepath.Join(home, ".config", "drover")
}

// findProjectConfig searches for .drover.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".drover.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values and no workers.
func Default() *Config {
	return &Config{
		Delegation: DelegationConfig{
			Strategy: "capability",
		},
		Coordination: CoordinationConfig{
			MaxConcurrentTasks: 5,
			TaskTimeout:        5 * time.Minute,
			RetryPolicy: RetryPolicyConfig{
				MaxRetries:        1,
				BackoffMultiplier: 2.0,
				InitialDelay:      time.Second,
			},
		},
		Router: RouterConfig{
			CacheSize: 128,
			CacheTTL:  10 * time.Minute,
		},
		Health: HealthConfig{
			PollInterval: 60 * time.Second,
		},
		Anthropic: AnthropicConfig{
			MaxTokens: 8192,
		},
	}
}
