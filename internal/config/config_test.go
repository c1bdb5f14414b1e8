package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Delegation.Strategy != "capability" {
		t.Errorf("expected default strategy 'capability', got %q", cfg.Delegation.Strategy)
	}
	if cfg.Coordination.MaxConcurrentTasks != 5 {
		t.Errorf("expected max_concurrent_tasks 5, got %d", cfg.Coordination.MaxConcurrentTasks)
	}
	if cfg.Coordination.TaskTimeout != 5*time.Minute {
		t.Errorf("expected task_timeout 5m, got %v", cfg.Coordination.TaskTimeout)
	}
	if cfg.Coordination.RetryPolicy.MaxRetries != 1 {
		t.Errorf("expected max_retries 1, got %d", cfg.Coordination.RetryPolicy.MaxRetries)
	}
	if cfg.Router.CacheSize != 128 {
		t.Errorf("expected cache_size 128, got %d", cfg.Router.CacheSize)
	}
	if cfg.Router.CacheTTL != 10*time.Minute {
		t.Errorf("expected cache_ttl 10m, got %v", cfg.Router.CacheTTL)
	}
	if cfg.Health.PollInterval != 60*time.Second {
		t.Errorf("expected poll_interval 60s, got %v", cfg.Health.PollInterval)
	}
	if len(cfg.Workers) != 0 {
		t.Errorf("expected no default workers, got %d", len(cfg.Workers))
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("default config must validate, got %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
workers:
  - name: claude-sonnet
    type: anthropic
    enabled: true
    capabilities: [coding, analysis]
    priority: 5
    max_load: 3
    model: claude-sonnet-4-20250514
  - name: local-llm
    type: cli
    enabled: true
    capabilities: [research]
    command: llm
    args: ["--no-stream"]
delegation:
  strategy: adaptive
  primary_worker: claude-sonnet
coordination:
  max_concurrent_tasks: 8
  task_timeout: 2m
  retry_policy:
    max_retries: 2
    backoff_multiplier: 1.5
    initial_delay: 500ms
router:
  default_worker: claude-sonnet
  fallback_chain: [claude-sonnet, local-llm]
  cache_size: 64
  cache_ttl: 5m
health:
  poll_interval: 30s
anthropic:
  api_key: test-key
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if len(cfg.Workers) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(cfg.Workers))
	}
	if cfg.Workers[0].Name != "claude-sonnet" || cfg.Workers[1].Name != "local-llm" {
		t.Errorf("worker order not preserved: %q, %q", cfg.Workers[0].Name, cfg.Workers[1].Name)
	}
	if cfg.Workers[0].Type != WorkerTypeAnthropic {
		t.Errorf("expected first worker type anthropic, got %q", cfg.Workers[0].Type)
	}
	if cfg.Workers[0].MaxLoad != 3 {
		t.Errorf("expected max_load 3, got %d", cfg.Workers[0].MaxLoad)
	}
	if len(cfg.Workers[0].Capabilities) != 2 || cfg.Workers[0].Capabilities[0] != "coding" {
		t.Errorf("unexpected capabilities: %v", cfg.Workers[0].Capabilities)
	}
	if cfg.Workers[1].Command != "llm" || len(cfg.Workers[1].Args) != 1 {
		t.Errorf("cli worker fields not loaded: %+v", cfg.Workers[1])
	}

	if cfg.Delegation.Strategy != "adaptive" {
		t.Errorf("expected strategy adaptive, got %q", cfg.Delegation.Strategy)
	}
	if cfg.Delegation.PrimaryWorker != "claude-sonnet" {
		t.Errorf("expected primary claude-sonnet, got %q", cfg.Delegation.PrimaryWorker)
	}
	if cfg.Coordination.MaxConcurrentTasks != 8 {
		t.Errorf("expected max_concurrent_tasks 8, got %d", cfg.Coordination.MaxConcurrentTasks)
	}
	if cfg.Coordination.TaskTimeout != 2*time.Minute {
		t.Errorf("expected task_timeout 2m, got %v", cfg.Coordination.TaskTimeout)
	}
	if cfg.Coordination.RetryPolicy.InitialDelay != 500*time.Millisecond {
		t.Errorf("expected initial_delay 500ms, got %v", cfg.Coordination.RetryPolicy.InitialDelay)
	}
	if len(cfg.Router.FallbackChain) != 2 {
		t.Errorf("expected 2 chain entries, got %v", cfg.Router.FallbackChain)
	}
	if cfg.Router.CacheTTL != 5*time.Minute {
		t.Errorf("expected cache_ttl 5m, got %v", cfg.Router.CacheTTL)
	}
	if cfg.Health.PollInterval != 30*time.Second {
		t.Errorf("expected poll_interval 30s, got %v", cfg.Health.PollInterval)
	}
	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("loaded config must validate, got %v", err)
	}
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
workers:
  - name: solo
    type: cli
    enabled: true
    command: echo
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Delegation.Strategy != "capability" {
		t.Errorf("expected default strategy, got %q", cfg.Delegation.Strategy)
	}
	if cfg.Coordination.TaskTimeout != 5*time.Minute {
		t.Errorf("expected default task_timeout, got %v", cfg.Coordination.TaskTimeout)
	}
	if cfg.Router.CacheSize != 128 {
		t.Errorf("expected default cache_size, got %d", cfg.Router.CacheSize)
	}
	if cfg.Health.PollInterval != 60*time.Second {
		t.Errorf("expected default poll_interval, got %v", cfg.Health.PollInterval)
	}
	if cfg.Anthropic.MaxTokens != 8192 {
		t.Errorf("expected default max_tokens, got %d", cfg.Anthropic.MaxTokens)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Workers = []WorkerConfig{
			{Name: "alpha", Type: WorkerTypeCLI, Enabled: true, Command: "echo"},
			{Name: "beta", Type: WorkerTypeAnthropic, Enabled: true},
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "missing worker name",
			mutate: func(c *Config) { c.Workers[0].Name = "" },
			field:  "workers[0].name",
		},
		{
			name:   "duplicate worker name",
			mutate: func(c *Config) { c.Workers[1].Name = "alpha" },
			field:  "workers[1].name",
		},
		{
			name:   "unknown worker type",
			mutate: func(c *Config) { c.Workers[0].Type = "carrier-pigeon" },
			field:  "workers[0].type",
		},
		{
			name:   "enabled cli worker without command",
			mutate: func(c *Config) { c.Workers[0].Command = "" },
			field:  "workers[0].command",
		},
		{
			name:   "negative max load",
			mutate: func(c *Config) { c.Workers[0].MaxLoad = -1 },
			field:  "workers[0].max_load",
		},
		{
			name:   "unknown strategy",
			mutate: func(c *Config) { c.Delegation.Strategy = "dartboard" },
			field:  "delegation.strategy",
		},
		{
			name:   "primary worker not configured",
			mutate: func(c *Config) { c.Delegation.PrimaryWorker = "ghost" },
			field:  "delegation.primary_worker",
		},
		{
			name:   "fallback chain names unknown worker",
			mutate: func(c *Config) { c.Router.FallbackChain = []string{"alpha", "ghost"} },
			field:  "router.fallback_chain[1]",
		},
		{
			name:   "default worker not configured",
			mutate: func(c *Config) { c.Router.DefaultWorker = "ghost" },
			field:  "router.default_worker",
		},
		{
			name:   "negative retry count",
			mutate: func(c *Config) { c.Coordination.RetryPolicy.MaxRetries = -1 },
			field:  "coordination.retry_policy.max_retries",
		},
		{
			name:   "negative poll interval",
			mutate: func(c *Config) { c.Health.PollInterval = -time.Second },
			field:  "health.poll_interval",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)

			err := Validate(cfg)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, cfgErr.Field)
			}
		})
	}
}

func TestValidateAllowsPartialConfig(t *testing.T) {
	// A config with no workers may still name a primary or chain; the
	// cross-check only applies once workers are declared.
	cfg := Default()
	cfg.Delegation.PrimaryWorker = "claude-sonnet"
	cfg.Router.FallbackChain = []string{"claude-sonnet"}

	if err := Validate(cfg); err != nil {
		t.Errorf("partial config must validate, got %v", err)
	}
}

func TestSaveRoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg := Default()
	cfg.Workers = []WorkerConfig{
		{
			Name:         "claude-sonnet",
			Type:         WorkerTypeAnthropic,
			Enabled:      true,
			Capabilities: []string{"coding"},
			Priority:     5,
			MaxLoad:      3,
			Model:        "claude-sonnet-4-20250514",
		},
	}
	cfg.Delegation.Strategy = "load_balanced"
	cfg.Router.FallbackChain = []string{"claude-sonnet"}

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(filepath.Join(tmpDir, "drover", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if len(loaded.Workers) != 1 || loaded.Workers[0].Name != "claude-sonnet" {
		t.Fatalf("workers did not round trip: %+v", loaded.Workers)
	}
	if loaded.Workers[0].MaxLoad != 3 || loaded.Workers[0].Priority != 5 {
		t.Errorf("worker fields did not round trip: %+v", loaded.Workers[0])
	}
	if loaded.Workers[0].Model != "claude-sonnet-4-20250514" {
		t.Errorf("model did not round trip: %q", loaded.Workers[0].Model)
	}
	if loaded.Delegation.Strategy != "load_balanced" {
		t.Errorf("strategy did not round trip: %q", loaded.Delegation.Strategy)
	}
	if len(loaded.Router.FallbackChain) != 1 {
		t.Errorf("fallback chain did not round trip: %v", loaded.Router.FallbackChain)
	}
	if loaded.Coordination.TaskTimeout != 5*time.Minute {
		t.Errorf("task_timeout did not round trip: %v", loaded.Coordination.TaskTimeout)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/drover"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestAPIKeyEnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("DROVER_TEST_KEY", "sk-ant-expanded")

	configContent := "anthropic:\n  api_key: ${DROVER_TEST_KEY}\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-expanded" {
		t.Errorf("expected expanded key, got %q", cfg.Anthropic.APIKey)
	}
}
