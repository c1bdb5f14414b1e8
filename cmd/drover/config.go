package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seralin/drover/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Drover configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/drover/config.yaml
Project-specific overrides can be placed in .drover.yaml
Workers are edited in the config file directly.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	key, source, err := config.ResolveAPIKey(cfg)
	display := "(not set)"
	if err == nil {
		display = fmt.Sprintf("%s (from %s)", config.MaskAPIKey(key), source)
	}

	fmt.Printf("anthropic.api_key: %s\n", display)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", cfg.Anthropic.AWSRegion)
	fmt.Printf("anthropic.max_tokens: %d\n", cfg.Anthropic.MaxTokens)
	fmt.Printf("delegation.strategy: %s\n", cfg.Delegation.Strategy)
	fmt.Printf("delegation.primary_worker: %s\n", cfg.Delegation.PrimaryWorker)
	fmt.Printf("coordination.max_concurrent_tasks: %d\n", cfg.Coordination.MaxConcurrentTasks)
	fmt.Printf("coordination.task_timeout: %s\n", cfg.Coordination.TaskTimeout)
	fmt.Printf("coordination.retry.max_retries: %d\n", cfg.Coordination.RetryPolicy.MaxRetries)
	fmt.Printf("coordination.retry.backoff_multiplier: %.1f\n", cfg.Coordination.RetryPolicy.BackoffMultiplier)
	fmt.Printf("coordination.retry.initial_delay: %s\n", cfg.Coordination.RetryPolicy.InitialDelay)
	fmt.Printf("router.default_worker: %s\n", cfg.Router.DefaultWorker)
	fmt.Printf("router.fallback_chain: %s\n", strings.Join(cfg.Router.FallbackChain, ","))
	fmt.Printf("router.cache_size: %d\n", cfg.Router.CacheSize)
	fmt.Printf("router.cache_ttl: %s\n", cfg.Router.CacheTTL)
	fmt.Printf("health.poll_interval: %s\n", cfg.Health.PollInterval)

	if len(cfg.Workers) > 0 {
		names := make([]string, 0, len(cfg.Workers))
		for _, w := range cfg.Workers {
			name := w.Name
			if !w.Enabled {
				name += " (disabled)"
			}
			names = append(names, name)
		}
		fmt.Printf("workers: %s\n", strings.Join(names, ", "))
	} else {
		fmt.Printf("workers: (none)\n")
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "anthropic.max_tokens":
		return strconv.FormatInt(cfg.Anthropic.MaxTokens, 10), nil
	case "delegation.strategy":
		return cfg.Delegation.Strategy, nil
	case "delegation.primary_worker":
		return cfg.Delegation.PrimaryWorker, nil
	case "coordination.max_concurrent_tasks":
		return strconv.Itoa(cfg.Coordination.MaxConcurrentTasks), nil
	case "coordination.task_timeout":
		return cfg.Coordination.TaskTimeout.String(), nil
	case "coordination.retry.max_retries":
		return strconv.Itoa(cfg.Coordination.RetryPolicy.MaxRetries), nil
	case "coordination.retry.backoff_multiplier":
		return strconv.FormatFloat(cfg.Coordination.RetryPolicy.BackoffMultiplier, 'f', -1, 64), nil
	case "coordination.retry.initial_delay":
		return cfg.Coordination.RetryPolicy.InitialDelay.String(), nil
	case "router.default_worker":
		return cfg.Router.DefaultWorker, nil
	case "router.fallback_chain":
		return strings.Join(cfg.Router.FallbackChain, ","), nil
	case "router.cache_size":
		return strconv.Itoa(cfg.Router.CacheSize), nil
	case "router.cache_ttl":
		return cfg.Router.CacheTTL.String(), nil
	case "health.poll_interval":
		return cfg.Health.PollInterval.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "anthropic.max_tokens":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		cfg.Anthropic.MaxTokens = n
	case "delegation.strategy":
		cfg.Delegation.Strategy = value
	case "delegation.primary_worker":
		cfg.Delegation.PrimaryWorker = value
	case "coordination.max_concurrent_tasks":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_concurrent_tasks: %w", err)
		}
		cfg.Coordination.MaxConcurrentTasks = n
	case "coordination.task_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for task_timeout: %w", err)
		}
		cfg.Coordination.TaskTimeout = d
	case "coordination.retry.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_retries: %w", err)
		}
		cfg.Coordination.RetryPolicy.MaxRetries = n
	case "coordination.retry.backoff_multiplier":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for backoff_multiplier: %w", err)
		}
		cfg.Coordination.RetryPolicy.BackoffMultiplier = f
	case "coordination.retry.initial_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for initial_delay: %w", err)
		}
		cfg.Coordination.RetryPolicy.InitialDelay = d
	case "router.default_worker":
		cfg.Router.DefaultWorker = value
	case "router.fallback_chain":
		var chain []string
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				chain = append(chain, name)
			}
		}
		cfg.Router.FallbackChain = chain
	case "router.cache_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for cache_size: %w", err)
		}
		cfg.Router.CacheSize = n
	case "router.cache_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for cache_ttl: %w", err)
		}
		cfg.Router.CacheTTL = d
	case "health.poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for poll_interval: %w", err)
		}
		cfg.Health.PollInterval = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
