package main

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/seralin/drover/internal/config"
	"github.com/seralin/drover/internal/delegation"
	"github.com/seralin/drover/internal/events"
	"github.com/seralin/drover/internal/registry"
	"github.com/seralin/drover/internal/router"
	"github.com/seralin/drover/internal/state"
	"github.com/seralin/drover/internal/worker"
	"github.com/seralin/drover/internal/workflow"
)

// eventBufferSize is the emitter buffer shared by all components.
const eventBufferSize = 64

// app wires the registry, engine, router, and executor for one command
// invocation. Everything is constructed here; packages below cmd never
// reach for globals.
type app struct {
	cfg      *config.Config
	emitter  *events.Emitter
	registry *registry.Registry
	engine   *delegation.Engine
	router   *router.Router
	executor *workflow.Executor
	workDir  string
}

// newApp loads configuration, registers the configured workers, and builds
// the delegation engine, router, and workflow executor on top of them.
// Mutators run after loading, so commands can fold flag overrides into the
// config before anything is constructed.
func newApp(ctx context.Context, mutate ...func(*config.Config)) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	for _, m := range mutate {
		m(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	emitter := events.NewEmitter(eventBufferSize)
	reg := registry.New(registry.Options{
		PollInterval: cfg.Health.PollInterval,
		Events:       emitter,
	})

	for _, wc := range cfg.Workers {
		if !wc.Enabled {
			continue
		}
		contract, err := buildWorker(cfg, wc)
		if err != nil {
			fmt.Printf("Warning: worker %s skipped: %v\n", wc.Name, err)
			continue
		}
		regCfg := registry.WorkerConfig{
			Name:         wc.Name,
			Type:         wc.Type,
			Capabilities: wc.Capabilities,
			MaxLoad:      wc.MaxLoad,
		}
		if err := reg.Register(ctx, regCfg, contract); err != nil {
			// The worker stays registered in error state; a later health
			// poll can revive it.
			fmt.Printf("Warning: worker %s failed to initialize: %v\n", wc.Name, err)
		}
	}
	reg.StartHealthMonitor(ctx)

	engine := delegation.New(reg, delegation.Options{
		Strategy:      delegation.Strategy(cfg.Delegation.Strategy),
		PrimaryWorker: primaryWorker(cfg),
		Retry: delegation.RetryPolicy{
			MaxRetries:        cfg.Coordination.RetryPolicy.MaxRetries,
			BackoffMultiplier: cfg.Coordination.RetryPolicy.BackoffMultiplier,
			InitialDelay:      cfg.Coordination.RetryPolicy.InitialDelay,
		},
		TaskTimeout:        cfg.Coordination.TaskTimeout,
		MaxConcurrentTasks: cfg.Coordination.MaxConcurrentTasks,
		Events:             emitter,
	})

	rtr := router.New(reg, router.Options{
		DefaultWorker: cfg.Router.DefaultWorker,
		FallbackChain: cfg.Router.FallbackChain,
		CacheSize:     cfg.Router.CacheSize,
		CacheTTL:      cfg.Router.CacheTTL,
		Rates:         engine.SuccessRate,
		Events:        emitter,
	})
	rtr.Start()

	executor := workflow.New(reg, workflow.Options{
		Engine: engine,
		Events: emitter,
	})

	return &app{
		cfg:      cfg,
		emitter:  emitter,
		registry: reg,
		engine:   engine,
		router:   rtr,
		executor: executor,
		workDir:  workDir,
	}, nil
}

// loadConfig loads from the --config path when given, otherwise runs the
// normal search (user config, project file, environment).
func loadConfig() (*config.Config, error) {
	if rootCfgFile != "" {
		return config.LoadFromPath(rootCfgFile)
	}
	return config.Load()
}

// Close tears the app down in reverse construction order.
func (a *app) Close(ctx context.Context) {
	a.router.Stop()
	if err := a.engine.Shutdown(ctx); err != nil {
		fmt.Printf("Warning: engine shutdown: %v\n", err)
	}
	if err := a.registry.Shutdown(ctx); err != nil {
		fmt.Printf("Warning: registry shutdown: %v\n", err)
	}
	a.emitter.Close()
}

// requireWorkers fails with a hint when no worker could be registered.
func (a *app) requireWorkers() error {
	if a.registry.Count() == 0 {
		return fmt.Errorf("no workers registered; declare workers in %s or run 'drover init'",
			config.GetProjectConfigPath())
	}
	return nil
}

// buildWorker constructs the contract for a configured worker.
func buildWorker(cfg *config.Config, wc config.WorkerConfig) (worker.Contract, error) {
	switch wc.Type {
	case config.WorkerTypeCLI:
		return worker.NewCLIWorker(worker.CLIConfig{
			Name:         wc.Name,
			Command:      wc.Command,
			Args:         wc.Args,
			Capabilities: wc.Capabilities,
			Timeout:      cfg.Coordination.TaskTimeout,
		}), nil

	case config.WorkerTypeAnthropic:
		key, _, err := config.ResolveAPIKey(cfg)
		if err != nil && !cfg.Anthropic.UseBedrock {
			return nil, err
		}
		return worker.NewAnthropicWorker(worker.AnthropicConfig{
			Name:         wc.Name,
			Model:        anthropic.Model(wc.Model),
			APIKey:       key,
			UseBedrock:   cfg.Anthropic.UseBedrock,
			AWSRegion:    cfg.Anthropic.AWSRegion,
			AWSProfile:   cfg.Anthropic.AWSProfile,
			Capabilities: wc.Capabilities,
			MaxTokens:    cfg.Anthropic.MaxTokens,
		}), nil

	default:
		return nil, fmt.Errorf("unknown worker type %q", wc.Type)
	}
}

// primaryWorker resolves the priority strategy's primary target: the
// configured name when set, otherwise the highest-priority enabled worker.
func primaryWorker(cfg *config.Config) string {
	if cfg.Delegation.PrimaryWorker != "" {
		return cfg.Delegation.PrimaryWorker
	}
	best := ""
	bestPriority := 0
	for _, wc := range cfg.Workers {
		if !wc.Enabled {
			continue
		}
		if best == "" || wc.Priority > bestPriority {
			best = wc.Name
			bestPriority = wc.Priority
		}
	}
	return best
}

// openHistory opens the project history store, creating and migrating it as
// needed. History is optional: callers treat a nil store as "don't record".
func openHistory(workDir string) *state.DB {
	db, err := state.Open(state.HistoryDBPath(workDir))
	if err != nil {
		fmt.Printf("Warning: history store unavailable: %v\n", err)
		return nil
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		fmt.Printf("Warning: history store migration failed: %v\n", err)
		return nil
	}
	return db
}
