package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/seralin/drover/internal/config"
	"github.com/seralin/drover/pkg/models"
)

var (
	runType     string
	runPriority int
	runStrategy string
	runTimeout  time.Duration
	runMeta     []string
)

var runCmd = &cobra.Command{
	Use:   "run <task description>",
	Short: "Delegate a task through the strategy engine",
	Long: `Delegate a single task to the best worker.

The strategy engine scores available workers and dispatches the task to the
winner. A failed attempt triggers one retry on a fallback worker when the
retry policy allows it. Every decision is recorded in the project history.

Task types map to required worker capabilities:
  coding, research, analysis, multimodal, reasoning, general

Examples:
  drover run "summarize the changelog"
  drover run --type coding --priority 3 "fix the flaky registry test"
  drover run --strategy load_balanced "translate the README"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runType, "type", "general", "Task type: coding, research, analysis, multimodal, reasoning, or general")
	runCmd.Flags().IntVar(&runPriority, "priority", 0, "Task priority; 3 and above is high priority")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Override the delegation strategy for this task")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Override the per-task timeout")
	runCmd.Flags().StringArrayVar(&runMeta, "meta", nil, "Task metadata as key=value (repeatable)")
}

func runTask(cmd *cobra.Command, args []string) error {
	taskType := models.TaskType(runType)
	if !taskType.Valid() {
		return fmt.Errorf("invalid task type %q", runType)
	}
	meta, err := parseMeta(runMeta)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifyInterrupt(cancel)

	a, err := newApp(ctx, func(cfg *config.Config) {
		if runStrategy != "" {
			cfg.Delegation.Strategy = runStrategy
		}
		if runTimeout > 0 {
			cfg.Coordination.TaskTimeout = runTimeout
		}
	})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	if err := a.requireWorkers(); err != nil {
		return err
	}

	task := &models.Task{
		Description: strings.Join(args, " "),
		Type:        taskType,
		Priority:    runPriority,
		Status:      models.TaskStatusPending,
		Metadata:    meta,
		CreatedAt:   time.Now(),
	}

	started := time.Now()
	output, delegateErr := a.engine.DelegateTask(ctx, task)

	// The newest decision is the one that handled (or finally failed) the
	// task, fallback round included.
	if recent := a.engine.Recent(1); len(recent) == 1 {
		if hist := openHistory(a.workDir); hist != nil {
			if err := hist.RecordDecision(recent[0]); err != nil {
				fmt.Printf("Warning: record decision: %v\n", err)
			}
			hist.Close()
		}
		if delegateErr == nil {
			fmt.Printf("%s Task %s completed by %s in %s\n",
				color.GreenString("✓"), task.ID, recent[0].Worker, time.Since(started).Round(time.Millisecond))
			fmt.Printf("  Strategy: %s (%s)\n", recent[0].Strategy, recent[0].Reason)
		}
	}

	if delegateErr != nil {
		return fmt.Errorf("delegate task: %w", delegateErr)
	}

	fmt.Println()
	fmt.Println(output)
	return nil
}

// parseMeta turns key=value pairs into task metadata.
func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --meta %q: expected key=value", pair)
		}
		meta[key] = value
	}
	return meta, nil
}

// notifyInterrupt cancels the run on SIGINT or SIGTERM.
func notifyInterrupt(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()
}
