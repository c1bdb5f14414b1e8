package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/seralin/drover/internal/config"
	"github.com/seralin/drover/internal/control"
	"github.com/seralin/drover/internal/events"
	"github.com/seralin/drover/internal/workflow"
	"github.com/seralin/drover/pkg/models"
)

var (
	workflowMode    string
	workflowWorkDir string
	workflowQuiet   bool
)

var workflowCmd = &cobra.Command{
	Use:   "workflow <file.yaml>",
	Short: "Execute a workflow definition",
	Long: `Execute a multi-step workflow from a YAML file.

Steps declare dependencies on earlier steps. The workflow mode decides how
the graph runs:
  sequential  Steps run in declared order; the first failure halts the run.
  parallel    Independent steps run concurrently, level by level. A failed
              step only blocks its own dependents.
  adaptive    Every step goes through the strategy engine, which picks
              workers by capability and past performance.

A run can be stopped from another terminal by writing a kill file into
.drover/signals (or via SIGINT). Finished step results are kept.

Examples:
  drover workflow release.yaml
  drover workflow --mode parallel pipeline.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func init() {
	workflowCmd.Flags().StringVar(&workflowMode, "mode", "", "Override the workflow mode: sequential, parallel, or adaptive")
	workflowCmd.Flags().StringVar(&workflowWorkDir, "workdir", "", "Working directory recorded in the execution context")
	workflowCmd.Flags().BoolVar(&workflowQuiet, "quiet", false, "Suppress step progress output")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	wf, err := config.LoadWorkflowFile(args[0])
	if err != nil {
		return err
	}
	if workflowMode != "" {
		mode := models.WorkflowMode(workflowMode)
		if !mode.Valid() {
			return fmt.Errorf("invalid workflow mode %q", workflowMode)
		}
		wf.Mode = mode
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifyInterrupt(cancel)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	if err := a.requireWorkers(); err != nil {
		return err
	}

	if os.Getenv("DROVER_DEBUG") != "" {
		dbg := workflow.NewDebugLoggerForProject(a.workDir)
		workflow.SetDebugLogger(dbg)
		defer dbg.Close()
	}

	// Cooperative stop: a kill file under .drover/signals cancels the run
	// between steps.
	signals, err := control.NewSignals(a.workDir)
	if err != nil {
		fmt.Printf("Warning: control signals unavailable: %v\n", err)
	} else {
		defer signals.Close()
		signals.Clear()
		var stopCancel context.CancelFunc
		ctx, stopCancel = signals.StopContext(ctx, control.DefaultPollInterval)
		defer stopCancel()
	}

	if !workflowQuiet {
		go printWorkflowEvents(a.emitter.Events())
	}

	workDir := workflowWorkDir
	if workDir == "" {
		workDir = a.workDir
	}

	fmt.Printf("Running workflow %s (%d steps, mode: %s)\n\n", wf.ID, len(wf.Steps), wf.Mode)
	started := time.Now()
	execution, execErr := a.executor.ExecuteWorkflow(ctx, wf, models.ExecutionContext{WorkDir: workDir})
	elapsed := time.Since(started).Round(time.Millisecond)

	if execution != nil {
		if hist := openHistory(a.workDir); hist != nil {
			if err := hist.RecordExecution(execution, wf.Mode); err != nil {
				fmt.Printf("Warning: record execution: %v\n", err)
			}
			hist.Close()
		}
		printExecutionSummary(execution, elapsed)
	}

	if execErr != nil {
		return fmt.Errorf("workflow %s: %w", wf.ID, execErr)
	}
	if execution.Status == models.ExecutionFailed {
		return fmt.Errorf("workflow %s: %d step(s) failed", wf.ID, len(execution.FailedSteps))
	}
	return nil
}

// printWorkflowEvents prints step progress to stdout.
func printWorkflowEvents(ch <-chan events.Event) {
	for ev := range ch {
		switch ev.Type {
		case events.EventStepStarted:
			fmt.Printf("[STARTED] step %s (worker: %s)\n", ev.StepID, ev.Worker)
		case events.EventStepCompleted:
			fmt.Printf("[DONE]    step %s\n", ev.StepID)
		case events.EventStepFailed:
			fmt.Printf("[FAILED]  step %s: %v\n", ev.StepID, ev.Error)
		case events.EventWorkflowCancelled:
			fmt.Printf("[STOPPED] workflow %s cancelled\n", ev.WorkflowID)
		}
	}
}

// printExecutionSummary prints the terminal state of a workflow run.
func printExecutionSummary(x *models.WorkflowExecution, elapsed time.Duration) {
	fmt.Println()
	switch x.Status {
	case models.ExecutionCompleted:
		fmt.Printf("%s Workflow %s completed in %s\n", color.GreenString("✓"), x.WorkflowID, elapsed)
	case models.ExecutionCancelled:
		fmt.Printf("%s Workflow %s cancelled after %s\n", color.YellowString("⚠"), x.WorkflowID, elapsed)
	default:
		fmt.Printf("%s Workflow %s failed after %s\n", color.RedString("✗"), x.WorkflowID, elapsed)
	}
	fmt.Printf("  Run: %s\n", x.ID)
	fmt.Printf("  Steps: %d completed, %d failed\n", len(x.CompletedSteps), len(x.FailedSteps))

	if len(x.Errors) > 0 {
		fmt.Println("\nFailed steps:")
		steps := make([]string, 0, len(x.Errors))
		for step := range x.Errors {
			steps = append(steps, step)
		}
		sort.Strings(steps)
		for _, step := range steps {
			fmt.Printf("  %s: %s\n", step, x.Errors[step])
		}
	}
}
