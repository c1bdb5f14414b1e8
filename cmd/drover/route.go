package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/seralin/drover/internal/state"
	"github.com/seralin/drover/pkg/models"
)

var (
	routeWorker   string
	routeType     string
	routePriority int
	routeDryRun   bool
)

var routeCmd = &cobra.Command{
	Use:   "route <task description>",
	Short: "Route a task directly to a worker",
	Long: `Route a task straight to a worker, without the strategy engine.

Selection is a single capability scoring pass over available workers.
Similar tasks reuse the previous route while it stays cached. When the
selected worker fails, the configured fallback chain is walked once in
declared order.

Examples:
  drover route "lint the diff"
  drover route --worker claude-sonnet "review this patch"
  drover route --dry-run "explain the build failure"`,
	Args: cobra.MinimumNArgs(1),
	RunE: routeTask,
}

func init() {
	routeCmd.Flags().StringVar(&routeWorker, "worker", "", "Route to this worker, skipping selection")
	routeCmd.Flags().StringVar(&routeType, "type", "general", "Task type: coding, research, analysis, multimodal, reasoning, or general")
	routeCmd.Flags().IntVar(&routePriority, "priority", 0, "Task priority")
	routeCmd.Flags().BoolVar(&routeDryRun, "dry-run", false, "Show the routing decision without executing")
}

func routeTask(cmd *cobra.Command, args []string) error {
	taskType := models.TaskType(routeType)
	if !taskType.Valid() {
		return fmt.Errorf("invalid task type %q", routeType)
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

	task := &models.Task{
		Description: strings.Join(args, " "),
		Type:        taskType,
		Priority:    routePriority,
		Status:      models.TaskStatusPending,
		CreatedAt:   time.Now(),
	}

	if routeDryRun {
		decision, err := a.router.RecommendWorker(task)
		if err != nil {
			return fmt.Errorf("recommend worker: %w", err)
		}
		fmt.Printf("Would route to %s\n", decision.Worker)
		fmt.Printf("  Reason: %s\n", decision.Reason)
		fmt.Printf("  Confidence: %.2f\n", decision.Confidence)
		if len(decision.Alternatives) > 0 {
			fmt.Printf("  Alternatives: %s\n", strings.Join(decision.Alternatives, ", "))
		}
		return nil
	}

	started := time.Now()
	var output string
	var routeErr error
	if routeWorker != "" {
		output, routeErr = a.router.RouteToWorker(ctx, task, routeWorker)
	} else {
		output, routeErr = a.router.RouteTask(ctx, task)
	}

	recordRoute(a, task, routeErr == nil)

	if routeErr != nil {
		return fmt.Errorf("route task: %w", routeErr)
	}

	snap := a.router.Analytics()
	fmt.Printf("%s Task %s routed in %s (%d attempt(s))\n",
		color.GreenString("✓"), task.ID, time.Since(started).Round(time.Millisecond), snap.TotalAttempts)
	fmt.Println()
	fmt.Println(output)
	return nil
}

// recordRoute persists the route outcome. In a single-command process the
// analytics snapshot holds exactly this route, so the final worker is the
// sole per-worker entry.
func recordRoute(a *app, task *models.Task, success bool) {
	snap := a.router.Analytics()
	if snap.TotalRoutes == 0 || len(snap.Workers) == 0 {
		// Nothing was attempted; selection failed before any worker.
		return
	}
	hist := openHistory(a.workDir)
	if hist == nil {
		return
	}
	defer hist.Close()

	rec := &state.RouteRecord{
		TaskID:   task.ID,
		Worker:   snap.Workers[0].Worker,
		Success:  success,
		Attempts: snap.TotalAttempts,
		Cached:   snap.CacheHits > 0,
		RoutedAt: time.Now(),
	}
	if err := hist.RecordRoute(*rec); err != nil {
		fmt.Printf("Warning: record route: %v\n", err)
	}
}
