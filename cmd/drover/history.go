package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/seralin/drover/internal/state"
)

var (
	historyLimit int
	historyPurge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded delegation history",
	Long: `Show recent delegation decisions, direct routes, and workflow runs
from the project history store (.drover/history.db).

Use --purge to delete records older than the given age:
  drover history --purge 168h`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum rows per section")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete records older than this age")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.HistoryDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No history yet. Run 'drover run <task>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate history store: %w", err)
	}

	if historyPurge > 0 {
		n, err := db.PurgeOlderThan(historyPurge)
		if err != nil {
			return fmt.Errorf("purge history: %w", err)
		}
		fmt.Printf("Purged %d record(s) older than %s.\n", n, historyPurge)
		return nil
	}

	decisions, err := db.RecentDecisions(historyLimit)
	if err != nil {
		return fmt.Errorf("list decisions: %w", err)
	}
	routes, err := db.RecentRoutes(historyLimit)
	if err != nil {
		return fmt.Errorf("list routes: %w", err)
	}
	executions, err := db.RecentExecutions(historyLimit)
	if err != nil {
		return fmt.Errorf("list executions: %w", err)
	}

	if len(decisions) == 0 && len(routes) == 0 && len(executions) == 0 {
		fmt.Println("History is empty.")
		return nil
	}

	if len(decisions) > 0 {
		fmt.Println("Delegations:")
		for _, d := range decisions {
			fmt.Printf("  %-8s  %-8s → %-14s  %-13s  %.2f  %s\n",
				ago(d.DecidedAt), d.TaskID, d.Worker, d.Strategy, d.Confidence, d.Reason)
		}
		fmt.Println()
	}

	if len(routes) > 0 {
		fmt.Println("Routes:")
		for _, r := range routes {
			outcome := "ok"
			if !r.Success {
				outcome = "failed"
			}
			cached := ""
			if r.Cached {
				cached = ", cached"
			}
			fmt.Printf("  %-8s  %-8s → %-14s  %s (%d attempt(s)%s)\n",
				ago(r.RoutedAt), r.TaskID, r.Worker, outcome, r.Attempts, cached)
		}
		fmt.Println()
	}

	if len(executions) > 0 {
		fmt.Println("Workflow runs:")
		for _, x := range executions {
			duration := ""
			if x.EndedAt != nil {
				duration = fmt.Sprintf(" in %s", x.EndedAt.Sub(x.StartedAt).Round(time.Second))
			}
			fmt.Printf("  %-8s  %-8s  %-14s  %-10s  %s%s (%d/%d steps)\n",
				ago(x.StartedAt), x.ID, x.WorkflowID, x.Mode, x.Status, duration,
				x.CompletedSteps, x.CompletedSteps+x.FailedSteps)
		}
	}
	return nil
}

// ago formats how long ago a timestamp was, compactly.
func ago(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm ago", h, m)
		}
		return fmt.Sprintf("%dh ago", h)
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours())/24)
	}
}
