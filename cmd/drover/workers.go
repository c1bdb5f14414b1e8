package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seralin/drover/internal/tui"
)

var workersWatch bool

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Show the worker pool",
	Long: `Show every configured worker with its status, load, and capabilities.

With --watch, opens a live dashboard that follows worker status and the
engine's event stream until you quit.`,
	RunE: runWorkers,
}

func init() {
	workersCmd.Flags().BoolVar(&workersWatch, "watch", false, "Open the live dashboard")
}

func runWorkers(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifyInterrupt(cancel)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if workersWatch {
		return tui.RunWatch(a.registry, a.emitter)
	}

	workers := a.registry.List()
	if len(workers) == 0 {
		fmt.Println("No workers registered. Declare workers in .drover.yaml or run 'drover init'.")
		return nil
	}

	nameWidth := len("WORKER")
	for _, w := range workers {
		if len(w.Name) > nameWidth {
			nameWidth = len(w.Name)
		}
	}

	fmt.Printf("%-*s  %-10s  %-10s  %-6s  %s\n", nameWidth, "WORKER", "TYPE", "STATUS", "LOAD", "CAPABILITIES")
	for _, w := range workers {
		caps := strings.Join(w.Capabilities, ", ")
		if caps == "" {
			caps = "-"
		}
		fmt.Printf("%-*s  %-10s  %-10s  %-6s  %s\n",
			nameWidth, w.Name, w.Type, w.Status,
			fmt.Sprintf("%d/%d", w.CurrentLoad, w.MaxLoad), caps)
	}
	return nil
}
