package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seralin/drover/internal/exec"
	"github.com/seralin/drover/pkg/models"
)

// CLIWorker executes tasks by shelling out to an external command.
// The task description is appended as the final argument; the command's
// combined output becomes the task output.
type CLIWorker struct {
	// name is the registered worker name.
	name string
	// command is the executable to invoke.
	command string
	// args are fixed arguments placed before the task description.
	args []string
	// capabilities are the skill tags this worker advertises.
	capabilities []string
	// workDir is the working directory for invocations, if set.
	workDir string
	// timeout bounds each task invocation. Zero means no bound.
	timeout time.Duration
	// runner performs the actual command execution.
	runner exec.CommandRunner

	initialized bool
}

// CLIConfig configures a CLIWorker.
type CLIConfig struct {
	// Name is the registered worker name.
	Name string
	// Command is the executable to invoke for each task.
	Command string
	// Args are fixed arguments placed before the task description.
	Args []string
	// Capabilities are the skill tags to advertise.
	Capabilities []string
	// WorkDir is the working directory for invocations.
	WorkDir string
	// Timeout bounds each task invocation.
	Timeout time.Duration
	// Runner performs command execution. Defaults to exec.NewRunner().
	Runner exec.CommandRunner
}

// NewCLIWorker creates a CLI-backed worker from the given config.
func NewCLIWorker(cfg CLIConfig) *CLIWorker {
	runner := cfg.Runner
	if runner == nil {
		runner = exec.NewRunner()
	}
	return &CLIWorker{
		name:         cfg.Name,
		command:      cfg.Command,
		args:         cfg.Args,
		capabilities: cfg.Capabilities,
		workDir:      cfg.WorkDir,
		timeout:      cfg.Timeout,
		runner:       runner,
	}
}

// Initialize verifies the command is resolvable on PATH.
func (w *CLIWorker) Initialize(ctx context.Context) error {
	if w.command == "" {
		return fmt.Errorf("cli worker %s: no command configured", w.name)
	}
	if _, err := w.runner.RunShell(ctx, w.workDir, "command -v "+w.command); err != nil {
		return fmt.Errorf("cli worker %s: command %q not found in PATH: %w", w.name, w.command, err)
	}
	w.initialized = true
	return nil
}

// Shutdown releases nothing; CLI invocations hold no persistent resources.
func (w *CLIWorker) Shutdown(ctx context.Context) error {
	w.initialized = false
	return nil
}

// ExecuteTask invokes the command with the task description appended.
// A non-zero exit is an attempted-and-failed result, not an error.
func (w *CLIWorker) ExecuteTask(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	if !w.initialized {
		return nil, fmt.Errorf("cli worker %s: not initialized", w.name)
	}

	runCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	args := append(append([]string{}, w.args...), task.Description)

	start := time.Now()
	output, err := w.runner.Run(runCtx, w.workDir, w.command, args...)
	elapsed := time.Since(start)

	result := &models.TaskResult{
		TaskID:      task.ID,
		Worker:      w.name,
		Duration:    elapsed,
		CompletedAt: time.Now(),
	}

	if err != nil {
		result.Success = false
		result.Error = fmt.Sprintf("%v: %s", err, strings.TrimSpace(string(output)))
		return result, nil
	}

	result.Success = true
	result.Output = strings.TrimSpace(string(output))
	return result, nil
}

// CheckHealth re-resolves the command; a vanished binary turns the worker unhealthy.
func (w *CLIWorker) CheckHealth(ctx context.Context) bool {
	if !w.initialized {
		return false
	}
	_, err := w.runner.RunShell(ctx, w.workDir, "command -v "+w.command)
	return err == nil
}

// Capabilities returns the advertised skill tags.
func (w *CLIWorker) Capabilities() []string {
	return w.capabilities
}

// AuthStatus reports authentication as delegated to the underlying tool.
func (w *CLIWorker) AuthStatus() AuthStatus {
	return AuthStatus{
		Authenticated: w.initialized,
		Method:        "cli",
		Detail:        w.command,
	}
}

// Verify CLIWorker implements Contract at compile time.
var _ Contract = (*CLIWorker)(nil)
