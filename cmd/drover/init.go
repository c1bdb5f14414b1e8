package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/seralin/drover/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Drover project",
	Long: `Initialize a directory for use with Drover.

This command sets up everything needed to run Drover:
  - Creates the .drover directory for history and control signals
  - Writes a starter .drover.yaml with example workers
  - Adds .drover/ to .gitignore

The directory argument is optional and defaults to the current directory.

Examples:
  drover init              # Initialize current directory
  drover init ./myproject  # Initialize specific directory
  drover init --force      # Overwrite an existing .drover.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .drover.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Drover in %s...\n\n", absPath)

	droverDir := filepath.Join(absPath, ".drover")
	if err := os.MkdirAll(droverDir, 0755); err != nil {
		return fmt.Errorf("creating .drover directory: %w", err)
	}
	printStatus("✓", "Created .drover directory", color.FgGreen)

	configPath := filepath.Join(absPath, ".drover.yaml")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		printStatus("✓", ".drover.yaml exists (use --force to overwrite)", color.FgGreen)
	} else {
		if err := os.WriteFile(configPath, []byte(starterConfig), 0644); err != nil {
			return fmt.Errorf("writing .drover.yaml: %w", err)
		}
		printStatus("✓", "Created .drover.yaml with example workers", color.FgGreen)
	}

	if err := updateGitignore(absPath); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	printStatus("✓", "Added .drover/ to .gitignore", color.FgGreen)

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (needed for anthropic workers)", color.FgYellow)
	} else if err := config.ValidateAPIKey(apiKey); err != nil {
		printStatus("⚠", fmt.Sprintf("ANTHROPIC_API_KEY looks wrong: %v", err), color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	fmt.Printf("\n%s Drover initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if apiKey == "" {
		fmt.Println("  1. Set your API key:")
		fmt.Println("     export ANTHROPIC_API_KEY=your-key-here")
		fmt.Println()
	}
	fmt.Println("  2. Check your worker pool:")
	fmt.Println("     drover workers")
	fmt.Println()
	fmt.Println("  3. Delegate a task:")
	fmt.Println("     drover run \"your task here\"")
	fmt.Println()
	fmt.Println("  4. Learn more:")
	fmt.Println("     drover --help")
	return nil
}

// starterConfig is the .drover.yaml written by init.
const starterConfig = `# Drover project configuration.
# Overrides ~/.config/drover/config.yaml; DROVER_* environment variables
# override both.

workers:
  - name: claude-sonnet
    type: anthropic
    enabled: true
    model: claude-sonnet-4-20250514
    capabilities: [coding, analysis, reasoning, research]
    priority: 2
    max_load: 4

  # A CLI worker wraps any local command that takes a task description
  # as its final argument and prints the result to stdout.
  - name: local-agent
    type: cli
    enabled: false
    command: my-agent
    args: ["--task"]
    capabilities: [coding]
    priority: 1
    max_load: 1

delegation:
  strategy: capability

router:
  fallback_chain: [claude-sonnet]

# coordination:
#   max_concurrent_tasks: 5
#   task_timeout: 5m
#   retry_policy:
#     max_retries: 1
#     initial_delay: 1s
`

// updateGitignore adds the .drover entry to .gitignore if not present.
func updateGitignore(dir string) error {
	gitignorePath := filepath.Join(dir, ".gitignore")

	var existing string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
	}
	if strings.Contains(existing, ".drover/") {
		return nil
	}

	var b strings.Builder
	b.WriteString(existing)
	if len(existing) > 0 && !strings.HasSuffix(existing, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n# Drover\n.drover/\n")
	return os.WriteFile(gitignorePath, []byte(b.String()), 0644)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
