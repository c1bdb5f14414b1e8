package workflow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLoggerWritesTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	logger, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Log("resolving step %s", "build")
	logger.Log("level %d ready", 2)
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "Workflow Debug Log Started") {
		t.Errorf("missing header, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "resolving step build") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "[") {
		t.Errorf("expected timestamped line, got %q", lines[2])
	}
}

func TestDebugLoggerNoOpForms(t *testing.T) {
	// Empty path, NopLogger, and a nil receiver all swallow writes.
	empty, err := NewDebugLogger("")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	empty.Log("dropped")
	if err := empty.Close(); err != nil {
		t.Errorf("close no-op: %v", err)
	}

	NopLogger().Log("dropped")

	var nilLogger *DebugLogger
	nilLogger.Log("dropped")
	if err := nilLogger.Close(); err != nil {
		t.Errorf("close nil: %v", err)
	}
}

func TestNewDebugLoggerCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "debug.log")
	logger, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestNewDebugLoggerForProject(t *testing.T) {
	root := t.TempDir()
	logger := NewDebugLoggerForProject(root)
	defer logger.Close()

	want := filepath.Join(root, ".drover", "logs", "workflow-debug.log")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected log at %s: %v", want, err)
	}
}

func TestSetDebugLoggerRoutesPackageTraces(t *testing.T) {
	defer SetDebugLogger(nil)

	path := filepath.Join(t.TempDir(), "debug.log")
	logger, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	SetDebugLogger(logger)

	debugLog("tracing task %s", "t-42")

	SetDebugLogger(nil)
	debugLog("after detach")

	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "tracing task t-42") {
		t.Errorf("trace line missing from %q", string(data))
	}
	if strings.Contains(string(data), "after detach") {
		t.Errorf("detached logger still received writes: %q", string(data))
	}
}
