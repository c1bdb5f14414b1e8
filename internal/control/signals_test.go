package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewSignalsCreatesDirectory(t *testing.T) {
	root := t.TempDir()

	s, err := NewSignals(root)
	if err != nil {
		t.Fatalf("NewSignals failed: %v", err)
	}
	defer s.Close()

	want := filepath.Join(root, ".drover", "signals")
	if s.Dir() != want {
		t.Errorf("expected dir %q, got %q", want, s.Dir())
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected signals directory created: %v", err)
	}
}

func TestShouldStopSeesKillFile(t *testing.T) {
	s, err := NewSignals(t.TempDir())
	if err != nil {
		t.Fatalf("NewSignals failed: %v", err)
	}
	defer s.Close()

	if s.ShouldStop() {
		t.Fatal("expected no stop signal initially")
	}

	if err := s.SendKill(); err != nil {
		t.Fatalf("SendKill failed: %v", err)
	}

	// The stat fallback sees the file even if the watcher event has not
	// landed yet.
	if !s.ShouldStop() {
		t.Error("expected stop signal after kill file created")
	}
	if s.ShouldPause() {
		t.Error("kill must not imply pause")
	}
}

func TestShouldPauseSeesPauseFile(t *testing.T) {
	s, err := NewSignals(t.TempDir())
	if err != nil {
		t.Fatalf("NewSignals failed: %v", err)
	}
	defer s.Close()

	if err := s.SendPause(); err != nil {
		t.Fatalf("SendPause failed: %v", err)
	}

	if !s.ShouldPause() {
		t.Error("expected pause signal after pause file created")
	}
	if s.ShouldStop() {
		t.Error("pause must not imply stop")
	}
}

func TestSignalsSeenWithoutWatcher(t *testing.T) {
	// Simulate the polling fallback: a kill file written by another
	// process before any watcher event.
	root := t.TempDir()
	dir := filepath.Join(root, ".drover", "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "kill"), []byte("now"), 0644); err != nil {
		t.Fatalf("write kill file: %v", err)
	}

	s, err := NewSignals(root)
	if err != nil {
		t.Fatalf("NewSignals failed: %v", err)
	}
	defer s.Close()

	if !s.ShouldStop() {
		t.Error("expected pre-existing kill file detected")
	}
}

func TestClearResetsSignals(t *testing.T) {
	s, err := NewSignals(t.TempDir())
	if err != nil {
		t.Fatalf("NewSignals failed: %v", err)
	}
	defer s.Close()

	if err := s.SendKill(); err != nil {
		t.Fatalf("SendKill failed: %v", err)
	}
	if !s.ShouldStop() {
		t.Fatal("expected stop signal")
	}

	s.Clear()

	if s.ShouldStop() {
		t.Error("expected stop signal cleared")
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "kill")); !os.IsNotExist(err) {
		t.Error("expected kill file removed")
	}
}

func TestStopContextCancelsOnKill(t *testing.T) {
	s, err := NewSignals(t.TempDir())
	if err != nil {
		t.Fatalf("NewSignals failed: %v", err)
	}
	defer s.Close()

	ctx, cancel := s.StopContext(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := s.SendKill(); err != nil {
		t.Fatalf("SendKill failed: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected context cancelled after kill signal")
	}
}

func TestStopContextRespectsParent(t *testing.T) {
	s, err := NewSignals(t.TempDir())
	if err != nil {
		t.Fatalf("NewSignals failed: %v", err)
	}
	defer s.Close()

	parent, parentCancel := context.WithCancel(context.Background())
	ctx, cancel := s.StopContext(parent, time.Minute)
	defer cancel()

	parentCancel()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected context cancelled with parent")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := NewSignals(t.TempDir())
	if err != nil {
		t.Fatalf("NewSignals failed: %v", err)
	}

	s.Close()
	s.Close()
}
