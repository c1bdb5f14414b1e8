package worker

import (
	"context"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestUsageTracker(t *testing.T) {
	var tracker UsageTracker

	tracker.Add(100, 50)
	tracker.Add(200, 75)

	input, output, calls := tracker.Total()
	if input != 300 {
		t.Errorf("input tokens = %d, want 300", input)
	}
	if output != 125 {
		t.Errorf("output tokens = %d, want 125", output)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestBedrockModel(t *testing.T) {
	tests := []struct {
		name  string
		model anthropic.Model
		want  anthropic.Model
	}{
		{
			name:  "sonnet translates to inference profile",
			model: anthropic.ModelClaudeSonnet4_20250514,
			want:  "us.anthropic.claude-sonnet-4-20250514-v1:0",
		},
		{
			name:  "already bedrock format passes through",
			model: "us.anthropic.claude-sonnet-4-20250514-v1:0",
			want:  "us.anthropic.claude-sonnet-4-20250514-v1:0",
		},
		{
			name:  "unknown model passes through",
			model: "custom-model",
			want:  "custom-model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bedrockModel(tt.model); got != tt.want {
				t.Errorf("bedrockModel(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestAnthropicWorkerRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	w := NewAnthropicWorker(AnthropicConfig{Name: "claude"})
	if err := w.Initialize(context.Background()); err == nil {
		t.Fatal("Initialize() error = nil, want missing-key error")
	}
}

func TestAnthropicWorkerNotInitialized(t *testing.T) {
	w := NewAnthropicWorker(AnthropicConfig{Name: "claude"})

	if w.CheckHealth(context.Background()) {
		t.Error("CheckHealth() = true before Initialize, want false")
	}
	if w.AuthStatus().Authenticated {
		t.Error("AuthStatus().Authenticated = true before Initialize, want false")
	}
}
