package worker

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/seralin/drover/pkg/models"
)

// AnthropicConfig configures an AnthropicWorker.
type AnthropicConfig struct {
	// Name is the registered worker name.
	Name string
	// Model is the Claude model to use. Defaults to Sonnet.
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool
	// AWSRegion is the Bedrock region (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name.
	AWSProfile string
	// Capabilities are the skill tags to advertise.
	Capabilities []string
	// MaxTokens caps the response size per task. Defaults to 8192.
	MaxTokens int64
}

// AnthropicWorker executes tasks as single-turn messages against the
// Anthropic API, directly or via AWS Bedrock.
type AnthropicWorker struct {
	cfg    AnthropicConfig
	client anthropic.Client
	model  anthropic.Model
	usage  UsageTracker

	initialized bool
	authMethod  string
}

// NewAnthropicWorker creates an API-backed worker. The client is built
// during Initialize so registration failures surface through the registry.
func NewAnthropicWorker(cfg AnthropicConfig) *AnthropicWorker {
	return &AnthropicWorker{cfg: cfg}
}

// Initialize builds the SDK client for the configured transport.
func (w *AnthropicWorker) Initialize(ctx context.Context) error {
	var opts []option.RequestOption

	if w.cfg.UseBedrock {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if w.cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(w.cfg.AWSRegion))
		}
		if w.cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(w.cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
		w.authMethod = "bedrock"
	} else {
		apiKey := w.cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return fmt.Errorf("anthropic worker %s: ANTHROPIC_API_KEY is not set", w.cfg.Name)
		}
		opts = append(opts, option.WithAPIKey(apiKey))
		w.authMethod = "api_key"
	}

	w.client = anthropic.NewClient(opts...)

	w.model = w.cfg.Model
	if w.model == "" {
		w.model = anthropic.ModelClaudeSonnet4_20250514
	}
	if w.cfg.UseBedrock {
		w.model = bedrockModel(w.model)
	}

	w.initialized = true
	return nil
}

// Shutdown discards the client.
func (w *AnthropicWorker) Shutdown(ctx context.Context) error {
	w.initialized = false
	return nil
}

// ExecuteTask sends the task description as a single user message and
// returns the concatenated text blocks of the response.
func (w *AnthropicWorker) ExecuteTask(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	if !w.initialized {
		return nil, fmt.Errorf("anthropic worker %s: not initialized", w.cfg.Name)
	}

	maxTokens := w.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	start := time.Now()
	resp, err := w.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     w.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(task.Description)),
		},
	})
	elapsed := time.Since(start)

	result := &models.TaskResult{
		TaskID:      task.ID,
		Worker:      w.cfg.Name,
		Duration:    elapsed,
		CompletedAt: time.Now(),
	}

	if err != nil {
		result.Success = false
		result.Error = fmt.Sprintf("API call failed: %v", err)
		return result, nil
	}

	w.usage.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var out strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(variant.Text)
		}
	}

	result.Success = true
	result.Output = out.String()
	return result, nil
}

// CheckHealth reports whether the client is initialized and authenticated.
// A live API probe would cost tokens per poll, so health is local.
func (w *AnthropicWorker) CheckHealth(ctx context.Context) bool {
	return w.initialized
}

// Capabilities returns the advertised skill tags.
func (w *AnthropicWorker) Capabilities() []string {
	return w.cfg.Capabilities
}

// AuthStatus reports how the worker authenticates.
func (w *AnthropicWorker) AuthStatus() AuthStatus {
	return AuthStatus{
		Authenticated: w.initialized,
		Method:        w.authMethod,
		Detail:        string(w.model),
	}
}

// Usage returns the cumulative token usage for this worker.
func (w *AnthropicWorker) Usage() (input, output int64, calls int) {
	return w.usage.Total()
}

// bedrockModel converts a standard model name to the Bedrock cross-region
// inference profile format (us.anthropic.{model}-v1:0).
func bedrockModel(model anthropic.Model) anthropic.Model {
	// The 4.5/4.5-opus entries use string literals because their SDK
	// constants first appear in versions requiring a newer Go toolchain
	// than this module pins; the values match the SDK definitions.
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:         "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.Model("claude-sonnet-4-5-20250929"): "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.Model("claude-haiku-4-5-20251001"):  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:         "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.Model("claude-opus-4-5-20251101"):   "us.anthropic.claude-opus-4-5-20251101-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:        "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:         "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if m, ok := bedrockModels[model]; ok {
		return anthropic.Model(m)
	}
	// Already Bedrock format or a custom model
	return model
}

// UsageTracker accumulates token usage across API calls.
type UsageTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// Add records token usage from an API call.
func (t *UsageTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the accumulated input/output tokens and call count.
func (t *UsageTracker) Total() (input, output int64, calls int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok, t.calls
}

// Verify AnthropicWorker implements Contract at compile time.
var _ Contract = (*AnthropicWorker)(nil)
