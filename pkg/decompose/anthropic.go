package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
)

const systemPrompt = `You decompose a task into a workflow of subtasks for remote workers.
Respond with a single JSON object and nothing else:
{"workflow_name": "...", "subtasks": [{"id": "t1", "worker_id": "...", "capability_id": "...", "description": "...", "depends_on": []}]}
Every worker_id and capability_id must come from the provided worker catalog.
Use depends_on only when a subtask genuinely needs another subtask's output.`

// AnthropicService implements Service against the Anthropic Messages API.
type AnthropicService struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

func NewAnthropicService(apiKey string, model anthropic.Model) *AnthropicService {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	return &AnthropicService{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 4096,
	}
}

func (s *AnthropicService) Decompose(ctx context.Context, req Request) (Plan, error) {
	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req))),
		},
	})
	if err != nil {
		return Plan{}, fmt.Errorf("decomposition request: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	plan, err := parsePlan(text.String())
	if err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", req.Description)
	if req.ContextID != "" {
		fmt.Fprintf(&b, "Context: %s\n", req.ContextID)
	}
	b.WriteString("Available workers:\n")
	for _, ep := range req.Catalog {
		fmt.Fprintf(&b, "- %s (%s)\n", ep.WorkerID, ep.Name)
		for _, cap := range ep.Capabilities {
			fmt.Fprintf(&b, "  - capability %s: %s\n", cap.ID, cap.Description)
		}
	}
	return b.String()
}

// parsePlan extracts the JSON object from the model output, tolerating
// surrounding prose and markdown code fences.
func parsePlan(raw string) (Plan, error) {
	raw = strings.TrimSpace(raw)
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return Plan{}, errors.Wrap(err, "malformed decomposition output")
	}
	if plan.Subtasks == nil {
		return Plan{}, errors.New("decomposition output lacks a subtask array")
	}
	return plan, nil
}
