package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// Capability is the one surface the orchestration core sees of any LLM
// provider. Prompt content and model choice live with the callers.
type Capability interface {
	Complete(ctx context.Context, prompt string, modelHint string) (string, error)
}

// Client backs Capability with langchaingo. The model hint, when set,
// overrides the client default per call.
type Client struct {
	model llms.Model
}

func NewClient(ctx context.Context, apiKey, defaultModel string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("empty LLM API key")
	}
	if strings.TrimSpace(defaultModel) == "" {
		defaultModel = "gemini-2.5-flash"
	}

	m, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(defaultModel),
	)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	return &Client{model: m}, nil
}

func (c *Client) Complete(ctx context.Context, prompt string, modelHint string) (string, error) {
	if c == nil || c.model == nil {
		return "", fmt.Errorf("nil llm client")
	}
	opts := []llms.CallOption{}
	if strings.TrimSpace(modelHint) != "" {
		opts = append(opts, llms.WithModel(modelHint))
	}
	return llms.GenerateFromSinglePrompt(ctx, c.model, prompt, opts...)
}
