package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"NewsPoster/internal/config"
	"NewsPoster/internal/ports"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient implements ports.Completer on the Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  anthropic.Model
}

var _ ports.Completer = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client; extra options are passed to the SDK.
func NewAnthropicClient(cfg config.GenerationConfig, opts ...option.RequestOption) *AnthropicClient {
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{
		client: &client,
		model:  anthropic.Model(cfg.Model),
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, in ports.CompletionRequest) (string, error) {
	maxTokens := int64(in.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(in.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: safePrompt(in.System)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(in.Prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text in anthropic response")
	}
	return b.String(), nil
}
