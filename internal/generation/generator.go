package generation

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// TextGenerator turns a system contract and a user text into free text
type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// AnthropicGenerator implements TextGenerator over the Anthropic Messages API
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicGenerator creates a generator for model. Retries are left to
// the Adapter.
func NewAnthropicGenerator(apiKey, model string, maxTokens int) *AnthropicGenerator {
	return &AnthropicGenerator{
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
		),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

// Generate sends one message and returns the concatenated text blocks of the reply
func (g *AnthropicGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", &UpstreamUnavailableError{Err: err}
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", &MalformedOutputError{Reason: "no text content in response"}
	}
	return text.String(), nil
}
