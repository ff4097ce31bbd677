package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient wraps the Anthropic SDK to implement Client.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// NewAnthropicClient creates a Claude-backed client. An empty model
// selects the default.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// Complete implements Client. System messages are extracted to the
// top-level system parameter as the Messages API requires.
func (c *AnthropicClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	var systemParts []string
	messages := make([]anthropic.MessageParam, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(messages) == 0 {
		return CompletionResponse{}, NewError(ErrorTypeBadPrompt, "request has no user or assistant messages")
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if len(systemParts) > 0 {
		params.System = []anthropic.TextBlockParam{{
			Text: strings.Join(systemParts, "\n\n"),
			Type: "text",
		}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, ClassifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "empty response from Claude API")
	}

	var sb strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return CompletionResponse{Content: sb.String()}, nil
}
