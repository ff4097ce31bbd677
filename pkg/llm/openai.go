package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAIClient wraps the official OpenAI SDK to implement Client, using
// the Responses API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o"

// NewOpenAIClient creates an OpenAI-backed client. An empty model
// selects the default.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete implements Client. Conversation messages are flattened into a
// single input string for the Responses API.
func (c *OpenAIClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	var sb strings.Builder
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case RoleSystem:
			fmt.Fprintf(&sb, "System: %s\n\n", msg.Content)
		case RoleAssistant:
			fmt.Fprintf(&sb, "Assistant: %s\n\n", msg.Content)
		case RoleUser:
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
		}
	}
	inputText := strings.TrimSpace(sb.String())
	if inputText == "" {
		return CompletionResponse{}, NewError(ErrorTypeBadPrompt, "request has no messages")
	}

	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(inputText)},
	})
	if err != nil {
		return CompletionResponse{}, ClassifyError(err)
	}
	if resp == nil {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "nil response from OpenAI API")
	}

	content := resp.OutputText()
	if content == "" {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "empty response from OpenAI API")
	}
	return CompletionResponse{Content: content}, nil
}
