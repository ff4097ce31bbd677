package llm

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// OllamaClient wraps the Ollama API client to implement Client, for
// running against a local model server.
type OllamaClient struct {
	client *api.Client
	model  string
}

// DefaultOllamaHost is the standard local Ollama endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// NewOllamaClient creates an Ollama-backed client. An invalid or empty
// hostURL falls back to the default local endpoint.
func NewOllamaClient(hostURL, model string) *OllamaClient {
	if hostURL == "" {
		hostURL = DefaultOllamaHost
	}
	parsed, err := url.Parse(hostURL)
	if err != nil {
		parsed, _ = url.Parse(DefaultOllamaHost)
	}
	return &OllamaClient{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  model,
	}
}

// Complete implements Client.
func (c *OllamaClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	messages := make([]api.Message, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		messages = append(messages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	var response api.ChatResponse
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return CompletionResponse{}, ClassifyError(err)
	}
	if response.Message.Content == "" {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "empty response from Ollama")
	}
	return CompletionResponse{Content: response.Message.Content}, nil
}
