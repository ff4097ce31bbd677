// Package llm defines the language-model client abstraction used by
// content modules, with Anthropic, OpenAI, and Ollama implementations
// and a controllable mock for tests. Modules treat any failure from this
// package as a retryable generation failure.
package llm

import "context"

// Role identifies the author of a completion message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// CompletionMessage is one message in a completion request.
type CompletionMessage struct {
	Role    Role
	Content string
}

// CompletionRequest is a request to generate a completion.
type CompletionRequest struct {
	Messages    []CompletionMessage
	Temperature float32
	MaxTokens   int
}

// CompletionResponse is the generated completion.
type CompletionResponse struct {
	Content string
}

// Client is the interface for language model interactions.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)
}

// NewCompletionRequest creates a request with default sampling values.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}
