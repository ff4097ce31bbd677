// Package utils provides tiktoken-based token counting for session
// accounting.
package utils

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens for transcript accounting. Counts for
// non-OpenAI models are approximations; GPT-4 encoding is close enough
// for budget tracking across all supported providers.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter. Unknown models fall back to
// GPT-4 encoding.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text. On codec
// failure it estimates at 4 characters per token.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// ValidateTokenLimit reports whether text fits within the token limit.
func (tc *TokenCounter) ValidateTokenLimit(text string, limit int) bool {
	return tc.CountTokens(text) <= limit
}
