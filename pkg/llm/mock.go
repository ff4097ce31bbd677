package llm

import (
	"context"
	"fmt"
)

// MockClient provides a controllable Client implementation for tests.
// Responses and errors are consumed in order; errors take precedence.
type MockClient struct {
	responses     []CompletionResponse
	responseIndex int
	errors        []error
	errorIndex    int
	calls         int
}

// NewMockClient creates a mock with predefined responses and errors.
func NewMockClient(responses []CompletionResponse, errors []error) *MockClient {
	return &MockClient{responses: responses, errors: errors}
}

// Complete returns the next predefined error or response.
func (m *MockClient) Complete(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
	m.calls++

	if m.errorIndex < len(m.errors) && m.errors[m.errorIndex] != nil {
		err := m.errors[m.errorIndex]
		m.errorIndex++
		return CompletionResponse{}, err
	}

	if m.responseIndex >= len(m.responses) {
		return CompletionResponse{}, fmt.Errorf("mock client: no more responses")
	}

	resp := m.responses[m.responseIndex]
	m.responseIndex++
	return resp, nil
}

// Calls returns how many times Complete was invoked.
func (m *MockClient) Calls() int {
	return m.calls
}
