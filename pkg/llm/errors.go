package llm

import (
	"fmt"
	"strings"
)

// ErrorType categorizes provider failures for retry decisions.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents rate limiting (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient failures (5xx, EOF,
	// connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 with no content.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth represents authentication failures (401/403).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed requests.
	ErrorTypeBadPrompt
	// ErrorTypeUnknown is the default for unclassified failures.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	default:
		return "unknown"
	}
}

// Error is a classified provider failure.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm %s error: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("llm %s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified error without a wrapped cause.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// ClassifyError maps an arbitrary provider error onto an ErrorType by
// message inspection. SDKs do not expose a common error taxonomy, so
// pattern matching is the practical lowest denominator.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "rate") || strings.Contains(msg, "429") || strings.Contains(msg, "quota"):
		return &Error{Type: ErrorTypeRateLimit, Message: "rate limited", Cause: err}
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key"):
		return &Error{Type: ErrorTypeAuth, Message: "authentication failed", Cause: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") ||
		strings.Contains(msg, "temporar") || strings.Contains(msg, "eof") ||
		strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504"):
		return &Error{Type: ErrorTypeTransient, Message: "transient provider failure", Cause: err}
	case strings.Contains(msg, "empty response"):
		return &Error{Type: ErrorTypeEmptyResponse, Message: "empty response", Cause: err}
	default:
		return &Error{Type: ErrorTypeUnknown, Message: "unclassified provider failure", Cause: err}
	}
}
