package proto

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	// ErrInvalidStage indicates a value outside the seven known stages.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrInvalidTransition indicates a stage transition not present in
	// the transition table.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrStateInconsistency indicates a content module's precondition or
	// result contract was violated. Never retried.
	ErrStateInconsistency = errors.New("state inconsistency")
)

// GenerationError wraps a failure from an upstream content generator.
// It is the only error class the recovery handler will retry.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failure: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// NewGenerationError marks an error as a retryable generation failure.
func NewGenerationError(cause error) *GenerationError {
	return &GenerationError{Cause: cause}
}

// IsGenerationError reports whether err is (or wraps) a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}
