package proto

import "fmt"

// Severity classifies how serious a failure is. It feeds the diagnostic
// sink and the external caller's abort-or-retry decision; it does not
// change recovery behavior.
type Severity string

const (
	SeverityCritical Severity = "critical" // unexpected fault, session likely unusable
	SeverityError    Severity = "error"    // contract violation, degraded service
	SeverityWarning  Severity = "warning"  // recoverable, worth recording
	SeverityInfo     Severity = "info"     // normal handling of an anomaly
)

// Session update keys carried in ModuleResponse.StateUpdates. The engine
// is the only component that applies them; handlers and content modules
// never mutate session state directly.
const (
	KeyConsecutiveInvalid    = "consecutive_invalid_inputs"
	KeyAnswerRequests        = "answer_requests"
	KeySkipRequested         = "skip_requested"
	KeyFrustrationDetected   = "frustration_detected"
	KeySkippedStage          = "skipped_stage"
	KeyIdentifiedPattern     = "identified_pattern"
	KeyComplexityExpectation = "complexity_expectation"
	KeyUserApproach          = "user_approach"
	KeyPseudocode            = "pseudocode"
	KeyDetectedIssues        = "detected_issues"

	// Telemetry-only keys; these land in the session metadata map.
	KeyHintLevel         = "hint_level"
	KeyHelpModeTriggered = "help_mode_triggered"
	KeyFallbackUsed      = "fallback_used"
)

// ModuleResponse is the uniform envelope returned by every content module
// and every recovery path. A turn always resolves to exactly one of these.
type ModuleResponse struct {
	Success          bool           `json:"success"`
	AssistantMessage string         `json:"assistant_message"`
	NextStage        *Stage         `json:"next_stage,omitempty"` // nil means stay on the current stage
	StateUpdates     map[string]any `json:"state_updates,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	Severity         Severity       `json:"severity,omitempty"`
}

// Validate enforces the envelope invariants: success responses carry
// assistant text, failure responses carry an error message.
func (r *ModuleResponse) Validate() error {
	if r == nil {
		return fmt.Errorf("nil module response")
	}
	if r.Success && r.AssistantMessage == "" {
		return fmt.Errorf("success response must have an assistant message")
	}
	if !r.Success && r.ErrorMessage == "" {
		return fmt.Errorf("failed response must have an error message")
	}
	if r.NextStage != nil && !r.NextStage.IsValid() {
		return fmt.Errorf("%w: next stage %q", ErrInvalidStage, *r.NextStage)
	}
	return nil
}

// NewSuccessResponse builds a success envelope. A nil next stage means
// "stay on the current stage". Updates may be nil.
func NewSuccessResponse(message string, next *Stage, updates map[string]any) *ModuleResponse {
	if updates == nil {
		updates = make(map[string]any)
	}
	return &ModuleResponse{
		Success:          true,
		AssistantMessage: message,
		NextStage:        next,
		StateUpdates:     updates,
		Metadata:         make(map[string]any),
	}
}

// NewErrorResponse builds a failure envelope with a neutral user-facing
// message so the caller always has something presentable.
func NewErrorResponse(errMsg string, severity Severity) *ModuleResponse {
	return &ModuleResponse{
		Success:          false,
		AssistantMessage: "I encountered an issue. Let me try to help you another way.",
		StateUpdates:     make(map[string]any),
		Metadata:         make(map[string]any),
		ErrorMessage:     errMsg,
		Severity:         severity,
	}
}

// StagePtr is a convenience for building NextStage values.
func StagePtr(s Stage) *Stage {
	return &s
}
