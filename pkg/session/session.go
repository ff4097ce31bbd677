// Package session holds the per-conversation state aggregate. The engine
// owns every State instance exclusively; content modules and recovery
// handlers read it and influence it only through update instructions in
// the response envelope, applied here by ApplyUpdates.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"coach/pkg/proto"
)

// State is the single mutable record of one coaching conversation.
type State struct {
	ID          string         `json:"session_id"`
	ProblemText string         `json:"problem_text"`
	ProblemMeta map[string]any `json:"problem_metadata,omitempty"`

	CurrentStage   proto.Stage   `json:"current_stage"`
	StageHistory   []proto.Stage `json:"stage_history"` // prior stages only, never the current one
	StageStartedAt time.Time     `json:"stage_started_at"`

	Log          []proto.Message `json:"conversation_log"`
	CurrentInput string          `json:"current_input"`

	// Per-stage derived artifacts, empty until produced.
	IdentifiedPattern     string   `json:"identified_pattern,omitempty"`
	ComplexityExpectation string   `json:"complexity_expectation,omitempty"`
	UserApproach          string   `json:"user_approach,omitempty"`
	Pseudocode            string   `json:"pseudocode,omitempty"`
	DetectedIssues        []string `json:"detected_issues,omitempty"`

	// Anomaly counters and flags.
	ConsecutiveInvalid  int           `json:"consecutive_invalid_inputs"`
	AnswerRequests      int           `json:"answer_requests"`
	SkipRequested       bool          `json:"skip_requested"`
	FrustrationDetected bool          `json:"frustration_detected"`
	SkippedStages       []proto.Stage `json:"skipped_stages,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// New creates a fresh session at the clarification stage.
func New(problemText string, problemMeta map[string]any) *State {
	if problemMeta == nil {
		problemMeta = make(map[string]any)
	}
	return &State{
		ID:             uuid.NewString(),
		ProblemText:    problemText,
		ProblemMeta:    problemMeta,
		CurrentStage:   proto.StageClarification,
		StageHistory:   make([]proto.Stage, 0),
		StageStartedAt: time.Now().UTC(),
		Log:            make([]proto.Message, 0),
		Metadata:       make(map[string]any),
	}
}

// AddMessage appends a message to the conversation log, stamped with the
// current stage.
func (s *State) AddMessage(role proto.Role, content string) error {
	msg, err := proto.NewMessage(role, content, s.CurrentStage)
	if err != nil {
		return err
	}
	s.Log = append(s.Log, msg)
	return nil
}

// TransitionTo applies a stage transition: current stage is pushed onto
// history, the target becomes current, and the stage-entry timestamp is
// reset. Callers are expected to have validated the target against the
// transition table; this method only performs the state mutation.
func (s *State) TransitionTo(next proto.Stage) {
	s.StageHistory = append(s.StageHistory, s.CurrentStage)
	s.CurrentStage = next
	s.StageStartedAt = time.Now().UTC()
}

// RecentEntries returns the last n log entries.
func (s *State) RecentEntries(n int) []proto.Message {
	if n <= 0 || len(s.Log) == 0 {
		return nil
	}
	if n > len(s.Log) {
		n = len(s.Log)
	}
	return s.Log[len(s.Log)-n:]
}

// HasSkipped reports whether the stage was already skipped.
func (s *State) HasSkipped(stage proto.Stage) bool {
	for _, sk := range s.SkippedStages {
		if sk == stage {
			return true
		}
	}
	return false
}

// ApplyUpdates applies a response's update instructions. Known keys map
// onto typed fields; unknown keys land in the metadata map. Counters are
// clamped at zero. This is the only mutation path for module and handler
// effects.
func (s *State) ApplyUpdates(updates map[string]any) {
	for key, value := range updates {
		switch key {
		case proto.KeyConsecutiveInvalid:
			if n, ok := asInt(value); ok {
				s.ConsecutiveInvalid = max(n, 0)
			}
		case proto.KeyAnswerRequests:
			if n, ok := asInt(value); ok {
				s.AnswerRequests = max(n, 0)
			}
		case proto.KeySkipRequested:
			if b, ok := value.(bool); ok {
				s.SkipRequested = b
			}
		case proto.KeyFrustrationDetected:
			if b, ok := value.(bool); ok {
				s.FrustrationDetected = b
			}
		case proto.KeySkippedStage:
			if stage, ok := asStage(value); ok && !s.HasSkipped(stage) {
				s.SkippedStages = append(s.SkippedStages, stage)
			}
		case proto.KeyIdentifiedPattern:
			if v, ok := value.(string); ok {
				s.IdentifiedPattern = v
			}
		case proto.KeyComplexityExpectation:
			if v, ok := value.(string); ok {
				s.ComplexityExpectation = v
			}
		case proto.KeyUserApproach:
			if v, ok := value.(string); ok {
				s.UserApproach = v
			}
		case proto.KeyPseudocode:
			if v, ok := value.(string); ok {
				s.Pseudocode = v
			}
		case proto.KeyDetectedIssues:
			if issues, ok := asStringSlice(value); ok {
				s.DetectedIssues = issues
			}
		default:
			s.Metadata[key] = value
		}
	}
}

// Snapshot serializes the session for persistence.
func (s *State) Snapshot() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session %s: %w", s.ID, err)
	}
	return data, nil
}

// Restore rebuilds a session from a persisted snapshot.
func Restore(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	if !s.CurrentStage.IsValid() {
		return nil, fmt.Errorf("%w: snapshot has stage %q", proto.ErrInvalidStage, s.CurrentStage)
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	return &s, nil
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64: // JSON round trips land here
		return int(v), true
	default:
		return 0, false
	}
}

func asStage(value any) (proto.Stage, bool) {
	switch v := value.(type) {
	case proto.Stage:
		return v, v.IsValid()
	case string:
		stage, err := proto.ParseStage(v)
		return stage, err == nil
	default:
		return "", false
	}
}

func asStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}
