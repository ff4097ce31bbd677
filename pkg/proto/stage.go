// Package proto defines the shared wire types for the coaching engine:
// stages, messages, the module response envelope, and the error taxonomy.
// All packages communicate through these types; none redefine them.
package proto

import "fmt"

// Stage represents one phase of the coaching conversation.
type Stage string

// The seven coaching stages, in conversation order.
const (
	StageClarification Stage = "CLARIFICATION" // problem clarification
	StageArticulation  Stage = "ARTICULATION"  // thought articulation
	StageComplexity    Stage = "COMPLEXITY"    // complexity analysis
	StagePseudocode    Stage = "PSEUDOCODE"    // pseudocode design
	StageEdgeCase      Stage = "EDGE_CASE"     // edge-case check
	StageFollowUp      Stage = "FOLLOW_UP"     // interviewer follow-up
	StageSummary       Stage = "SUMMARY"       // pattern summary, terminal
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// IsValid checks if the stage is one of the seven known stages.
func (s Stage) IsValid() bool {
	switch s {
	case StageClarification, StageArticulation, StageComplexity,
		StagePseudocode, StageEdgeCase, StageFollowUp, StageSummary:
		return true
	default:
		return false
	}
}

// AllStages returns the seven stages in conversation order.
func AllStages() []Stage {
	return []Stage{
		StageClarification, StageArticulation, StageComplexity,
		StagePseudocode, StageEdgeCase, StageFollowUp, StageSummary,
	}
}

// ParseStage parses a string into a Stage with validation.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
	}
	return stage, nil
}

// DisplayName returns the human-facing name used in coaching messages.
func (s Stage) DisplayName() string {
	switch s {
	case StageClarification:
		return "problem clarification"
	case StageArticulation:
		return "thought articulation"
	case StageComplexity:
		return "complexity analysis"
	case StagePseudocode:
		return "pseudocode design"
	case StageEdgeCase:
		return "edge-case review"
	case StageFollowUp:
		return "follow-up discussion"
	case StageSummary:
		return "pattern summary"
	default:
		return string(s)
	}
}
