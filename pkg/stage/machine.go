// Package stage implements the coaching stage machine: the canonical
// forward-transition table over the seven stages plus the skip policy.
// This table is the single source of truth for stage progression; no
// other component computes a successor.
package stage

import (
	"fmt"

	"coach/pkg/proto"
	"coach/pkg/session"
)

// stageTransitions is the canonical successor table. Every stage has
// exactly one successor; the summary stage is terminal and maps to the
// empty stage. There are no backward transitions.
var stageTransitions = map[proto.Stage]proto.Stage{
	proto.StageClarification: proto.StageArticulation,
	proto.StageArticulation:  proto.StageComplexity,
	proto.StageComplexity:    proto.StagePseudocode,
	proto.StagePseudocode:    proto.StageEdgeCase,
	proto.StageEdgeCase:      proto.StageFollowUp,
	proto.StageFollowUp:      proto.StageSummary,
	proto.StageSummary:       "", // terminal
}

// Policy marks which stages may be skipped and which must not be. Stages
// in neither set refuse skips with a neutral message.
type Policy struct {
	Critical  map[proto.Stage]bool
	Skippable map[proto.Stage]bool
}

// DefaultPolicy returns the built-in skip policy: articulation,
// pseudocode and edge-case are critical; complexity and summary are
// skippable.
func DefaultPolicy() Policy {
	return Policy{
		Critical: map[proto.Stage]bool{
			proto.StageArticulation: true,
			proto.StagePseudocode:   true,
			proto.StageEdgeCase:     true,
		},
		Skippable: map[proto.Stage]bool{
			proto.StageComplexity: true,
			proto.StageSummary:    true,
		},
	}
}

// IsCritical reports whether the stage must not be skipped.
func (p Policy) IsCritical(s proto.Stage) bool {
	return p.Critical[s]
}

// IsSkippable reports whether the stage may be skipped.
func (p Policy) IsSkippable(s proto.Stage) bool {
	return p.Skippable[s]
}

// Machine answers successor queries and applies validated transitions.
type Machine struct {
	policy Policy
}

// NewMachine creates a stage machine with the given skip policy.
func NewMachine(policy Policy) *Machine {
	return &Machine{policy: policy}
}

// Policy returns the machine's skip policy.
func (m *Machine) Policy() Policy {
	return m.policy
}

// Next returns the deterministic successor of a stage. The second return
// is false for the terminal stage.
func (m *Machine) Next(s proto.Stage) (proto.Stage, bool) {
	next, ok := stageTransitions[s]
	if !ok || next == "" {
		return "", false
	}
	return next, true
}

// IsTerminal reports whether the stage has no successor.
func (m *Machine) IsTerminal(s proto.Stage) bool {
	_, ok := m.Next(s)
	return !ok
}

// Advance validates that target is the table successor of the session's
// current stage, then applies the transition to the session.
func (m *Machine) Advance(sess *session.State, target proto.Stage) error {
	next, ok := m.Next(sess.CurrentStage)
	if !ok {
		return fmt.Errorf("%w: %s is terminal", proto.ErrInvalidTransition, sess.CurrentStage)
	}
	if next != target {
		return fmt.Errorf("%w: cannot transition from %s to %s", proto.ErrInvalidTransition, sess.CurrentStage, target)
	}
	sess.TransitionTo(target)
	return nil
}
