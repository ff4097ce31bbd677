package module

import (
	"context"
	"fmt"
	"strings"

	"coach/pkg/llm"
	"coach/pkg/proto"
	"coach/pkg/session"
)

// ThoughtCoach guides the articulation and complexity stages: it captures
// the user's approach, then pushes for a complexity analysis before any
// code is written.
type ThoughtCoach struct {
	base
}

// NewThoughtCoach creates the coach. A nil client selects templated
// guidance.
func NewThoughtCoach(client llm.Client) *ThoughtCoach {
	return &ThoughtCoach{base{
		name:   "thought_coach",
		client: client,
		stages: []proto.Stage{proto.StageArticulation, proto.StageComplexity},
	}}
}

// ValidateContext requires that the recognizer has identified a pattern.
func (m *ThoughtCoach) ValidateContext(sess *session.State) bool {
	return sess.IdentifiedPattern != ""
}

// Process handles one turn of either owned stage.
func (m *ThoughtCoach) Process(ctx context.Context, sess *session.State) (*proto.ModuleResponse, error) {
	if sess.CurrentStage == proto.StageArticulation {
		return m.processArticulation(ctx, sess)
	}
	return m.processComplexity(ctx, sess)
}

func (m *ThoughtCoach) processArticulation(ctx context.Context, sess *session.State) (*proto.ModuleResponse, error) {
	message := fmt.Sprintf(
		"Good, I can follow that. Before we write anything down: what's the time and space cost of this approach? "+
			"Remember we suspected %s here.", sess.IdentifiedPattern)
	if m.client != nil {
		generated, err := m.generate(ctx, thoughtSystemPrompt,
			fmt.Sprintf("Pattern: %s\nCandidate's approach:\n%s\n\nAsk one question steering them toward complexity analysis.",
				sess.IdentifiedPattern, sess.CurrentInput))
		if err != nil {
			return nil, err
		}
		message = generated
	}

	return proto.NewSuccessResponse(message, proto.StagePtr(proto.StageComplexity), map[string]any{
		proto.KeyUserApproach: strings.TrimSpace(sess.CurrentInput),
	}), nil
}

func (m *ThoughtCoach) processComplexity(ctx context.Context, sess *session.State) (*proto.ModuleResponse, error) {
	message := fmt.Sprintf(
		"That's the right ballpark - we expected %s. Let's turn the idea into pseudocode now. "+
			"Sketch the main loop and data structures, no need for perfect syntax.",
		sess.ComplexityExpectation)
	if m.client != nil {
		generated, err := m.generate(ctx, thoughtSystemPrompt,
			fmt.Sprintf("Expected complexity: %s\nCandidate's analysis:\n%s\n\nRespond briefly and invite them to write pseudocode.",
				sess.ComplexityExpectation, sess.CurrentInput))
		if err != nil {
			return nil, err
		}
		message = generated
	}

	return proto.NewSuccessResponse(message, proto.StagePtr(proto.StagePseudocode), map[string]any{
		"complexity_analysis": strings.TrimSpace(sess.CurrentInput),
	}), nil
}

const thoughtSystemPrompt = "You are an interview coach guiding a candidate from idea to analysis. " +
	"Never give the solution. One short paragraph."
