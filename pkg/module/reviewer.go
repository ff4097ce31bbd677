package module

import (
	"context"
	"fmt"
	"strings"

	"coach/pkg/llm"
	"coach/pkg/proto"
	"coach/pkg/session"
)

// CodeReviewer owns the pseudocode and edge-case stages: it captures the
// candidate's pseudocode, then checks which boundary conditions their
// review missed.
type CodeReviewer struct {
	base
}

// NewCodeReviewer creates the reviewer. A nil client selects the
// checklist-based review.
func NewCodeReviewer(client llm.Client) *CodeReviewer {
	return &CodeReviewer{base{
		name:   "code_reviewer",
		client: client,
		stages: []proto.Stage{proto.StagePseudocode, proto.StageEdgeCase},
	}}
}

// ValidateContext requires captured pseudocode before the edge-case
// review can run. At the pseudocode stage the capture happens this turn.
func (m *CodeReviewer) ValidateContext(sess *session.State) bool {
	if sess.CurrentStage == proto.StageEdgeCase {
		return strings.TrimSpace(sess.Pseudocode) != ""
	}
	return true
}

// Process handles one turn of either owned stage.
func (m *CodeReviewer) Process(ctx context.Context, sess *session.State) (*proto.ModuleResponse, error) {
	if sess.CurrentStage == proto.StagePseudocode {
		return m.processPseudocode(ctx, sess)
	}
	return m.processEdgeCase(ctx, sess)
}

func (m *CodeReviewer) processPseudocode(ctx context.Context, sess *session.State) (*proto.ModuleResponse, error) {
	message := "Got it, I can see the structure. Now put on your tester hat: " +
		"what edge cases could break this? Walk me through the ones you'd check."
	if m.client != nil {
		generated, err := m.generate(ctx, reviewerSystemPrompt,
			fmt.Sprintf("Candidate's pseudocode:\n%s\n\nAcknowledge it briefly and ask them to enumerate edge cases. Do not list any yourself.",
				sess.CurrentInput))
		if err != nil {
			return nil, err
		}
		message = generated
	}

	return proto.NewSuccessResponse(message, proto.StagePtr(proto.StageEdgeCase), map[string]any{
		proto.KeyPseudocode: strings.TrimSpace(sess.CurrentInput),
	}), nil
}

func (m *CodeReviewer) processEdgeCase(ctx context.Context, sess *session.State) (*proto.ModuleResponse, error) {
	missed := missedEdgeCases(sess.CurrentInput)

	var message string
	if len(missed) == 0 {
		message = "Solid coverage - you hit the cases an interviewer would probe. " +
			"Let's move on; I have a follow-up question for you."
	} else {
		message = fmt.Sprintf(
			"Good start. One more thing to consider: what happens with %s? "+
				"Think it through, then we'll move to a follow-up.", missed[0])
	}
	if m.client != nil {
		generated, err := m.generate(ctx, reviewerSystemPrompt,
			fmt.Sprintf("Pseudocode:\n%s\n\nCandidate's edge cases:\n%s\n\nPoint at one gap as a question, or confirm coverage.",
				sess.Pseudocode, sess.CurrentInput))
		if err != nil {
			return nil, err
		}
		message = generated
	}

	return proto.NewSuccessResponse(message, proto.StagePtr(proto.StageFollowUp), map[string]any{
		proto.KeyDetectedIssues: missed,
	}), nil
}

const reviewerSystemPrompt = "You are an interview coach reviewing pseudocode. Lead with questions, " +
	"never state errors outright. One short paragraph."

// edgeCaseChecklist pairs a probe description with the answer keywords
// that count as having covered it.
var edgeCaseChecklist = []struct {
	probe    string
	keywords []string
}{
	{"an empty input", []string{"empty", "no element", "zero element", "空"}},
	{"a single-element input", []string{"single", "one element", "length 1", "size 1"}},
	{"duplicate values", []string{"duplicate", "repeated value", "same value", "重复"}},
	{"negative numbers or overflow", []string{"negative", "overflow", "min", "max", "负"}},
}

// missedEdgeCases returns probes for the checklist entries the answer
// never mentions.
func missedEdgeCases(answer string) []string {
	lowered := strings.ToLower(answer)
	missed := make([]string, 0, len(edgeCaseChecklist))
	for _, entry := range edgeCaseChecklist {
		covered := false
		for _, kw := range entry.keywords {
			if strings.Contains(lowered, kw) {
				covered = true
				break
			}
		}
		if !covered {
			missed = append(missed, entry.probe)
		}
	}
	return missed
}
