package module

import (
	"context"
	"fmt"
	"strings"

	"coach/pkg/llm"
	"coach/pkg/proto"
	"coach/pkg/session"
)

// FollowUpGenerator owns the follow-up stage: it poses one variation on
// the solved problem, then hands the session to the summary.
type FollowUpGenerator struct {
	base
}

// NewFollowUpGenerator creates the generator. A nil client selects the
// pattern-keyed question table.
func NewFollowUpGenerator(client llm.Client) *FollowUpGenerator {
	return &FollowUpGenerator{base{
		name:   "followup_generator",
		client: client,
		stages: []proto.Stage{proto.StageFollowUp},
	}}
}

// ValidateContext requires some captured solution to vary, either the
// articulated approach or the pseudocode.
func (m *FollowUpGenerator) ValidateContext(sess *session.State) bool {
	return strings.TrimSpace(sess.UserApproach) != "" || strings.TrimSpace(sess.Pseudocode) != ""
}

// Process acknowledges the candidate's answer to the follow-up prompt
// and closes out toward the summary.
func (m *FollowUpGenerator) Process(ctx context.Context, sess *session.State) (*proto.ModuleResponse, error) {
	message := fmt.Sprintf(
		"Nice reasoning. %s That's the kind of extension interviewers love to hear you think about. "+
			"Let's wrap up with a quick summary of the session.",
		followUpQuestion(sess.IdentifiedPattern))
	if m.client != nil {
		generated, err := m.generate(ctx, followUpSystemPrompt,
			fmt.Sprintf("Pattern: %s\nApproach: %s\nCandidate's latest answer:\n%s\n\nRespond to their answer, then close toward a session summary.",
				sess.IdentifiedPattern, sess.UserApproach, sess.CurrentInput))
		if err != nil {
			return nil, err
		}
		message = generated
	}

	return proto.NewSuccessResponse(message, proto.StagePtr(proto.StageSummary), nil), nil
}

const followUpSystemPrompt = "You are an interview coach asking one follow-up variation on a problem " +
	"the candidate just solved. Keep it to one question and a short close."

// followUpQuestion picks a variation keyed on the identified pattern.
func followUpQuestion(pattern string) string {
	switch {
	case strings.Contains(pattern, "Hash Table"), strings.Contains(pattern, "Two Pointer"):
		return "As a thought experiment: how would your approach change if the input were a stream you can only read once?"
	case strings.Contains(pattern, "Binary Search"):
		return "Worth pondering: what if the array were rotated at an unknown pivot?"
	case strings.Contains(pattern, "Sliding Window"):
		return "Worth pondering: what if the window constraint could shrink as well as grow?"
	case strings.Contains(pattern, "Dynamic Programming"):
		return "Worth pondering: could you reconstruct the actual solution path, not just its value?"
	case strings.Contains(pattern, "Traversal"):
		return "Worth pondering: how would an iterative version avoid recursion depth limits?"
	default:
		return "Worth pondering: how would your solution behave at ten million elements?"
	}
}
