package module

import (
	"context"
	"fmt"
	"strings"

	"coach/pkg/llm"
	"coach/pkg/proto"
	"coach/pkg/session"
)

// PatternRecognizer identifies the problem family at the clarification
// stage and seeds the pattern and complexity expectations the later
// stages build on.
type PatternRecognizer struct {
	base
}

// NewPatternRecognizer creates the recognizer. A nil client selects
// keyword-based recognition.
func NewPatternRecognizer(client llm.Client) *PatternRecognizer {
	return &PatternRecognizer{base{
		name:   "pattern_recognizer",
		client: client,
		stages: []proto.Stage{proto.StageClarification},
	}}
}

// ValidateContext requires problem text to recognize against.
func (m *PatternRecognizer) ValidateContext(sess *session.State) bool {
	return strings.TrimSpace(sess.ProblemText) != ""
}

// Process classifies the problem and invites the user to articulate an
// approach.
func (m *PatternRecognizer) Process(ctx context.Context, sess *session.State) (*proto.ModuleResponse, error) {
	pattern, complexity, hint := classifyProblem(sess.ProblemText)

	message := fmt.Sprintf("I notice this looks like a **%s** problem. %s", pattern, hint)
	if m.client != nil {
		generated, err := m.generate(ctx, recognizerSystemPrompt,
			fmt.Sprintf("Problem:\n%s\n\nCandidate said:\n%s", sess.ProblemText, sess.CurrentInput))
		if err != nil {
			return nil, err
		}
		message = generated
	}

	return proto.NewSuccessResponse(message, proto.StagePtr(proto.StageArticulation), map[string]any{
		proto.KeyIdentifiedPattern:     pattern,
		proto.KeyComplexityExpectation: complexity,
	}), nil
}

const recognizerSystemPrompt = "You are an interview coach. Identify the problem pattern and give one " +
	"guiding clue without revealing the solution. Two sentences maximum."

// classifyProblem is the keyword-matching recognizer used when no LLM
// client is configured.
func classifyProblem(problemText string) (pattern, complexity, hint string) {
	problem := strings.ToLower(problemText)

	switch {
	case strings.Contains(problem, "two sum") || strings.Contains(problem, "add up to"):
		return "Hash Table / Two Pointer",
			"O(n) time, O(n) space with hash table",
			"Think about: if you've seen a number before, how would you remember it?"
	case strings.Contains(problem, "sorted array"):
		return "Binary Search / Two Pointer",
			"O(log n) for binary search",
			"The array is sorted - how can we take advantage of that?"
	case strings.Contains(problem, "substring") || strings.Contains(problem, "subarray"):
		return "Sliding Window",
			"O(n) time with a moving window",
			"What changes when the window grows or shrinks by one element?"
	case strings.Contains(problem, "tree") || strings.Contains(problem, "graph"):
		return "Tree / Graph Traversal",
			"O(V + E) for a full traversal",
			"Which traversal order would visit the nodes you care about first?"
	case strings.Contains(problem, "minimum") && strings.Contains(problem, "path"),
		strings.Contains(problem, "number of ways"):
		return "Dynamic Programming",
			"Usually O(n*m) over the state space",
			"Can the answer for a larger input be built from smaller ones?"
	default:
		return "General Problem Solving",
			"Start with brute force, then optimize",
			"Let's start by understanding what we need to do."
	}
}
