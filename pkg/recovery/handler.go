// Package recovery turns every abnormal turn into a usable reply: skip
// requests, invalid input, frustration signals, and content generation
// failures all resolve to a uniform response envelope here. Recovery
// never mutates the session; it emits state updates for the engine to
// apply.
package recovery

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"coach/pkg/config"
	"coach/pkg/logx"
	"coach/pkg/proto"
	"coach/pkg/session"
	"coach/pkg/stage"
	"coach/pkg/validate"
)

// Outcome is the tri-state result of handling a generation failure:
// Retry set means call the module again, a non-nil Response means the
// turn resolved to a fallback reply.
type Outcome struct {
	Retry    bool
	Response *proto.ModuleResponse
}

// Handler owns all recovery paths. One handler serves all sessions.
type Handler struct {
	cfg     *config.Config
	machine *stage.Machine
	logger  *logx.Logger

	// pick selects an encouragement index; swappable for tests.
	pick func(n int) int
}

// NewHandler creates a recovery handler.
func NewHandler(cfg *config.Config, machine *stage.Machine) *Handler {
	return &Handler{
		cfg:     cfg,
		machine: machine,
		logger:  logx.NewLogger("recovery"),
		pick:    rand.Intn,
	}
}

// HandleSkipRequest resolves a skip of the current stage against the
// configured policy. Critical stages refuse with an explanation,
// skippable stages advance to the table successor, and stages in
// neither set refuse with a neutral message. A skippable terminal stage
// records the skip but has nowhere to advance to. The skip request is
// recorded in all cases.
func (h *Handler) HandleSkipRequest(sess *session.State) *proto.ModuleResponse {
	current := sess.CurrentStage
	policy := h.machine.Policy()

	switch {
	case policy.IsCritical(current):
		h.logger.Info("session %s: skip refused at critical stage %s", sess.ID, current)
		return proto.NewSuccessResponse(
			fmt.Sprintf("I understand you'd like to move on, but the %s step is really important for interview success. "+
				"Let's work through it together; I'll guide you.", current.DisplayName()),
			nil,
			map[string]any{proto.KeySkipRequested: true},
		)

	case policy.IsSkippable(current):
		next, ok := h.machine.Next(current)
		if !ok {
			h.logger.Info("session %s: skipping terminal stage %s", sess.ID, current)
			return proto.NewSuccessResponse(
				fmt.Sprintf("No problem, we can skip the %s step. That wraps things up; nice work today.",
					current.DisplayName()),
				nil,
				map[string]any{
					proto.KeySkipRequested: true,
					proto.KeySkippedStage:  string(current),
				},
			)
		}
		h.logger.Info("session %s: skipping stage %s -> %s", sess.ID, current, next)
		return proto.NewSuccessResponse(
			fmt.Sprintf("No problem, we can skip the %s step. In a real interview it's worth a sentence or two, "+
				"but let's move on to %s.", current.DisplayName(), next.DisplayName()),
			proto.StagePtr(next),
			map[string]any{
				proto.KeySkipRequested: true,
				proto.KeySkippedStage:  string(current),
			},
		)
	}

	h.logger.Info("session %s: skip declined at stage %s", sess.ID, current)
	return proto.NewSuccessResponse(
		"Let's stay with this step a little longer. It'll pay off, I promise.",
		nil,
		map[string]any{proto.KeySkipRequested: true},
	)
}

// HandleInvalidInput replies to a rejected input with the canned
// clarification for its anomaly category and bumps the consecutive
// invalid counter. Once the counter reaches the help threshold the reply
// switches to detailed stage guidance and the counter resets.
func (h *Handler) HandleInvalidInput(sess *session.State, anomaly validate.Anomaly) *proto.ModuleResponse {
	count := sess.ConsecutiveInvalid + 1

	if count >= h.cfg.HelpThreshold {
		h.logger.Warn("session %s: help mode after %d invalid inputs at stage %s", sess.ID, count, sess.CurrentStage)
		resp := proto.NewSuccessResponse(
			helpGuidance(sess.CurrentStage),
			nil,
			map[string]any{proto.KeyConsecutiveInvalid: 0},
		)
		resp.Metadata[proto.KeyHelpModeTriggered] = true
		return resp
	}

	h.logger.Info("session %s: invalid input (%s), consecutive count %d", sess.ID, anomaly, count)
	message, ok := h.cfg.InvalidTemplates[string(anomaly)]
	if !ok {
		// Unknown categories get the empty-input clarification.
		message = h.cfg.InvalidTemplates[string(validate.AnomalyEmpty)]
	}
	return proto.NewSuccessResponse(message, nil, map[string]any{
		proto.KeyConsecutiveInvalid: count,
	})
}

// HandleFrustration replies with a rotating encouragement plus a hint
// offer, and flags the session for more detailed hints from here on.
func (h *Handler) HandleFrustration(sess *session.State) *proto.ModuleResponse {
	encouragement := h.cfg.Encouragements[h.pick(len(h.cfg.Encouragements))]

	h.logger.Info("session %s: frustration detected at stage %s", sess.ID, sess.CurrentStage)
	resp := proto.NewSuccessResponse(
		encouragement+"\n\nLet me give you a helpful hint to get started.",
		nil,
		map[string]any{proto.KeyFrustrationDetected: true},
	)
	resp.Metadata[proto.KeyHintLevel] = "detailed"
	return resp
}

// HandleGenerationFailure decides what a failed content generation
// attempt becomes. While attempts remain it waits out an exponential
// backoff delay and asks for a retry; once attempts are exhausted it
// resolves the turn to the stage's fixed fallback reply. The only error
// return is context cancellation during the backoff wait.
func (h *Handler) HandleGenerationFailure(ctx context.Context, sess *session.State, genErr error, retryCount int) (Outcome, error) {
	if retryCount < h.cfg.MaxRetries {
		delay := h.cfg.BackoffUnit.Std() << retryCount
		h.logger.Warn("session %s: generation failed (attempt %d/%d), retrying in %s: %v",
			sess.ID, retryCount+1, h.cfg.MaxRetries+1, delay, genErr)

		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-time.After(delay):
		}
		return Outcome{Retry: true}, nil
	}

	h.logger.Error("session %s: generation failed after %d attempts at stage %s, serving fallback: %v",
		sess.ID, retryCount+1, sess.CurrentStage, genErr)
	return Outcome{Response: h.FallbackResponse(sess.CurrentStage)}, nil
}

// FallbackResponse returns the fixed degraded-mode reply for a stage.
// The session stays on its current stage so the turn can be retried once
// generation recovers.
func (h *Handler) FallbackResponse(s proto.Stage) *proto.ModuleResponse {
	resp := proto.NewSuccessResponse(h.cfg.FallbackFor(s), nil, nil)
	resp.Metadata[proto.KeyFallbackUsed] = true
	return resp
}

// helpGuidance is the detailed per-stage walkthrough served in help
// mode, after repeated invalid inputs.
func helpGuidance(s proto.Stage) string {
	prefix := "No worries, let me walk you through it. "
	switch s {
	case proto.StageClarification:
		return prefix + "Start by restating the problem in your own words: what are the inputs, " +
			"what should the output be, and are there any constraints on size or values?"
	case proto.StageArticulation:
		return prefix + "Try this: describe the very first thing you'd do with the input, " +
			"even a brute-force scan. We can refine it once the basic idea is on the table."
	case proto.StageComplexity:
		return prefix + "Count the work: how many times does your approach touch each element? " +
			"Once per element is O(n); a loop inside a loop is usually O(n^2)."
	case proto.StagePseudocode:
		return prefix + "Write it as numbered steps in plain language: 1) set up your data structure, " +
			"2) loop over the input, 3) decide what to check each iteration, 4) return the result."
	case proto.StageEdgeCase:
		return prefix + "Run your solution in your head against: an empty input, a single element, " +
			"all-identical values, and the largest input you can imagine. Which one breaks?"
	case proto.StageFollowUp:
		return prefix + "Think about what changes if one assumption is removed. " +
			"Would your approach still work? What would you adjust first?"
	default:
		return prefix + "Tell me what part feels unclear and we'll take it from there."
	}
}
