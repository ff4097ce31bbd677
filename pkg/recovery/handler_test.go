package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coach/pkg/config"
	"coach/pkg/proto"
	"coach/pkg/session"
	"coach/pkg/stage"
	"coach/pkg/validate"
)

func newHandler(t *testing.T, mutate func(*config.Config)) *Handler {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	return NewHandler(cfg, stage.NewMachine(stage.DefaultPolicy()))
}

func TestSkipCriticalStageRefuses(t *testing.T) {
	h := newHandler(t, nil)
	sess := session.New("p", nil)
	sess.CurrentStage = proto.StageArticulation

	resp := h.HandleSkipRequest(sess)

	require.NoError(t, resp.Validate())
	assert.True(t, resp.Success)
	assert.Nil(t, resp.NextStage, "critical skip must not advance")
	assert.Contains(t, resp.AssistantMessage, "important")
	assert.Equal(t, true, resp.StateUpdates[proto.KeySkipRequested])
	assert.NotContains(t, resp.StateUpdates, proto.KeySkippedStage)
}

func TestSkipSkippableStageAdvances(t *testing.T) {
	h := newHandler(t, nil)
	sess := session.New("p", nil)
	sess.CurrentStage = proto.StageComplexity

	resp := h.HandleSkipRequest(sess)

	require.NoError(t, resp.Validate())
	require.NotNil(t, resp.NextStage)
	assert.Equal(t, proto.StagePseudocode, *resp.NextStage)
	assert.Equal(t, string(proto.StageComplexity), resp.StateUpdates[proto.KeySkippedStage])
	assert.Equal(t, true, resp.StateUpdates[proto.KeySkipRequested])
}

func TestSkipTerminalSkippableStageRecordsWithoutAdvancing(t *testing.T) {
	h := newHandler(t, nil)
	sess := session.New("p", nil)
	sess.CurrentStage = proto.StageSummary // skippable by default, but terminal

	resp := h.HandleSkipRequest(sess)

	require.NoError(t, resp.Validate())
	assert.True(t, resp.Success)
	assert.Nil(t, resp.NextStage, "terminal stage has nowhere to advance to")
	assert.Contains(t, resp.AssistantMessage, "No problem")
	assert.Equal(t, string(proto.StageSummary), resp.StateUpdates[proto.KeySkippedStage])
	assert.Equal(t, true, resp.StateUpdates[proto.KeySkipRequested])
}

func TestSkipUnlistedStageDeclines(t *testing.T) {
	h := newHandler(t, nil)
	sess := session.New("p", nil) // clarification is in neither set

	resp := h.HandleSkipRequest(sess)

	require.NoError(t, resp.Validate())
	assert.Nil(t, resp.NextStage)
	assert.Equal(t, true, resp.StateUpdates[proto.KeySkipRequested])
}

func TestInvalidInputIncrementsCounter(t *testing.T) {
	h := newHandler(t, nil)
	sess := session.New("p", nil)

	resp := h.HandleInvalidInput(sess, validate.AnomalyTooShort)

	require.NoError(t, resp.Validate())
	assert.Equal(t, 1, resp.StateUpdates[proto.KeyConsecutiveInvalid])
	assert.Equal(t, h.cfg.InvalidTemplates["too_short"], resp.AssistantMessage)
	assert.Nil(t, resp.NextStage)
	assert.NotContains(t, resp.Metadata, proto.KeyHelpModeTriggered)
}

func TestInvalidInputUsesCategoryTemplate(t *testing.T) {
	h := newHandler(t, nil)
	sess := session.New("p", nil)

	for _, anomaly := range []validate.Anomaly{
		validate.AnomalyEmpty, validate.AnomalyTooShort,
		validate.AnomalyRepeated, validate.AnomalyOffTopic,
	} {
		resp := h.HandleInvalidInput(sess, anomaly)
		assert.Equal(t, h.cfg.InvalidTemplates[string(anomaly)], resp.AssistantMessage, "anomaly %s", anomaly)
	}

	resp := h.HandleInvalidInput(sess, validate.Anomaly("mystery"))
	assert.Equal(t, h.cfg.InvalidTemplates["empty"], resp.AssistantMessage, "unknown categories use the empty-input template")
}

func TestHelpModeAtThreshold(t *testing.T) {
	h := newHandler(t, nil)
	sess := session.New("p", nil)
	sess.CurrentStage = proto.StageArticulation
	sess.ConsecutiveInvalid = 2 // this turn is the third strike

	resp := h.HandleInvalidInput(sess, validate.AnomalyEmpty)

	require.NoError(t, resp.Validate())
	assert.Equal(t, 0, resp.StateUpdates[proto.KeyConsecutiveInvalid], "help mode resets the counter")
	assert.Equal(t, true, resp.Metadata[proto.KeyHelpModeTriggered])
	assert.Contains(t, resp.AssistantMessage, "walk you through")
}

func TestFrustrationResponse(t *testing.T) {
	h := newHandler(t, nil)
	h.pick = func(int) int { return 0 } // deterministic encouragement
	sess := session.New("p", nil)

	resp := h.HandleFrustration(sess)

	require.NoError(t, resp.Validate())
	assert.Contains(t, resp.AssistantMessage, h.cfg.Encouragements[0])
	assert.Contains(t, resp.AssistantMessage, "helpful hint")
	assert.Equal(t, true, resp.StateUpdates[proto.KeyFrustrationDetected])
	assert.Equal(t, "detailed", resp.Metadata[proto.KeyHintLevel])
	assert.Nil(t, resp.NextStage, "frustration handling stays on the stage")
}

func TestGenerationFailureRetriesWithBackoff(t *testing.T) {
	unit := 10 * time.Millisecond
	h := newHandler(t, func(cfg *config.Config) {
		cfg.BackoffUnit = config.Duration(unit)
	})
	sess := session.New("p", nil)
	genErr := errors.New("upstream down")

	for retryCount, wantDelay := range map[int]time.Duration{
		0: unit,
		1: 2 * unit,
		2: 4 * unit,
	} {
		start := time.Now()
		outcome, err := h.HandleGenerationFailure(context.Background(), sess, genErr, retryCount)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.True(t, outcome.Retry, "retryCount %d should retry", retryCount)
		assert.Nil(t, outcome.Response)
		assert.GreaterOrEqual(t, elapsed, wantDelay, "retryCount %d", retryCount)
	}
}

func TestGenerationFailureExhaustedServesFallback(t *testing.T) {
	h := newHandler(t, func(cfg *config.Config) {
		cfg.BackoffUnit = config.Duration(time.Millisecond)
	})
	sess := session.New("p", nil)
	sess.CurrentStage = proto.StagePseudocode

	outcome, err := h.HandleGenerationFailure(context.Background(), sess, errors.New("still down"), h.cfg.MaxRetries)

	require.NoError(t, err)
	assert.False(t, outcome.Retry)
	require.NotNil(t, outcome.Response)
	require.NoError(t, outcome.Response.Validate())
	assert.Equal(t, h.cfg.FallbackFor(proto.StagePseudocode), outcome.Response.AssistantMessage)
	assert.Equal(t, true, outcome.Response.Metadata[proto.KeyFallbackUsed])
	assert.Nil(t, outcome.Response.NextStage, "fallback stays on the current stage")
}

func TestGenerationFailureHonorsCancellation(t *testing.T) {
	h := newHandler(t, func(cfg *config.Config) {
		cfg.BackoffUnit = config.Duration(time.Minute)
	})
	sess := session.New("p", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.HandleGenerationFailure(ctx, sess, errors.New("down"), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallbackResponseCoversEveryStage(t *testing.T) {
	h := newHandler(t, nil)
	for _, s := range proto.AllStages() {
		resp := h.FallbackResponse(s)
		require.NoError(t, resp.Validate(), "stage %s", s)
		assert.NotEmpty(t, resp.AssistantMessage)
	}
}
