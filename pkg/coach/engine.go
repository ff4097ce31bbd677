// Package coach wires the whole engine together: per-turn validation,
// intent detection, module selection, safe invocation with retry, state
// updates, persistence, and metrics. Engine.SubmitTurn is the single
// entry point for a user turn; every path through it resolves to one
// response envelope.
package coach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coach/pkg/config"
	"coach/pkg/logx"
	"coach/pkg/metrics"
	"coach/pkg/module"
	"coach/pkg/persistence"
	"coach/pkg/proto"
	"coach/pkg/recovery"
	"coach/pkg/session"
	"coach/pkg/stage"
	"coach/pkg/utils"
	"coach/pkg/validate"
)

// Engine drives coaching sessions. It is the only component that
// mutates session state; modules and handlers influence it exclusively
// through response envelopes.
type Engine struct {
	cfg       *config.Config
	machine   *stage.Machine
	validator *validate.Validator
	registry  *module.Registry
	handler   *recovery.Handler
	logger    *logx.Logger

	// Optional collaborators; nil disables the concern.
	store    *persistence.Store
	recorder *metrics.Recorder
	tokens   *utils.TokenCounter
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithStore enables session snapshot persistence.
func WithStore(store *persistence.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithRecorder enables metrics recording.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// WithTokenCounter enables per-turn token accounting.
func WithTokenCounter(tc *utils.TokenCounter) Option {
	return func(e *Engine) { e.tokens = tc }
}

// NewEngine assembles an engine from configuration and a module
// registry.
func NewEngine(cfg *config.Config, registry *module.Registry, opts ...Option) (*Engine, error) {
	critical, skippable, err := cfg.StagePolicySets()
	if err != nil {
		return nil, fmt.Errorf("invalid stage policy: %w", err)
	}
	machine := stage.NewMachine(stage.Policy{Critical: critical, Skippable: skippable})

	e := &Engine{
		cfg:       cfg,
		machine:   machine,
		validator: validate.New(cfg.Keywords),
		registry:  registry,
		handler:   recovery.NewHandler(cfg, machine),
		logger:    logx.NewLogger("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// StartSession creates and persists a fresh session for a problem.
func (e *Engine) StartSession(ctx context.Context, problemText string, problemMeta map[string]any) (*session.State, error) {
	sess := session.New(problemText, problemMeta)
	e.logger.Info("session %s: started at stage %s", sess.ID, sess.CurrentStage)
	if err := e.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ResumeSession restores a persisted session by ID.
func (e *Engine) ResumeSession(ctx context.Context, sessionID string) (*session.State, error) {
	if e.store == nil {
		return nil, fmt.Errorf("no session store configured")
	}
	sess, err := e.store.LoadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("session %s: resumed at stage %s", sess.ID, sess.CurrentStage)
	return sess, nil
}

// EndSession records a session's terminal status.
func (e *Engine) EndSession(ctx context.Context, sess *session.State, completed bool) error {
	if e.store == nil {
		return nil
	}
	status := persistence.StatusAbandoned
	if completed {
		status = persistence.StatusCompleted
	}
	return e.store.EndSession(ctx, sess.ID, status)
}

// IsFinished reports whether the session has reached the terminal stage.
func (e *Engine) IsFinished(sess *session.State) bool {
	return e.machine.IsTerminal(sess.CurrentStage)
}

// SubmitTurn processes one user input end to end and returns exactly
// one response envelope. The only error returns are context
// cancellation and persistence failures; content problems resolve to
// failure envelopes instead.
func (e *Engine) SubmitTurn(ctx context.Context, sess *session.State, input string) (*proto.ModuleResponse, error) {
	start := time.Now()
	sess.CurrentInput = input

	// Validity checks run against the log before this turn's input is
	// appended, so an input never matches itself in the repeat check.
	if valid, anomaly := e.validator.Validate(input, sess); !valid {
		resp := e.handler.HandleInvalidInput(sess, anomaly)
		if e.recorder != nil {
			e.recorder.RecordAnomaly(string(anomaly))
		}
		return e.finishTurn(ctx, sess, resp, input, start, metrics.OutcomeInvalid)
	}

	// Any valid input breaks the invalid streak, including skip and
	// frustration turns.
	sess.ConsecutiveInvalid = 0

	if e.validator.DetectsSkip(input) {
		resp := e.handler.HandleSkipRequest(sess)
		return e.finishTurn(ctx, sess, resp, input, start, metrics.OutcomeSkip)
	}

	if e.validator.DetectsFrustration(input) {
		resp := e.handler.HandleFrustration(sess)
		return e.finishTurn(ctx, sess, resp, input, start, metrics.OutcomeSuccess)
	}

	// Answer requests are counted but never gate the turn; the input
	// still flows to the content module.
	if e.validator.DetectsAnswerRequest(input) {
		sess.AnswerRequests++
		e.logger.Info("session %s: answer request #%d at stage %s", sess.ID, sess.AnswerRequests, sess.CurrentStage)
	}

	mod, found := e.registry.Select(sess)
	if !found {
		// No module owns this stage (the summary stage by design);
		// the stage's fixed reply closes the turn.
		resp := e.handler.FallbackResponse(sess.CurrentStage)
		return e.finishTurn(ctx, sess, resp, input, start, metrics.OutcomeFallback)
	}

	resp, err := e.safeInvoke(ctx, mod, sess)
	if err != nil {
		return nil, err
	}

	outcome := metrics.OutcomeSuccess
	if !resp.Success {
		outcome = metrics.OutcomeError
	} else if used, _ := resp.Metadata[proto.KeyFallbackUsed].(bool); used {
		outcome = metrics.OutcomeFallback
	}
	return e.finishTurn(ctx, sess, resp, input, start, outcome)
}

// safeInvoke runs one module call under the full protection contract:
// precondition check, panic recovery, retry with backoff on retryable
// generation failures, and envelope validation. It never propagates a
// module fault; every fault becomes a failure envelope.
func (e *Engine) safeInvoke(ctx context.Context, mod module.ContentModule, sess *session.State) (*proto.ModuleResponse, error) {
	if !mod.ValidateContext(sess) {
		e.logger.Error("session %s: module %s precondition failed at stage %s", sess.ID, mod.Name(), sess.CurrentStage)
		return proto.NewErrorResponse(
			fmt.Errorf("%w: module %s precondition not met at stage %s",
				proto.ErrStateInconsistency, mod.Name(), sess.CurrentStage).Error(),
			proto.SeverityError,
		), nil
	}

	for retryCount := 0; ; retryCount++ {
		resp, err := e.invokeOnce(ctx, mod, sess)

		if err != nil {
			if proto.IsGenerationError(err) {
				outcome, herr := e.handler.HandleGenerationFailure(ctx, sess, err, retryCount)
				if herr != nil {
					return nil, herr
				}
				if outcome.Retry {
					if e.recorder != nil {
						e.recorder.RecordRetry(string(sess.CurrentStage))
					}
					continue
				}
				if e.recorder != nil {
					e.recorder.RecordFallback(string(sess.CurrentStage))
				}
				return outcome.Response, nil
			}
			e.logger.Error("session %s: module %s failed: %v", sess.ID, mod.Name(), err)
			return proto.NewErrorResponse(err.Error(), proto.SeverityError), nil
		}

		if verr := resp.Validate(); verr != nil {
			e.logger.Error("session %s: module %s returned malformed response: %v", sess.ID, mod.Name(), verr)
			return proto.NewErrorResponse(
				fmt.Errorf("%w: module %s returned a malformed response: %v",
					proto.ErrStateInconsistency, mod.Name(), verr).Error(),
				proto.SeverityError,
			), nil
		}
		return resp, nil
	}
}

// invokeOnce calls the module once, converting a panic into an error so
// the caller sees a uniform failure path.
func (e *Engine) invokeOnce(ctx context.Context, mod module.ContentModule, sess *session.State) (resp *proto.ModuleResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("session %s: module %s panicked: %v", sess.ID, mod.Name(), r)
			resp = proto.NewErrorResponse(
				fmt.Sprintf("module %s panicked: %v", mod.Name(), r),
				proto.SeverityCritical,
			)
			err = nil
		}
	}()
	return mod.Process(ctx, sess)
}

// finishTurn applies the response to the session, records the exchange,
// persists the snapshot, and emits turn metrics. The stage label on
// metrics is the stage the turn started on.
func (e *Engine) finishTurn(ctx context.Context, sess *session.State, resp *proto.ModuleResponse, input string, start time.Time, outcome string) (*proto.ModuleResponse, error) {
	startStage := sess.CurrentStage

	sess.ApplyUpdates(resp.StateUpdates)
	for key, value := range resp.Metadata {
		sess.Metadata[key] = value
	}

	if resp.Success && resp.NextStage != nil && *resp.NextStage != sess.CurrentStage {
		if err := e.machine.Advance(sess, *resp.NextStage); err != nil {
			if errors.Is(err, proto.ErrInvalidTransition) {
				e.logger.Error("session %s: rejected transition %s -> %s", sess.ID, sess.CurrentStage, *resp.NextStage)
				resp = proto.NewErrorResponse(err.Error(), proto.SeverityError)
				outcome = metrics.OutcomeError
			} else {
				return nil, err
			}
		} else {
			e.logger.Info("session %s: stage %s -> %s", sess.ID, startStage, sess.CurrentStage)
		}
	}

	// The user message is stamped with the stage it was answered in,
	// the reply with the stage the session lands on.
	if err := appendExchange(sess, startStage, input, resp.AssistantMessage); err != nil {
		return nil, err
	}
	sess.CurrentInput = ""

	if err := e.persist(ctx, sess); err != nil {
		return nil, err
	}

	if e.recorder != nil {
		e.recorder.RecordTurn(string(startStage), outcome, time.Since(start))
		if e.tokens != nil {
			e.recorder.RecordTokens(sess.ID, metrics.DirectionUser, e.tokens.CountTokens(input))
			e.recorder.RecordTokens(sess.ID, metrics.DirectionAssistant, e.tokens.CountTokens(resp.AssistantMessage))
		}
	}
	return resp, nil
}

func appendExchange(sess *session.State, userStage proto.Stage, input, reply string) error {
	userMsg, err := proto.NewMessage(proto.RoleUser, input, userStage)
	if err != nil {
		return err
	}
	sess.Log = append(sess.Log, userMsg)
	return sess.AddMessage(proto.RoleAssistant, reply)
}

func (e *Engine) persist(ctx context.Context, sess *session.State) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveSnapshot(ctx, sess); err != nil {
		return logx.Wrap(err, fmt.Sprintf("session %s: snapshot save failed", sess.ID))
	}
	return nil
}
