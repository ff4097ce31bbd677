// Package module defines the content-module contract and the four
// stage-handling variants. Modules are stateless: they read session
// state and express every effect through the returned response envelope.
// Generation is keyword-driven by default and LLM-backed when a client
// is supplied; either way the contract is identical.
package module

import (
	"context"
	"fmt"

	"coach/pkg/llm"
	"coach/pkg/proto"
	"coach/pkg/session"
)

// ContentModule is the capability set every stage-handling variant must
// implement.
type ContentModule interface {
	// Name identifies the module in logs and telemetry.
	Name() string

	// Process produces the turn's content from read-only session state.
	// Effects are returned as update instructions, never applied
	// directly. A retryable upstream failure is returned as a
	// *proto.GenerationError.
	Process(ctx context.Context, sess *session.State) (*proto.ModuleResponse, error)

	// ShouldActivate reports whether this module owns the session's
	// current stage.
	ShouldActivate(sess *session.State) bool

	// ValidateContext checks the module's preconditions.
	ValidateContext(sess *session.State) bool
}

// base carries the name and owned stages shared by all variants.
type base struct {
	name   string
	client llm.Client // nil means keyword stubs only
	stages []proto.Stage
}

func (b *base) Name() string {
	return b.name
}

func (b *base) ShouldActivate(sess *session.State) bool {
	for _, s := range b.stages {
		if sess.CurrentStage == s {
			return true
		}
	}
	return false
}

func (b *base) ValidateContext(_ *session.State) bool {
	return true
}

// generate runs one completion against the module's client, wrapping any
// failure as a retryable generation error.
func (b *base) generate(ctx context.Context, system, prompt string) (string, error) {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(prompt),
	})
	resp, err := b.client.Complete(ctx, req)
	if err != nil {
		return "", proto.NewGenerationError(err)
	}
	return resp.Content, nil
}

// Registry maps registered modules and selects the variant that owns a
// turn. Assembly (which modules, with which clients) happens externally.
type Registry struct {
	modules []ContentModule
	byName  map[string]ContentModule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]ContentModule)}
}

// Register adds a module. Registration order is selection order.
func (r *Registry) Register(m ContentModule) error {
	if _, exists := r.byName[m.Name()]; exists {
		return fmt.Errorf("module %q already registered", m.Name())
	}
	r.modules = append(r.modules, m)
	r.byName[m.Name()] = m
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (ContentModule, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Select returns the first registered module that activates for the
// session's current stage.
func (r *Registry) Select(sess *session.State) (ContentModule, bool) {
	for _, m := range r.modules {
		if m.ShouldActivate(sess) {
			return m, true
		}
	}
	return nil, false
}

// DefaultRegistry registers the four standard variants, all sharing one
// client (nil for keyword stubs).
func DefaultRegistry(client llm.Client) *Registry {
	r := NewRegistry()
	// Registration errors are impossible here: names are distinct.
	_ = r.Register(NewPatternRecognizer(client))
	_ = r.Register(NewThoughtCoach(client))
	_ = r.Register(NewCodeReviewer(client))
	_ = r.Register(NewFollowUpGenerator(client))
	return r
}
