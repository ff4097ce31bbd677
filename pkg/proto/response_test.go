package proto

import (
	"errors"
	"fmt"
	"testing"
)

func TestResponseValidate(t *testing.T) {
	tests := []struct {
		name    string
		resp    *ModuleResponse
		wantErr bool
	}{
		{"nil response", nil, true},
		{"success with message", NewSuccessResponse("hello", nil, nil), false},
		{"success without message", &ModuleResponse{Success: true}, true},
		{"failure with error message", NewErrorResponse("boom", SeverityError), false},
		{"failure without error message", &ModuleResponse{Success: false}, true},
		{"invalid next stage", &ModuleResponse{
			Success: true, AssistantMessage: "hi", NextStage: StagePtr("NOPE"),
		}, true},
		{"valid next stage", NewSuccessResponse("hi", StagePtr(StageArticulation), nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestErrorResponseHasPresentableMessage(t *testing.T) {
	resp := NewErrorResponse("internal detail", SeverityCritical)
	if resp.AssistantMessage == "" {
		t.Error("error responses must still carry user-facing text")
	}
	if resp.Severity != SeverityCritical {
		t.Errorf("severity = %s, want critical", resp.Severity)
	}
}

func TestGenerationErrorWrapping(t *testing.T) {
	cause := errors.New("rate limited")
	genErr := NewGenerationError(cause)

	if !IsGenerationError(genErr) {
		t.Error("IsGenerationError should detect a direct GenerationError")
	}
	if !IsGenerationError(fmt.Errorf("module failed: %w", genErr)) {
		t.Error("IsGenerationError should detect a wrapped GenerationError")
	}
	if IsGenerationError(cause) {
		t.Error("plain errors are not generation errors")
	}
	if !errors.Is(genErr, cause) {
		t.Error("GenerationError should unwrap to its cause")
	}
}
