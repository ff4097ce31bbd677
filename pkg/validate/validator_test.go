package validate

import (
	"testing"

	"coach/pkg/config"
	"coach/pkg/proto"
	"coach/pkg/session"
)

func newValidator() *Validator {
	return New(config.Default().Keywords)
}

func TestValidatePriorityOrder(t *testing.T) {
	v := newValidator()
	sess := session.New("p", nil)

	tests := []struct {
		name  string
		input string
		want  Anomaly
	}{
		{"empty", "", AnomalyEmpty},
		{"whitespace only", "   \t  ", AnomalyEmpty},
		{"too short", "ok", AnomalyTooShort},
		{"too short chinese", "不懂吧", AnomalyTooShort},
		{"off topic english", "what's the weather like today", AnomalyOffTopic},
		{"off topic chinese", "今天天气怎么样", AnomalyOffTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, anomaly := v.Validate(tt.input, sess)
			if valid {
				t.Fatalf("input %q should be invalid", tt.input)
			}
			if anomaly != tt.want {
				t.Errorf("anomaly = %s, want %s", anomaly, tt.want)
			}
		})
	}

	if valid, _ := v.Validate("I would use a hash map here", sess); !valid {
		t.Error("substantive input should be valid")
	}
}

func TestValidateRepeatedNeedsLogDepth(t *testing.T) {
	v := newValidator()
	sess := session.New("p", nil)

	// Too few log entries: the repeat check must not fire.
	_ = sess.AddMessage(proto.RoleUser, "I would sort it first")
	if valid, _ := v.Validate("I would sort it first", sess); !valid {
		t.Error("repeat check requires at least three log entries")
	}

	_ = sess.AddMessage(proto.RoleAssistant, "Tell me more.")
	_ = sess.AddMessage(proto.RoleUser, "I would sort it first")

	valid, anomaly := v.Validate("I would sort it first", sess)
	if valid || anomaly != AnomalyRepeated {
		t.Errorf("got (%v, %s), want repeated", valid, anomaly)
	}

	// Assistant repetition does not count.
	if valid, _ := v.Validate("Tell me more here", sess); !valid {
		t.Error("matching an assistant message must not trigger the repeat check")
	}
}

func TestEmptyBeatsRepeated(t *testing.T) {
	v := newValidator()
	sess := session.New("p", nil)
	for i := 0; i < 3; i++ {
		_ = sess.AddMessage(proto.RoleUser, "")
	}

	_, anomaly := v.Validate("", sess)
	if anomaly != AnomalyEmpty {
		t.Errorf("anomaly = %s, want empty (priority order)", anomaly)
	}
}

func TestIntentDetectors(t *testing.T) {
	v := newValidator()

	tests := []struct {
		input                         string
		skip, frustration, answerWant bool
	}{
		{"let's skip this part", true, false, false},
		{"跳过这一步吧", true, false, false},
		{"this is too hard for me", false, true, false},
		{"我不会做这道题", false, true, false},
		{"just give me the answer please", false, false, true},
		{"直接告诉我答案", false, false, true},
		{"I'd use two pointers from both ends", false, false, false},
	}
	for _, tt := range tests {
		if got := v.DetectsSkip(tt.input); got != tt.skip {
			t.Errorf("DetectsSkip(%q) = %v", tt.input, got)
		}
		if got := v.DetectsFrustration(tt.input); got != tt.frustration {
			t.Errorf("DetectsFrustration(%q) = %v", tt.input, got)
		}
		if got := v.DetectsAnswerRequest(tt.input); got != tt.answerWant {
			t.Errorf("DetectsAnswerRequest(%q) = %v", tt.input, got)
		}
	}
}

func TestDetectorsAreCaseInsensitive(t *testing.T) {
	v := newValidator()
	if !v.DetectsSkip("SKIP this") {
		t.Error("skip detection should ignore case")
	}
	if !v.DetectsFrustration("This Is Too Hard") {
		t.Error("frustration detection should ignore case")
	}
}
