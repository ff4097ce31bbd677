// Package validate classifies raw user input before any content module
// runs: validity anomalies (empty, too short, repeated, off topic) and
// the skip / frustration / answer-request intent detectors. All checks
// are pure functions over the input text and the session log.
package validate

import (
	"strings"
	"unicode/utf8"

	"coach/pkg/config"
	"coach/pkg/proto"
	"coach/pkg/session"
)

// Anomaly categorizes why an input was rejected.
type Anomaly string

const (
	AnomalyEmpty    Anomaly = "empty"
	AnomalyTooShort Anomaly = "too_short"
	AnomalyRepeated Anomaly = "repeated"
	AnomalyOffTopic Anomaly = "off_topic"
)

// minInputLength is the trimmed rune count below which input counts as
// too short.
const minInputLength = 5

// repeatWindow is how many trailing log entries the repeated-input check
// scans, and the minimum log size for the check to run at all.
const repeatWindow = 3

// Validator classifies user input against configured keyword sets.
type Validator struct {
	offTopic      []string
	skip          []string
	frustration   []string
	answerRequest []string
}

// New creates a validator from the configured keyword sets.
func New(keywords config.Keywords) *Validator {
	return &Validator{
		offTopic:      lowerAll(keywords.OffTopic),
		skip:          lowerAll(keywords.Skip),
		frustration:   lowerAll(keywords.Frustration),
		answerRequest: lowerAll(keywords.AnswerRequest),
	}
}

// Validate classifies the input. Checks run in priority order and
// short-circuit on the first match: empty, too short, repeated, off
// topic. Valid input returns (true, "").
func (v *Validator) Validate(input string, sess *session.State) (bool, Anomaly) {
	trimmed := strings.TrimSpace(input)

	if trimmed == "" {
		return false, AnomalyEmpty
	}

	if utf8.RuneCountInString(trimmed) < minInputLength {
		return false, AnomalyTooShort
	}

	if len(sess.Log) >= repeatWindow {
		for _, msg := range sess.RecentEntries(repeatWindow) {
			if msg.Role == proto.RoleUser && strings.TrimSpace(msg.Content) == trimmed {
				return false, AnomalyRepeated
			}
		}
	}

	if containsAny(input, v.offTopic) {
		return false, AnomalyOffTopic
	}

	return true, ""
}

// DetectsSkip reports whether the input asks to skip the current stage.
func (v *Validator) DetectsSkip(input string) bool {
	return containsAny(input, v.skip)
}

// DetectsFrustration reports whether the input signals the user is
// stuck or giving up.
func (v *Validator) DetectsFrustration(input string) bool {
	return containsAny(input, v.frustration)
}

// DetectsAnswerRequest reports whether the input asks for the answer
// outright. Telemetry only; it never gates the turn pipeline.
func (v *Validator) DetectsAnswerRequest(input string) bool {
	return containsAny(input, v.answerRequest)
}

func containsAny(input string, keywords []string) bool {
	lowered := strings.ToLower(input)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func lowerAll(keywords []string) []string {
	out := make([]string, len(keywords))
	for i, kw := range keywords {
		out[i] = strings.ToLower(kw)
	}
	return out
}
