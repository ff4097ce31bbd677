// Package config provides configuration loading and defaults for the
// coaching engine: keyword sets, skip policy overrides, fallback
// templates, retry limits, and backoff tuning. Values come from an
// optional YAML file layered over built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"coach/pkg/proto"
)

// Duration wraps time.Duration so YAML values can use "500ms" / "1s"
// notation.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in time.Duration string notation.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Keywords holds the substring sets used by the input validator and the
// intent detectors. Matching is case-insensitive substring containment.
type Keywords struct {
	OffTopic      []string `yaml:"off_topic"`
	Skip          []string `yaml:"skip"`
	Frustration   []string `yaml:"frustration"`
	AnswerRequest []string `yaml:"answer_request"`
}

// StagePolicy names the critical and skippable stage sets.
type StagePolicy struct {
	Critical  []string `yaml:"critical"`
	Skippable []string `yaml:"skippable"`
}

// Config is the engine configuration surface.
type Config struct {
	MaxRetries    int      `yaml:"max_retries"`
	BackoffUnit   Duration `yaml:"backoff_unit"`
	HelpThreshold int      `yaml:"help_threshold"`

	Keywords Keywords    `yaml:"keywords"`
	Stages   StagePolicy `yaml:"stages"`

	// Fallbacks maps stage names to fixed degraded-mode replies. The
	// "default" entry covers unmapped stages.
	Fallbacks map[string]string `yaml:"fallbacks"`

	// InvalidTemplates maps anomaly categories to canned clarifications.
	InvalidTemplates map[string]string `yaml:"invalid_templates"`

	Encouragements []string `yaml:"encouragements"`

	// LLM provider settings. Empty provider means keyword stubs only.
	Provider string `yaml:"provider"` // "", "anthropic", "openai", "ollama"
	Model    string `yaml:"model"`
	Host     string `yaml:"host"` // ollama server URL
}

// FallbackDefaultKey is the Fallbacks entry used for unmapped stages.
const FallbackDefaultKey = "default"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxRetries:    3,
		BackoffUnit:   Duration(time.Second),
		HelpThreshold: 3,
		Keywords: Keywords{
			OffTopic:    []string{"weather", "天气", "吃饭", "lunch", "游戏", "game"},
			Skip:        []string{"skip", "跳过", "下一个", "next", "pass"},
			Frustration: []string{"too hard", "太难", "give up", "放弃", "don't know", "不会", "can't", "不懂"},
			AnswerRequest: []string{
				"give me the answer", "tell me the answer", "直接告诉我",
				"what's the solution", "答案是什么", "just show me",
			},
		},
		Stages: StagePolicy{
			Critical:  []string{string(proto.StageArticulation), string(proto.StagePseudocode), string(proto.StageEdgeCase)},
			Skippable: []string{string(proto.StageComplexity), string(proto.StageSummary)},
		},
		Fallbacks: map[string]string{
			string(proto.StageClarification): "Let's make sure we understand the problem. What are the inputs and expected outputs?",
			string(proto.StageArticulation):  "Let's think about this step by step. What would be the simplest approach to solve this, even if not optimal?",
			string(proto.StageComplexity):    "Can you analyze the time and space complexity of your approach?",
			string(proto.StagePseudocode):    "Now let's write out the pseudocode or main logic structure.",
			string(proto.StageEdgeCase):      "What edge cases should we consider? Think about empty inputs, extreme values, etc.",
			string(proto.StageFollowUp):      "Great work! Now let's think about: could we optimize this further?",
			string(proto.StageSummary):       "Let's summarize: what pattern did we use here, and when would you use it again?",
			FallbackDefaultKey:               "Let's continue with the next step.",
		},
		InvalidTemplates: map[string]string{
			"empty":     "I didn't catch that. Could you share your thoughts?",
			"too_short": "That's a bit brief! Could you elaborate a bit more?",
			"off_topic": "Hmm, that seems unrelated. Let me rephrase the question.",
			"repeated":  "I notice you've said something similar before. Want to try a different angle?",
		},
		Encouragements: []string{
			"I can tell this is challenging, and that's completely normal! Even experienced engineers struggle with these problems at first.",
			"Let me help you break this down into smaller steps. We'll tackle it together.",
			"How about we approach this differently? Sometimes a fresh angle makes all the difference.",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the loaded configuration for values the engine cannot
// operate with.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.BackoffUnit <= 0 {
		return fmt.Errorf("backoff_unit must be positive, got %s", c.BackoffUnit.Std())
	}
	if c.HelpThreshold < 1 {
		return fmt.Errorf("help_threshold must be at least 1, got %d", c.HelpThreshold)
	}
	for _, name := range append(append([]string{}, c.Stages.Critical...), c.Stages.Skippable...) {
		if _, err := proto.ParseStage(name); err != nil {
			return fmt.Errorf("stage policy: %w", err)
		}
	}
	for name := range c.Fallbacks {
		if name == FallbackDefaultKey {
			continue
		}
		if _, err := proto.ParseStage(name); err != nil {
			return fmt.Errorf("fallbacks: %w", err)
		}
	}
	if len(c.Encouragements) == 0 {
		return fmt.Errorf("encouragements must not be empty")
	}
	return nil
}

// StagePolicySets converts the configured stage names into typed sets.
func (c *Config) StagePolicySets() (critical, skippable map[proto.Stage]bool, err error) {
	critical = make(map[proto.Stage]bool, len(c.Stages.Critical))
	skippable = make(map[proto.Stage]bool, len(c.Stages.Skippable))
	for _, name := range c.Stages.Critical {
		stage, perr := proto.ParseStage(name)
		if perr != nil {
			return nil, nil, perr
		}
		critical[stage] = true
	}
	for _, name := range c.Stages.Skippable {
		stage, perr := proto.ParseStage(name)
		if perr != nil {
			return nil, nil, perr
		}
		skippable[stage] = true
	}
	return critical, skippable, nil
}

// FallbackFor returns the degraded-mode reply for a stage, falling back
// to the default entry for unmapped stages.
func (c *Config) FallbackFor(stage proto.Stage) string {
	if msg, ok := c.Fallbacks[string(stage)]; ok {
		return msg
	}
	return c.Fallbacks[FallbackDefaultKey]
}
