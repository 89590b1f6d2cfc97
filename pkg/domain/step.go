package domain

import "fmt"

// StepType identifies one action from the closed step vocabulary.
type StepType string

const (
	StepGoto            StepType = "goto"
	StepClick           StepType = "click"
	StepTypeText        StepType = "type"
	StepPress           StepType = "press"
	StepWaitFor         StepType = "wait_for"
	StepScroll          StepType = "scroll"
	StepExtract         StepType = "extract"
	StepExtractReadable StepType = "extract_readable"
	StepLinks           StepType = "links"
	StepQuote           StepType = "quote"
	StepScreenshot      StepType = "screenshot"
	StepPauseForUser    StepType = "pause_for_user"
)

// DefaultQuoteContext is the context window applied when a quote step does
// not set context_chars.
const DefaultQuoteContext = 400

// Step is one requested browser action. The vocabulary is closed: Type
// selects which parameter fields are meaningful, and Validate enforces the
// per-type rules before any execution starts.
type Step struct {
	Type StepType `json:"type" yaml:"type" mapstructure:"type"`

	// goto
	URL       string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
	WaitUntil string `json:"wait_until,omitempty" yaml:"wait_until,omitempty" mapstructure:"wait_until"`

	// click (exactly one of selector/text/role), type, wait_for, extract
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty" mapstructure:"selector"`
	Text     string `json:"text,omitempty" yaml:"text,omitempty" mapstructure:"text"`
	Role     string `json:"role,omitempty" yaml:"role,omitempty" mapstructure:"role"`

	// press
	Key string `json:"key,omitempty" yaml:"key,omitempty" mapstructure:"key"`

	// wait_for
	LoadState string `json:"load_state,omitempty" yaml:"load_state,omitempty" mapstructure:"load_state"`

	// scroll (exactly one of pixels/to_selector)
	Pixels     *int   `json:"pixels,omitempty" yaml:"pixels,omitempty" mapstructure:"pixels"`
	ToSelector string `json:"to_selector,omitempty" yaml:"to_selector,omitempty" mapstructure:"to_selector"`

	// links
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty" mapstructure:"scope"`

	// quote
	Query        string `json:"query,omitempty" yaml:"query,omitempty" mapstructure:"query"`
	ContextChars *int   `json:"context_chars,omitempty" yaml:"context_chars,omitempty" mapstructure:"context_chars"`

	// pause_for_user
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty" mapstructure:"reason"`

	// screenshot
	Label string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`

	// BestEffort lets the run continue past an error in this step instead
	// of failing the whole run.
	BestEffort bool `json:"best_effort,omitempty" yaml:"best_effort,omitempty" mapstructure:"best_effort"`
}

// SupportedSteps lists the full vocabulary in a stable order.
var SupportedSteps = []StepType{
	StepGoto, StepClick, StepTypeText, StepPress, StepWaitFor, StepScroll,
	StepExtract, StepExtractReadable, StepLinks, StepQuote, StepScreenshot,
	StepPauseForUser,
}

// Supported reports whether t is part of the vocabulary.
func Supported(t StepType) bool {
	for _, s := range SupportedSteps {
		if s == t {
			return true
		}
	}
	return false
}

// ContextWindow returns the quote context window, applying the default when
// context_chars is unset.
func (s Step) ContextWindow() int {
	if s.ContextChars == nil {
		return DefaultQuoteContext
	}
	return *s.ContextChars
}

// LinkScope returns the links scope, defaulting to "main".
func (s Step) LinkScope() string {
	if s.Scope == "" {
		return "main"
	}
	return s.Scope
}

// Validate checks the per-type parameter rules. It returns a *StepError of
// kind Validation so callers can reject a whole run before executing
// anything.
func (s Step) Validate() error {
	fail := func(format string, args ...any) error {
		return &StepError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
	}
	switch s.Type {
	case StepGoto:
		if s.URL == "" {
			return fail("goto requires url")
		}
	case StepClick:
		if countSet(s.Selector, s.Text, s.Role) != 1 {
			return fail("click requires exactly one of selector, text, role")
		}
	case StepTypeText:
		if s.Selector == "" {
			return fail("type requires selector")
		}
		if s.Text == "" {
			return fail("type requires text")
		}
	case StepPress:
		if s.Key == "" {
			return fail("press requires key")
		}
	case StepWaitFor:
		if countSet(s.Selector, s.Text, s.LoadState) != 1 {
			return fail("wait_for requires exactly one of selector, text, load_state")
		}
	case StepScroll:
		set := 0
		if s.Pixels != nil {
			set++
		}
		if s.ToSelector != "" {
			set++
		}
		if set != 1 {
			return fail("scroll requires exactly one of pixels, to_selector")
		}
	case StepExtract, StepExtractReadable, StepLinks, StepScreenshot:
		// All parameters optional.
	case StepQuote:
		if s.Query == "" {
			return fail("quote requires query")
		}
		if s.ContextChars != nil && *s.ContextChars < 0 {
			return fail("context_chars must be non-negative")
		}
	case StepPauseForUser:
		if s.Reason == "" {
			return fail("pause_for_user requires reason")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedStep, s.Type)
	}
	return nil
}

// ValidateSteps rejects an empty or invalid step list atomically. The
// returned error identifies the first offending step by index.
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return &StepError{Kind: KindValidation, Message: "steps must not be empty"}
	}
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func countSet(values ...string) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}
