package skill

import (
	"regexp"

	"github.com/warblebot/warble/internal/errors"
	"github.com/warblebot/warble/internal/event"
)

// Matcher families. Each family is consumed by exactly one parser.
const (
	FamilyRegex    = "regex"
	FamilyCatchall = "catchall"
	FamilyEvent    = "event"
	FamilyIntent   = "intent"
)

// Matcher is a tagged matcher descriptor attached to a skill. Validation
// happens once, at table registration.
type Matcher interface {
	Family() string
	validate(reg *event.Registry) error
}

// Regex matches message text against a regular expression.
type Regex struct {
	Pattern       string
	CaseSensitive bool

	// Score is the base score; a whole-string match keeps it, a substring
	// match is scaled down. Zero means 1.0.
	Score float64

	re *regexp.Regexp
}

func (m *Regex) Family() string { return FamilyRegex }

func (m *Regex) validate(_ *event.Registry) error {
	pattern := m.Pattern
	if !m.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return errors.NewConfigError("matcher", "invalid regex %q: %v", m.Pattern, err)
	}
	m.re = re
	if m.Score == 0 {
		m.Score = 1.0
	}
	return nil
}

// Regexp returns the compiled expression. Valid after table registration.
func (m *Regex) Regexp() *regexp.Regexp { return m.re }

// Catchall matches every message event with a fixed low score.
type Catchall struct {
	// Score defaults to 0.1, low enough that any real matcher outranks it.
	Score float64
}

func (m *Catchall) Family() string { return FamilyCatchall }

func (m *Catchall) validate(_ *event.Registry) error {
	if m.Score == 0 {
		m.Score = 0.1
	}
	return nil
}

// EventType matches an event by registered variant name, optionally
// admitting subclasses and requiring payload field equality.
type EventType struct {
	Kind              string
	IncludeSubclasses bool

	// Fields, when set, must all equal the variant's Field() values.
	Fields map[string]string
}

func (m *EventType) Family() string { return FamilyEvent }

func (m *EventType) validate(reg *event.Registry) error {
	if _, err := reg.Lookup(m.Kind); err != nil {
		return err
	}
	return nil
}

// Intent matches an NLU-classified intent name.
type Intent struct {
	Name string

	// MinScore overrides the parser-level min-score when non-zero.
	MinScore float64
}

func (m *Intent) Family() string { return FamilyIntent }

func (m *Intent) validate(_ *event.Registry) error {
	if m.Name == "" {
		return errors.NewConfigError("matcher", "intent matcher without an intent name")
	}
	return nil
}
