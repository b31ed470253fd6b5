// Package skill holds the registered handlers, the matcher descriptors that
// bind them to parsers, and the constraints that scope where they run.
package skill

import (
	"context"

	"github.com/warblebot/warble/internal/event"
)

// Handler is a user-authored skill function. It receives the matched event
// and replies through event.Respond.
type Handler func(ctx context.Context, ev event.Event) error

// Skill is a handler plus its matchers, constraints, and configuration.
type Skill struct {
	Name        string
	Handler     Handler
	Matchers    []Matcher
	Constraints []Constraint
	Config      map[string]any
}

// Option configures a Skill at construction.
type Option func(*Skill)

// WithMatchers attaches matcher descriptors.
func WithMatchers(ms ...Matcher) Option {
	return func(s *Skill) { s.Matchers = append(s.Matchers, ms...) }
}

// WithConstraints attaches constraint predicates.
func WithConstraints(cs ...Constraint) Option {
	return func(s *Skill) { s.Constraints = append(s.Constraints, cs...) }
}

// WithConfig sets the skill's configuration mapping.
func WithConfig(cfg map[string]any) Option {
	return func(s *Skill) { s.Config = cfg }
}

// New builds a Skill record.
func New(name string, h Handler, opts ...Option) *Skill {
	s := &Skill{Name: name, Handler: h}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allowed reports whether every constraint admits the event.
func (s *Skill) Allowed(ev event.Event) bool {
	for _, c := range s.Constraints {
		if !c.Allow(ev) {
			return false
		}
	}
	return true
}
