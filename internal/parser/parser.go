// Package parser implements the matcher families that turn an incoming
// event into scored skill candidates.
package parser

import (
	"context"

	"github.com/warblebot/warble/internal/event"
	"github.com/warblebot/warble/internal/skill"
)

// Candidate is one proposed skill invocation for an event.
type Candidate struct {
	Skill   *skill.Skill
	Matcher skill.Matcher
	Score   float64 // in [0, 1]
	Event   event.Event
}

// Parser classifies an event against the skill table and returns scored
// candidates. Parsers run concurrently and must be independent: a failing
// parser never blocks another one's candidates.
type Parser interface {
	Name() string
	Parse(ctx context.Context, ev event.Event, table *skill.Table) ([]Candidate, error)
}

// messageText extracts the text of a message-family event.
func messageText(ev event.Event, table *skill.Table) (string, bool) {
	if !table.Registry().IsSubclass(ev.Kind(), event.KindMessage) {
		return "", false
	}
	fp, ok := ev.(event.FieldProvider)
	if !ok {
		return "", false
	}
	return fp.Field("text")
}
