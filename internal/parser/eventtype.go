package parser

import (
	"context"

	"github.com/warblebot/warble/internal/event"
	"github.com/warblebot/warble/internal/skill"
)

// EventParser matches events by registered variant name, optionally
// admitting subclasses and requiring payload field equality.
type EventParser struct{}

// NewEventParser creates the event-type parser.
func NewEventParser() *EventParser { return &EventParser{} }

func (p *EventParser) Name() string { return "event" }

func (p *EventParser) Parse(_ context.Context, ev event.Event, table *skill.Table) ([]Candidate, error) {
	reg := table.Registry()

	var out []Candidate
	for _, s := range table.Skills() {
		for _, m := range s.Matchers {
			em, ok := m.(*skill.EventType)
			if !ok {
				continue
			}
			if ev.Kind() != em.Kind {
				if !em.IncludeSubclasses || !reg.IsSubclass(ev.Kind(), em.Kind) {
					continue
				}
			}
			if !fieldsMatch(ev, em.Fields) {
				continue
			}
			out = append(out, Candidate{Skill: s, Matcher: em, Score: 1.0, Event: ev})
		}
	}
	return out, nil
}

func fieldsMatch(ev event.Event, want map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	fp, ok := ev.(event.FieldProvider)
	if !ok {
		return false
	}
	for name, expect := range want {
		got, ok := fp.Field(name)
		if !ok || got != expect {
			return false
		}
	}
	return true
}
