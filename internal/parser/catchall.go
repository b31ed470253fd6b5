package parser

import (
	"context"

	"github.com/warblebot/warble/internal/event"
	"github.com/warblebot/warble/internal/skill"
)

// CatchallParser proposes always-on skills for every message event with a
// fixed low score, so any real matcher outranks them.
type CatchallParser struct{}

// NewCatchallParser creates the catchall parser.
func NewCatchallParser() *CatchallParser { return &CatchallParser{} }

func (p *CatchallParser) Name() string { return "catchall" }

func (p *CatchallParser) Parse(_ context.Context, ev event.Event, table *skill.Table) ([]Candidate, error) {
	if _, ok := messageText(ev, table); !ok {
		return nil, nil
	}

	var out []Candidate
	for _, s := range table.Skills() {
		for _, m := range s.Matchers {
			cm, ok := m.(*skill.Catchall)
			if !ok {
				continue
			}
			out = append(out, Candidate{Skill: s, Matcher: cm, Score: cm.Score, Event: ev})
		}
	}
	return out, nil
}
