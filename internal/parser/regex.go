package parser

import (
	"context"

	"github.com/warblebot/warble/internal/event"
	"github.com/warblebot/warble/internal/skill"
)

// partialFactor scales the base score when the pattern matches a substring
// rather than the whole message.
const partialFactor = 0.6

// RegexParser matches message text against the regex matchers in the table.
type RegexParser struct{}

// NewRegexParser creates the regex parser.
func NewRegexParser() *RegexParser { return &RegexParser{} }

func (p *RegexParser) Name() string { return "regex" }

// Parse scores each regex matcher against the message text. A whole-string
// match keeps the matcher's base score; a substring match is scaled down.
// Named capture groups become entities on the event.
func (p *RegexParser) Parse(_ context.Context, ev event.Event, table *skill.Table) ([]Candidate, error) {
	text, ok := messageText(ev, table)
	if !ok {
		return nil, nil
	}

	var out []Candidate
	for _, s := range table.Skills() {
		for _, m := range s.Matchers {
			rm, ok := m.(*skill.Regex)
			if !ok {
				continue
			}
			re := rm.Regexp()
			loc := re.FindStringIndex(text)
			if loc == nil {
				continue
			}

			score := rm.Score
			if loc[0] != 0 || loc[1] != len(text) {
				score *= partialFactor
			}

			if groups := namedGroups(re.FindStringSubmatch(text), re.SubexpNames()); len(groups) > 0 {
				ev.Meta().AddEntities(groups)
			}

			out = append(out, Candidate{Skill: s, Matcher: rm, Score: score, Event: ev})
		}
	}
	return out, nil
}

func namedGroups(match, names []string) map[string]event.Entity {
	if match == nil {
		return nil
	}
	var out map[string]event.Entity
	for i, name := range names {
		if name == "" || i >= len(match) {
			continue
		}
		if out == nil {
			out = make(map[string]event.Entity)
		}
		out[name] = event.Entity{Value: match[i], Confidence: 1.0}
	}
	return out
}
