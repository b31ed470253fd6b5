package skill

import (
	"fmt"
	"sync"

	"github.com/warblebot/warble/internal/event"
)

// Table is the registered skill set. Writes happen only while the bot is
// loading; reads dominate once it runs.
type Table struct {
	mu     sync.RWMutex
	reg    *event.Registry
	skills []*Skill
	byName map[string]*Skill
}

// NewTable creates an empty table bound to the event registry used to
// validate event-type matchers.
func NewTable(reg *event.Registry) *Table {
	return &Table{
		reg:    reg,
		byName: make(map[string]*Skill),
	}
}

// Register validates the skill's matchers and adds it. Duplicate names and
// invalid matchers are rejected.
func (t *Table) Register(s *Skill) error {
	if s.Name == "" {
		return fmt.Errorf("skill with empty name")
	}
	if s.Handler == nil {
		return fmt.Errorf("skill %q has no handler", s.Name)
	}
	for _, m := range s.Matchers {
		if err := m.validate(t.reg); err != nil {
			return fmt.Errorf("skill %q: %w", s.Name, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byName[s.Name]; exists {
		return fmt.Errorf("skill %q already registered", s.Name)
	}
	t.skills = append(t.skills, s)
	t.byName[s.Name] = s
	return nil
}

// Unregister removes the named skill. Returns false if it was not present.
func (t *Table) Unregister(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byName[name]; !exists {
		return false
	}
	delete(t.byName, name)
	for i, s := range t.skills {
		if s.Name == name {
			t.skills = append(t.skills[:i], t.skills[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the named skill.
func (t *Table) Get(name string) (*Skill, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byName[name]
	return s, ok
}

// Skills returns a snapshot of the registered skills in registration order.
func (t *Table) Skills() []*Skill {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Skill, len(t.skills))
	copy(out, t.skills)
	return out
}

// Len returns the number of registered skills.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.skills)
}

// Registry returns the event registry the table validates against.
func (t *Table) Registry() *event.Registry { return t.reg }
