package skill

import "github.com/warblebot/warble/internal/event"

// Constraint is a named predicate limiting where a skill runs.
type Constraint struct {
	Name   string
	Invert bool
	pred   func(ev event.Event) bool
}

// Allow evaluates the predicate, applying inversion.
func (c Constraint) Allow(ev event.Event) bool {
	ok := c.pred(ev)
	if c.Invert {
		return !ok
	}
	return ok
}

// Rooms restricts a skill to events targeting one of the listed rooms.
func Rooms(rooms []string, invert bool) Constraint {
	set := toSet(rooms)
	return Constraint{
		Name:   "rooms",
		Invert: invert,
		pred: func(ev event.Event) bool {
			return set[ev.Meta().Target]
		},
	}
}

// Users restricts a skill to events from one of the listed users. Both the
// display name and the stable id are accepted.
func Users(users []string, invert bool) Constraint {
	set := toSet(users)
	return Constraint{
		Name:   "users",
		Invert: invert,
		pred: func(ev event.Event) bool {
			m := ev.Meta()
			return set[m.User] || set[m.UserID]
		},
	}
}

// Connectors restricts a skill to events from one of the named connectors.
func Connectors(names []string, invert bool) Constraint {
	set := toSet(names)
	return Constraint{
		Name:   "connectors",
		Invert: invert,
		pred: func(ev event.Event) bool {
			c := ev.Meta().Connector
			return c != nil && set[c.Name()]
		},
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
