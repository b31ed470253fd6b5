// Package event defines the typed events flowing through warble, the
// process-wide variant registry, and the respond semantics skills rely on.
package event

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every variant. Kind returns the registered
// variant name; Meta exposes the shared fields.
type Event interface {
	Kind() string
	Meta() *Metadata
}

// Sender is the outbound half of a connector. It lives here so events can
// hold a back-reference to their connector without importing it.
type Sender interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Identified is optionally implemented by connectors that know their own
// bot identity. The dispatcher uses it to suppress echo loops.
type Identified interface {
	Identity() string
}

// Delayer is optionally implemented by connectors that simulate human
// response latency. Respond consults it before sending.
type Delayer interface {
	Delays() Delays
}

// Delays holds thinking/typing delay ranges in seconds. A scalar
// configuration value becomes a degenerate [x, x] range.
type Delays struct {
	Thinking [2]float64 // seconds before the reply is sent
	Typing   [2]float64 // seconds per character of reply text
}

// Entity is a named value extracted from an event by a parser.
type Entity struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Metadata carries the fields shared by every event variant. Variants
// embed it and promote the Meta accessor; the embedded field and the
// accessor cannot share a name, hence Metadata.
type Metadata struct {
	User      string    // display name, optional
	UserID    string    // stable service id, optional
	Target    string    // room/channel/conversation handle
	Connector Sender    // originating connector; nil on synthesized events
	Created   time.Time // construction time
	EventID   string    // service-assigned or generated id
	Linked    Event     // event this one replies to / reacts to / edits
	Raw       any       // opaque original payload

	mu        sync.Mutex
	entities  map[string]Entity
	responded atomic.Bool
}

// NewMeta returns a Metadata stamped with the current time and a fresh id.
func NewMeta() Metadata {
	return Metadata{
		Created: time.Now(),
		EventID: uuid.NewString(),
	}
}

// Meta implements Event for embedders.
func (m *Metadata) Meta() *Metadata { return m }

// Responded reports whether the event has been responded to.
func (m *Metadata) Responded() bool { return m.responded.Load() }

// markResponded flips the responded flag, reporting whether this was the
// first response.
func (m *Metadata) markResponded() bool {
	return m.responded.CompareAndSwap(false, true)
}

// Entities returns a copy of the entity map.
func (m *Metadata) Entities() map[string]Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Entity, len(m.entities))
	for k, v := range m.entities {
		out[k] = v
	}
	return out
}

// Entity returns the named entity, if present.
func (m *Metadata) Entity(name string) (Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[name]
	return e, ok
}

// AddEntities merges extracted entities into the event in one atomic step.
// On key collision the higher-confidence value wins. Parsers accumulate
// locally and attach once, so a cancelled parser leaves nothing behind.
func (m *Metadata) AddEntities(extracted map[string]Entity) {
	if len(extracted) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entities == nil {
		m.entities = make(map[string]Entity, len(extracted))
	}
	for name, ent := range extracted {
		if cur, ok := m.entities[name]; ok && cur.Confidence >= ent.Confidence {
			continue
		}
		m.entities[name] = ent
	}
}

// Respond sends reply through src's connector, inheriting context the reply
// did not set itself: user, user id, target, and connector come from src
// where unset, and the linked event defaults to src. Thinking and typing
// delays declared by the connector are applied before the send.
func Respond(ctx context.Context, src, reply Event) error {
	sm, rm := src.Meta(), reply.Meta()

	if rm.User == "" {
		rm.User = sm.User
	}
	if rm.UserID == "" {
		rm.UserID = sm.UserID
	}
	if rm.Target == "" {
		rm.Target = sm.Target
	}
	if rm.Connector == nil {
		rm.Connector = sm.Connector
	}
	if rm.Linked == nil {
		rm.Linked = src
	}
	if rm.Created.IsZero() {
		rm.Created = time.Now()
	}
	if rm.EventID == "" {
		rm.EventID = uuid.NewString()
	}

	conn := rm.Connector
	if conn == nil {
		return fmt.Errorf("respond: event %s has no connector", sm.EventID)
	}

	if d, ok := conn.(Delayer); ok {
		delays := d.Delays()
		if err := sleepRange(ctx, delays.Thinking, 1); err != nil {
			return err
		}
		if msg, ok := reply.(*Message); ok {
			if err := sleepRange(ctx, delays.Typing, len(msg.Text)); err != nil {
				return err
			}
		}
	}

	if err := conn.Send(ctx, reply); err != nil {
		return err
	}
	sm.markResponded()
	return nil
}

// sleepRange sleeps a uniform random duration in [lo, hi] seconds scaled by
// n, honoring cancellation.
func sleepRange(ctx context.Context, r [2]float64, n int) error {
	lo, hi := r[0], r[1]
	if hi < lo {
		lo, hi = hi, lo
	}
	secs := lo
	if hi > lo {
		secs = lo + rand.Float64()*(hi-lo)
	}
	d := time.Duration(secs * float64(n) * float64(time.Second))
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
