package connector

import (
	"context"
	"fmt"

	"github.com/warblebot/warble/internal/errors"
	"github.com/warblebot/warble/internal/event"
)

// SendFunc handles one outbound event kind for a connector.
type SendFunc func(ctx context.Context, ev event.Event) error

type handlerEntry struct {
	fn         SendFunc
	subclasses bool
}

// HandleOption configures a dispatch registration.
type HandleOption func(*handlerEntry)

// WithSubclasses lets the handler also receive subclasses of its declared
// kind, unless a more specific handler is registered.
func WithSubclasses() HandleOption {
	return func(e *handlerEntry) { e.subclasses = true }
}

// Dispatch maps outbound event kinds to handler functions. Connectors build
// their table at construction; it is not mutated afterwards.
type Dispatch struct {
	reg           *event.Registry
	handlers      map[string]handlerEntry
	defaultTarget string
}

// NewDispatch creates an empty dispatch table validated against reg.
func NewDispatch(reg *event.Registry) *Dispatch {
	return &Dispatch{
		reg:      reg,
		handlers: make(map[string]handlerEntry),
	}
}

// Handle registers fn for the given event kind. The kind must exist in the
// registry.
func (d *Dispatch) Handle(kind string, fn SendFunc, opts ...HandleOption) error {
	if _, err := d.reg.Lookup(kind); err != nil {
		return err
	}
	if _, dup := d.handlers[kind]; dup {
		return fmt.Errorf("dispatch: duplicate handler for %q", kind)
	}
	e := handlerEntry{fn: fn}
	for _, opt := range opts {
		opt(&e)
	}
	d.handlers[kind] = e
	return nil
}

// MustHandle is Handle that panics on error, for construction-time tables
// over built-in kinds.
func (d *Dispatch) MustHandle(kind string, fn SendFunc, opts ...HandleOption) {
	if err := d.Handle(kind, fn, opts...); err != nil {
		panic(err)
	}
}

// SetDefaultTarget sets the target filled into outbound events that carry
// none.
func (d *Dispatch) SetDefaultTarget(target string) { d.defaultTarget = target }

// DefaultTarget returns the configured default target.
func (d *Dispatch) DefaultTarget() string { return d.defaultTarget }

// Send resolves the most specific handler for the event's kind and invokes
// it. Resolution prefers an exact kind match, then walks up the parent
// chain looking for a handler registered with subclasses enabled. Events
// without a target get the default target.
func (d *Dispatch) Send(ctx context.Context, ev event.Event) error {
	if m := ev.Meta(); m.Target == "" {
		m.Target = d.defaultTarget
	}

	kind := ev.Kind()
	if e, ok := d.handlers[kind]; ok {
		return e.fn(ctx, ev)
	}
	for cur := kind; ; {
		desc, err := d.reg.Lookup(cur)
		if err != nil || desc.Parent == "" {
			break
		}
		if e, ok := d.handlers[desc.Parent]; ok && e.subclasses {
			return e.fn(ctx, ev)
		}
		cur = desc.Parent
	}
	return fmt.Errorf("%w: %s", errors.ErrUnsupportedEvent, kind)
}
