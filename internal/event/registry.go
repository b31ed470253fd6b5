package event

import (
	"sort"
	"sync"
	"time"

	"github.com/warblebot/warble/internal/errors"
)

// Descriptor describes one registered event variant.
type Descriptor struct {
	// Name is the globally unique variant name, e.g. "message".
	Name string

	// Parent is the name of the variant this one specializes, or "" for a
	// root variant. The parent must already be registered.
	Parent string

	// New constructs a zero value of the variant.
	New func() Event
}

// Registry is the process-wide map from variant name to descriptor. It is
// append-only: entries are registered during startup, the registry is
// frozen before connectors start, and reload never re-registers.
type Registry struct {
	mu       sync.RWMutex
	variants map[string]Descriptor
	children map[string][]string
	frozen   bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		variants: make(map[string]Descriptor),
		children: make(map[string][]string),
	}
}

// Register adds a variant. Duplicate names and unknown parents fail with a
// RegistryError, as does registration after Freeze.
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return &errors.RegistryError{Variant: d.Name, Message: "registry is frozen"}
	}
	if d.Name == "" {
		return &errors.RegistryError{Variant: d.Name, Message: "variant name is empty"}
	}
	if _, exists := r.variants[d.Name]; exists {
		return &errors.RegistryError{Variant: d.Name, Message: "duplicate variant"}
	}
	if d.Parent != "" {
		if _, ok := r.variants[d.Parent]; !ok {
			return &errors.RegistryError{Variant: d.Name, Message: "unknown parent " + d.Parent}
		}
	}

	r.variants[d.Name] = d
	if d.Parent != "" {
		r.children[d.Parent] = append(r.children[d.Parent], d.Name)
	}
	return nil
}

// MustRegister is Register that panics on error. Used for the built-in
// variants whose names cannot collide.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.variants[name]
	if !ok {
		return Descriptor{}, &errors.RegistryError{Variant: name, Message: "unknown variant"}
	}
	return d, nil
}

// Subclasses returns the descriptors of name and every registered
// descendant, sorted by name. The result includes name itself.
func (r *Registry) Subclasses(name string) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	root, ok := r.variants[name]
	if !ok {
		return nil
	}
	out := []Descriptor{root}
	queue := append([]string(nil), r.children[name]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, r.variants[cur])
		queue = append(queue, r.children[cur]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsSubclass reports whether kind equals ancestor or descends from it.
func (r *Registry) IsSubclass(kind, ancestor string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for kind != "" {
		if kind == ancestor {
			return true
		}
		d, ok := r.variants[kind]
		if !ok {
			return false
		}
		kind = d.Parent
	}
	return false
}

// Len returns the number of registered variants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.variants)
}

// Freeze closes the registry to further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// RegisterCore installs the built-in variants. Parent relations:
// edited_message specializes message, image specializes file.
func RegisterCore(r *Registry) error {
	core := []Descriptor{
		{Name: KindMessage, New: func() Event { return NewMessage("") }},
		{Name: KindEditedMessage, Parent: KindMessage, New: func() Event { return NewEditedMessage("", nil) }},
		{Name: KindReaction, New: func() Event { return NewReaction("", nil) }},
		{Name: KindFile, New: func() Event { return NewFile("", "") }},
		{Name: KindImage, Parent: KindFile, New: func() Event { return NewImage("", "") }},
		{Name: KindJoinRoom, New: func() Event { return NewJoinRoom() }},
		{Name: KindLeaveRoom, New: func() Event { return NewLeaveRoom() }},
		{Name: KindJoinGroup, New: func() Event { return NewJoinGroup() }},
		{Name: KindNewRoom, New: func() Event { return NewNewRoom("") }},
		{Name: KindRoomName, New: func() Event { return NewRoomNameChange("") }},
		{Name: KindRoomDescription, New: func() Event { return NewRoomDescription("") }},
		{Name: KindPinMessage, New: func() Event { return NewPinMessage(nil) }},
		{Name: KindUnpinMessage, New: func() Event { return NewUnpinMessage(nil) }},
		{Name: KindTyping, New: func() Event { return NewTyping(false, 3*time.Second) }},
	}
	for _, d := range core {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}
