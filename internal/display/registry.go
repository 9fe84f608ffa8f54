package display

import (
	"fmt"
	"sort"
)

// Registry is the static, process-lifetime mapping of display id → Display.
//
// It is populated once at startup from the hardware configuration and never
// mutated afterwards, which is what makes lock-free concurrent reads safe.
// Per-display mutable state lives inside each Display behind its own lock.
type Registry struct {
	displays map[string]*Display
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{displays: make(map[string]*Display)}
}

// Add registers a display. Returns ErrExists for duplicate ids.
// Add must only be called during startup, before the registry is shared.
func (r *Registry) Add(d *Display) error {
	if _, ok := r.displays[d.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, d.ID)
	}
	r.displays[d.ID] = d
	r.order = append(r.order, d.ID)
	sort.Strings(r.order)
	return nil
}

// Get returns the display with the given id.
// Returns ErrNotFound if the id is unknown.
func (r *Registry) Get(id string) (*Display, error) {
	d, ok := r.displays[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// IDs returns all display ids in stable (sorted) order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// All returns all displays in stable id order.
func (r *Registry) All() []*Display {
	out := make([]*Display, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.displays[id])
	}
	return out
}

// HardwareMap returns the static hardware configuration for every display,
// keyed by id. This is the query-hwconfig reply payload.
func (r *Registry) HardwareMap() map[string]HardwareConfig {
	out := make(map[string]HardwareConfig, len(r.displays))
	for id, d := range r.displays {
		out[id] = d.Hardware
	}
	return out
}
