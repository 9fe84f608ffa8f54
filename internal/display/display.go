package display

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Mezgrman/flipdot/protocol"
)

// Bitmap is re-exported from the protocol package; the registry caches the
// last rendered frame in wire form so queries can return it directly.
type Bitmap = protocol.Bitmap

// Controller is the hardware collaborator driving one panel on the shared
// serial bus. Implementations multiplex the bus by panel address and must be
// safe for use from the scheduler goroutine.
type Controller interface {
	// SetBacklight switches the panel backlight.
	SetBacklight(on bool) error

	// SetInverting switches inverted rendering in the panel firmware.
	SetInverting(on bool) error

	// SetActive switches the panel on or off entirely.
	SetActive(on bool) error

	// Commit writes a rendered frame to the physical panel.
	Commit(frame Bitmap) error
}

// Renderer is the graphics collaborator that turns drawing instructions into
// a frame for one panel. A renderer is stateful: drawing calls accumulate on
// an internal canvas until Snapshot is taken.
type Renderer interface {
	// Clear resets the canvas to all-unset dots.
	Clear()

	// Blit copies a raw bitmap onto the canvas at (x, y).
	Blit(bitmap Bitmap, x, y int) error

	// Draw evaluates the named graphics function with the given parameters.
	Draw(name string, params map[string]any) error

	// Supports reports whether the named graphics function exists. Content
	// referring to unknown functions is rejected at dispatch time.
	Supports(name string) bool

	// Snapshot returns the current canvas as a frame.
	Snapshot() Bitmap
}

// HardwareConfig is the immutable hardware description of one panel.
type HardwareConfig struct {
	Width   int `json:"width" yaml:"width"`
	Height  int `json:"height" yaml:"height"`
	Address int `json:"address" yaml:"address"`
}

// DynamicEntry tracks one graphics submessage with a periodic refresh: its
// requested interval and the time its content was last regenerated.
type DynamicEntry struct {
	Interval    protocol.RefreshInterval
	LastRefresh time.Time
}

// Schedule is the scheduling bookkeeping for one display.
//
// Writer discipline: PendingKeys and MessageDirty are set by the dispatcher
// and consumed (cleared) by the scheduler; all other fields are owned by the
// scheduler alone. Every access happens under the display lock.
type Schedule struct {
	// PendingKeys lists config options changed since the last tick, in the
	// order they were changed, awaiting application to hardware.
	PendingKeys []string

	// MessageDirty is set when a new message has been assigned.
	MessageDirty bool

	// SequencePos is the index of the active member of a sequence message.
	SequencePos int

	// LastSwitch is when the sequence last rotated. Zero for single messages.
	LastSwitch time.Time

	// Dynamic maps submessage index → refresh tracking, populated only for
	// graphics submessages of the active content with a refresh interval.
	Dynamic map[int]DynamicEntry
}

// MarkPending records a config key as awaiting hardware application.
// Duplicate marks before the next tick are collapsed.
func (s *Schedule) MarkPending(key string) {
	if !slices.Contains(s.PendingKeys, key) {
		s.PendingKeys = append(s.PendingKeys, key)
	}
}

// State is the mutable per-display state guarded by the display lock.
type State struct {
	Config   Config
	Message  *protocol.Message
	Bitmap   Bitmap
	Schedule Schedule
}

// Display is one physical flip-dot panel: immutable identity and hardware
// handles, plus the lock-guarded mutable state.
type Display struct {
	ID         string
	Hardware   HardwareConfig
	Controller Controller
	Renderer   Renderer

	mu    sync.Mutex
	state State
}

// New creates a display with default config and no content assigned.
func New(id string, hw HardwareConfig, controller Controller, renderer Renderer) *Display {
	return &Display{
		ID:         id,
		Hardware:   hw,
		Controller: controller,
		Renderer:   renderer,
		state: State{
			Config:   DefaultConfig(),
			Schedule: Schedule{Dynamic: make(map[int]DynamicEntry)},
		},
	}
}

// Update runs fn with exclusive access to the display's mutable state. The
// lock is held for the duration of fn, so fn must not perform hardware or
// network calls.
func (d *Display) Update(fn func(st *State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.state)
}

// ApplyConfig validates and applies a set of option changes atomically:
// either every key is recognised and all differing values are applied and
// marked pending, or nothing changes and the first unknown key is reported.
func (d *Display) ApplyConfig(changes map[string]bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key := range changes {
		if _, err := d.state.Config.Get(key); err != nil {
			return err
		}
	}
	for key, value := range changes {
		current, _ := d.state.Config.Get(key)
		if current == value {
			continue
		}
		if err := d.state.Config.Set(key, value); err != nil {
			return err
		}
		d.state.Schedule.MarkPending(key)
	}
	return nil
}

// SetMessage replaces the display's content wholesale and marks the
// schedule dirty. The message must already be validated; the display takes
// ownership and callers must not mutate it afterwards.
func (d *Display) SetMessage(m *protocol.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Message = m
	d.state.Schedule.MessageDirty = true
}

// CurrentMessage returns the display's current raw message, or nil if no
// content has been assigned. The returned message is shared and must be
// treated as read-only.
func (d *Display) CurrentMessage() *protocol.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Message
}

// ConfigSnapshot returns the current options restricted to keys (nil
// selects all).
func (d *Display) ConfigSnapshot(keys []string) map[string]bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Config.Map(keys)
}

// CachedBitmap returns the last rendered frame, or nil if the display has
// never been rendered.
func (d *Display) CachedBitmap() Bitmap {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Bitmap
}

// String implements fmt.Stringer for log output.
func (d *Display) String() string {
	return fmt.Sprintf("%s (%dx%d @%d)", d.ID, d.Hardware.Width, d.Hardware.Height, d.Hardware.Address)
}
