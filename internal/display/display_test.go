package display

import (
	"errors"
	"testing"

	"github.com/Mezgrman/flipdot/protocol"
)

func newTestDisplay(id string) *Display {
	return New(id, HardwareConfig{Width: 126, Height: 16, Address: 0}, nil, nil)
}

func TestApplyConfigMarksPending(t *testing.T) {
	d := newTestDisplay("front")

	if err := d.ApplyConfig(map[string]bool{KeyBacklight: true}); err != nil {
		t.Fatalf("ApplyConfig() error = %v", err)
	}

	snap := d.ConfigSnapshot(nil)
	if !snap[KeyBacklight] {
		t.Error("backlight not applied")
	}
	d.Update(func(st *State) {
		if len(st.Schedule.PendingKeys) != 1 || st.Schedule.PendingKeys[0] != KeyBacklight {
			t.Errorf("PendingKeys = %v, want [backlight]", st.Schedule.PendingKeys)
		}
	})
}

func TestApplyConfigUnchangedValueNotPending(t *testing.T) {
	d := newTestDisplay("front")

	// active defaults to true; re-submitting the same value is a no-op.
	if err := d.ApplyConfig(map[string]bool{KeyActive: true}); err != nil {
		t.Fatalf("ApplyConfig() error = %v", err)
	}
	d.Update(func(st *State) {
		if len(st.Schedule.PendingKeys) != 0 {
			t.Errorf("PendingKeys = %v, want empty", st.Schedule.PendingKeys)
		}
	})
}

func TestApplyConfigUnknownKeyIsAtomic(t *testing.T) {
	d := newTestDisplay("front")

	err := d.ApplyConfig(map[string]bool{KeyBacklight: true, "brightness": true})
	if !errors.Is(err, ErrUnknownConfigKey) {
		t.Fatalf("ApplyConfig() error = %v, want ErrUnknownConfigKey", err)
	}

	// The valid key in the same request must not have been applied.
	if d.ConfigSnapshot(nil)[KeyBacklight] {
		t.Error("backlight applied despite invalid sibling key")
	}
	d.Update(func(st *State) {
		if len(st.Schedule.PendingKeys) != 0 {
			t.Errorf("PendingKeys = %v, want empty", st.Schedule.PendingKeys)
		}
	})
}

func TestMarkPendingCollapsesDuplicates(t *testing.T) {
	var s Schedule
	s.MarkPending(KeyBacklight)
	s.MarkPending(KeyInverting)
	s.MarkPending(KeyBacklight)
	if len(s.PendingKeys) != 2 {
		t.Errorf("PendingKeys = %v, want two entries", s.PendingKeys)
	}
}

func TestSetMessageMarksDirty(t *testing.T) {
	d := newTestDisplay("front")
	msg := &protocol.Message{Type: protocol.MessageSingle}

	d.SetMessage(msg)

	if d.CurrentMessage() != msg {
		t.Error("CurrentMessage() did not return the assigned message")
	}
	d.Update(func(st *State) {
		if !st.Schedule.MessageDirty {
			t.Error("MessageDirty not set")
		}
	})
}

func TestConfigMapSubset(t *testing.T) {
	c := DefaultConfig()
	got := c.Map([]string{KeyActive, "nonsense"})
	if len(got) != 1 || !got[KeyActive] {
		t.Errorf("Map() = %v, want only active=true", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"side", "front"} {
		if err := r.Add(newTestDisplay(id)); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}

	if err := r.Add(newTestDisplay("front")); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Add() error = %v, want ErrExists", err)
	}
	if _, err := r.Get("roof"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(roof) error = %v, want ErrNotFound", err)
	}

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "front" || ids[1] != "side" {
		t.Errorf("IDs() = %v, want sorted [front side]", ids)
	}
	if hw := r.HardwareMap(); hw["front"].Width != 126 {
		t.Errorf("HardwareMap() = %v", hw)
	}
}
