package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Mezgrman/flipdot/internal/dispatch"
	"github.com/Mezgrman/flipdot/internal/display"
	"github.com/Mezgrman/flipdot/protocol"
)

func newTestRegistry(t *testing.T) *display.Registry {
	t.Helper()
	registry := display.NewRegistry()
	for id, hw := range map[string]display.HardwareConfig{
		"front": {Width: 126, Height: 16, Address: 0},
		"side":  {Width: 84, Height: 16, Address: 1},
	} {
		if err := registry.Add(display.New(id, hw, nil, nil)); err != nil {
			t.Fatal(err)
		}
	}
	return registry
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state.json"), newTestRegistry(t))
	if _, err := store.Load(); !errors.Is(err, ErrNoState) {
		t.Errorf("Load() error = %v, want ErrNoState", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	store := NewStore(path, newTestRegistry(t))
	if _, err := store.Load(); err == nil || errors.Is(err, ErrNoState) {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

// TestSaveLoadReplayRoundTrip saves a populated registry, then replays the
// saved entries through a fresh dispatcher and checks that config and
// current message come back equivalent.
func TestSaveLoadReplayRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	// Populate the first registry through its dispatcher.
	registry := newTestRegistry(t)
	store := NewStore(path, registry)
	p := dispatch.New(registry, store, nil)

	reply := p.Process(protocol.Envelope{
		Type:    protocol.TypeControl,
		Display: "front",
		Message: json.RawMessage(`{"backlight":true}`),
	})
	if reply.Failed() {
		t.Fatalf("control failed: %s", reply.Err())
	}
	reply = p.Process(protocol.Envelope{
		Type:    protocol.TypeData,
		Display: "front",
		Message: json.RawMessage(`{"type":"single","duration":null,"submessages":[{"type":"bitmap","bitmap":[[1,0,1],[0,1,0]]}]}`),
	})
	if reply.Failed() {
		t.Fatalf("data failed: %s", reply.Err())
	}

	// Restore into a fresh registry by replaying the saved entries.
	restored := newTestRegistry(t)
	restoredStore := NewStore(path, restored)
	restoredDispatch := dispatch.New(restored, nil, nil)

	entries, err := restoredStore.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, entry := range entries {
		if r := restoredDispatch.Process(entry); r.Failed() {
			t.Fatalf("replaying %s for %s failed: %s", entry.Type, entry.Display, r.Err())
		}
	}

	front, _ := restored.Get("front")
	if !front.ConfigSnapshot(nil)["backlight"] {
		t.Error("backlight not restored")
	}
	msg := front.CurrentMessage()
	if msg == nil || msg.Type != protocol.MessageSingle || len(msg.Submessages) != 1 {
		t.Fatalf("restored message = %+v", msg)
	}
	if msg.Submessages[0].Bitmap[0][2] != 1 {
		t.Error("restored bitmap content differs")
	}

	// Replay must re-establish scheduling state, not restore it directly.
	front.Update(func(st *display.State) {
		if !st.Schedule.MessageDirty {
			t.Error("restored message not marked dirty for the scheduler")
		}
	})

	// The never-assigned display stays unassigned.
	side, _ := restored.Get("side")
	if side.CurrentMessage() != nil {
		t.Error("side display unexpectedly has content")
	}
}

func TestSaveIsAtomicReplacement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	registry := newTestRegistry(t)
	store := NewStore(path, registry)

	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	// No temp files left behind.
	matches, err := filepath.Glob(path + ".tmp-*")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}

	var doc Document
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	if len(doc.Config) != 2 || len(doc.Messages) != 2 {
		t.Errorf("document has %d config / %d message entries, want 2/2", len(doc.Config), len(doc.Messages))
	}
}
