// Package persistence saves and restores display config and content across
// restarts.
//
// The state file is a single JSON document holding one control entry and one
// data entry per display, each in request-envelope form. Restoring replays
// the entries through the dispatcher exactly as if a client had sent them,
// which re-establishes the scheduling state instead of restoring it
// directly.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Mezgrman/flipdot/internal/display"
	"github.com/Mezgrman/flipdot/protocol"
)

// ErrNoState is returned by Load when no state file exists yet. Callers
// treat it as "start with defaults", not as a failure.
var ErrNoState = errors.New("persistence: no saved state")

// filePermissions is the permission mode for the state file.
const filePermissions = 0600

// Document is the on-disk layout of the state file.
type Document struct {
	Config   []protocol.Envelope `json:"config"`
	Messages []protocol.Envelope `json:"messages"`
}

// Store persists the state of every display in a registry to one JSON file.
type Store struct {
	path     string
	registry *display.Registry
}

// NewStore creates a store writing to path.
func NewStore(path string, registry *display.Registry) *Store {
	return &Store{path: path, registry: registry}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Save snapshots config and current message for every display and writes
// the document atomically (temp file plus rename) to the store path.
func (s *Store) Save() error {
	doc := Document{
		Config:   make([]protocol.Envelope, 0, len(s.registry.IDs())),
		Messages: make([]protocol.Envelope, 0, len(s.registry.IDs())),
	}

	for _, d := range s.registry.All() {
		configRaw, err := json.Marshal(d.ConfigSnapshot(nil))
		if err != nil {
			return fmt.Errorf("persistence: encoding config for %s: %w", d.ID, err)
		}
		doc.Config = append(doc.Config, protocol.Envelope{
			Type:    protocol.TypeControl,
			Display: d.ID,
			Message: configRaw,
		})

		messageRaw, err := json.Marshal(d.CurrentMessage())
		if err != nil {
			return fmt.Errorf("persistence: encoding message for %s: %w", d.ID, err)
		}
		doc.Messages = append(doc.Messages, protocol.Envelope{
			Type:    protocol.TypeData,
			Display: d.ID,
			Message: messageRaw,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: encoding state: %w", err)
	}
	return s.writeAtomic(data)
}

// Load reads the state file and returns its entries in replay order: all
// config entries first, then all message entries.
//
// Returns ErrNoState when the file does not exist. A malformed file is
// reported as an error; the caller logs it and continues with defaults.
func (s *Store) Load() ([]protocol.Envelope, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("persistence: reading state file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("persistence: parsing state file: %w", err)
	}

	entries := make([]protocol.Envelope, 0, len(doc.Config)+len(doc.Messages))
	entries = append(entries, doc.Config...)
	entries = append(entries, doc.Messages...)
	return entries, nil
}

// writeAtomic writes data to a temp file in the target directory and moves
// it into place, so a crash mid-write never leaves a truncated state file.
func (s *Store) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("persistence: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: writing temp file: %w", errors.Join(writeErr, closeErr))
	}

	if err := os.Chmod(tmpPath, filePermissions); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: replacing state file: %w", err)
	}
	return nil
}
