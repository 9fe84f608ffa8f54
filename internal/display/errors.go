package display

import "errors"

// Domain errors for the display package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, display.ErrNotFound) {
//	    // unknown display id
//	}
var (
	// ErrNotFound is returned when a display id does not exist in the registry.
	ErrNotFound = errors.New("display: not found")

	// ErrExists is returned when registering a display id twice.
	ErrExists = errors.New("display: already registered")

	// ErrUnknownConfigKey is returned when a configuration option name is
	// not one of the recognised keys.
	ErrUnknownConfigKey = errors.New("display: invalid configuration option")
)
