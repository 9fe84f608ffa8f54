package display

import "fmt"

// Recognised configuration option names. The set is closed: option names are
// validated against it at dispatch time, never resolved reflectively at the
// hardware boundary.
const (
	KeyBacklight = "backlight"
	KeyInverting = "inverting"
	KeyActive    = "active"
)

// configKeys is the canonical key order used for snapshots and replies.
var configKeys = []string{KeyBacklight, KeyInverting, KeyActive}

// ConfigKeys returns the recognised option names in canonical order.
func ConfigKeys() []string {
	keys := make([]string, len(configKeys))
	copy(keys, configKeys)
	return keys
}

// Config holds the boolean panel options for one display.
//
// The zero value is not the startup default; use DefaultConfig.
type Config struct {
	Backlight bool
	Inverting bool
	Active    bool
}

// DefaultConfig returns the options every display starts with: active, no
// backlight, no inversion.
func DefaultConfig() Config {
	return Config{Active: true}
}

// Get returns the value of the named option.
// Returns ErrUnknownConfigKey for unrecognised names.
func (c *Config) Get(key string) (bool, error) {
	switch key {
	case KeyBacklight:
		return c.Backlight, nil
	case KeyInverting:
		return c.Inverting, nil
	case KeyActive:
		return c.Active, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}
}

// Set assigns the named option.
// Returns ErrUnknownConfigKey for unrecognised names.
func (c *Config) Set(key string, value bool) error {
	switch key {
	case KeyBacklight:
		c.Backlight = value
	case KeyInverting:
		c.Inverting = value
	case KeyActive:
		c.Active = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}
	return nil
}

// Map returns the options as a key → value mapping, restricted to the given
// keys. A nil or empty keys slice selects all options.
func (c *Config) Map(keys []string) map[string]bool {
	selected := keys
	if len(selected) == 0 {
		selected = configKeys
	}
	out := make(map[string]bool, len(selected))
	for _, key := range selected {
		if v, err := c.Get(key); err == nil {
			out[key] = v
		}
	}
	return out
}
