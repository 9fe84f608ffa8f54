package client

import (
	"encoding/json"
	"fmt"

	"github.com/Mezgrman/flipdot/protocol"
)

// Hardware describes one display's panel as reported by the server.
type Hardware struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Address int `json:"address"`
}

// query sends a query envelope and decodes its payload into out. A failed
// query (unknown display id) comes back as a success/error object instead
// of the payload; that surfaces here as ErrRejected.
func (c *Client) query(env protocol.Envelope, out any) error {
	raw, err := c.SendRaw(env)
	if err != nil {
		return err
	}

	// Probe for a failure reply before decoding the payload shape.
	var a ack
	if err := json.Unmarshal(raw, &a); err == nil && a.Error != nil {
		return fmt.Errorf("%w: %s", ErrRejected, *a.Error)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decoding query reply: %w", err)
	}
	return nil
}

// GetConfig returns the configuration of the given displays, or of all
// displays when displays is nil. keys narrows the reported options.
func (c *Client) GetConfig(displays, keys []string) (map[string]map[string]bool, error) {
	var out map[string]map[string]bool
	err := c.query(protocol.Envelope{
		Type:     protocol.TypeQueryConfig,
		Displays: displays,
		Keys:     keys,
	}, &out)
	return out, err
}

// GetHardwareConfig returns the panel geometry of every display.
func (c *Client) GetHardwareConfig() (map[string]Hardware, error) {
	var out map[string]Hardware
	err := c.query(protocol.Envelope{Type: protocol.TypeQueryHWConfig}, &out)
	return out, err
}

// GetMessage returns the currently assigned message per display; displays
// with no content map to nil.
func (c *Client) GetMessage(displays []string) (map[string]*protocol.Message, error) {
	var out map[string]*protocol.Message
	err := c.query(protocol.Envelope{
		Type:     protocol.TypeQueryMessage,
		Displays: displays,
	}, &out)
	return out, err
}

// GetBitmap returns the last rendered frame per display; displays that have
// never rendered map to nil.
func (c *Client) GetBitmap(displays []string) (map[string]protocol.Bitmap, error) {
	var out map[string]protocol.Bitmap
	err := c.query(protocol.Envelope{
		Type:     protocol.TypeQueryBitmap,
		Displays: displays,
	}, &out)
	return out, err
}
