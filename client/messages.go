package client

import (
	"encoding/json"
	"fmt"

	"github.com/Mezgrman/flipdot/protocol"
)

// SingleMessage builds a single-frame message from submessages. A duration
// of 0 means the message carries none; that only matters inside sequences.
func SingleMessage(duration float64, subs ...protocol.Submessage) protocol.Message {
	msg := protocol.Message{
		Type:        protocol.MessageSingle,
		Submessages: subs,
	}
	if duration > 0 {
		msg.Duration = &duration
	}
	return msg
}

// SequenceMessage builds a rotating sequence. interval is the fallback
// duration, in seconds, for members without one of their own; pass 0 when
// every member has its own duration.
//
// The sequence is validated before it is returned, so nesting errors and
// unresolvable durations surface at build time rather than at the server.
func SequenceMessage(interval float64, members ...protocol.Message) (protocol.Message, error) {
	msg := protocol.Message{
		Type:     protocol.MessageSequence,
		Messages: members,
	}
	if interval > 0 {
		msg.Interval = &interval
	}
	if err := msg.Validate(); err != nil {
		return protocol.Message{}, fmt.Errorf("client: %w", err)
	}
	return msg, nil
}

// BitmapSubmessage builds a raw bitmap submessage.
func BitmapSubmessage(bitmap protocol.Bitmap) protocol.Submessage {
	return protocol.Submessage{
		Type:   protocol.SubmessageBitmap,
		Bitmap: bitmap,
	}
}

// GraphicsSubmessage builds a graphics call submessage. refresh may be the
// zero value for content that never changes on its own.
func GraphicsSubmessage(fn string, params map[string]any, refresh protocol.RefreshInterval) protocol.Submessage {
	return protocol.Submessage{
		Type:            protocol.SubmessageGraphics,
		Func:            fn,
		Params:          params,
		RefreshInterval: refresh,
	}
}

// AddData queues a data message for a display.
func (c *Client) AddData(display string, msg protocol.Message) error {
	env, err := dataEnvelope(display, msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.queue = append(c.queue, env)
	c.mu.Unlock()
	return nil
}

// AddControl queues a configuration change for a display.
func (c *Client) AddControl(display string, cfg map[string]bool) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("client: encoding config: %w", err)
	}

	c.mu.Lock()
	c.queue = append(c.queue, protocol.Envelope{
		Type:    protocol.TypeControl,
		Display: display,
		Message: body,
	})
	c.mu.Unlock()
	return nil
}

// ClearContent queues a null data message, removing the display's content.
func (c *Client) ClearContent(display string) {
	c.mu.Lock()
	c.queue = append(c.queue, protocol.Envelope{
		Type:    protocol.TypeData,
		Display: display,
		Message: json.RawMessage("null"),
	})
	c.mu.Unlock()
}

// StageBitmap stages a bitmap submessage for a display. Staged submessages
// for the same display merge into one single message at Commit.
func (c *Client) StageBitmap(display string, bitmap protocol.Bitmap) {
	c.stage(display, BitmapSubmessage(bitmap))
}

// StageGraphics stages a graphics submessage for a display.
func (c *Client) StageGraphics(display, fn string, params map[string]any, refresh protocol.RefreshInterval) {
	c.stage(display, GraphicsSubmessage(fn, params, refresh))
}

func (c *Client) stage(display string, sub protocol.Submessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.staged[display]; !ok {
		c.order = append(c.order, display)
	}
	c.staged[display] = append(c.staged[display], sub)
}

// SetBacklight queues a backlight change. Call Commit to apply.
func (c *Client) SetBacklight(display string, on bool) error {
	return c.AddControl(display, map[string]bool{"backlight": on})
}

// SetInverting queues an inverting change. Call Commit to apply.
func (c *Client) SetInverting(display string, on bool) error {
	return c.AddControl(display, map[string]bool{"inverting": on})
}

// SetActive queues an active change. Call Commit to apply.
func (c *Client) SetActive(display string, on bool) error {
	return c.AddControl(display, map[string]bool{"active": on})
}
