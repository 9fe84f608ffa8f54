package protocol

import (
	"encoding/json"
	"fmt"
)

// Message type tags.
const (
	MessageSingle   = "single"
	MessageSequence = "sequence"
)

// Submessage type tags.
const (
	SubmessageBitmap   = "bitmap"
	SubmessageGraphics = "graphics"
)

// Bitmap is a rendered frame as a 2-D pixel grid, one row per inner slice,
// with 0 for an unset dot and 1 for a set dot. The server treats it as an
// opaque handle between the renderer and the hardware.
type Bitmap [][]int

// Message is the content assigned to a display: either a single frame built
// from submessages, or a sequence rotating among several single messages.
//
// The variant is selected by Type; only the fields belonging to the active
// variant are meaningful.
type Message struct {
	Type string `json:"type"`

	// Single variant.
	Duration    *float64     `json:"duration,omitempty"`
	Submessages []Submessage `json:"submessages,omitempty"`

	// Sequence variant. Interval is the default duration, in seconds, for
	// members that carry none of their own.
	Interval *float64  `json:"interval,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// Validate checks the message against the schema: known type tags, no
// sequence nested inside a sequence, and every sequence member resolving a
// duration either of its own or via the sequence interval.
func (m *Message) Validate() error {
	switch m.Type {
	case MessageSingle:
		return validateSubmessages(m.Submessages)
	case MessageSequence:
		if len(m.Messages) == 0 {
			return fmt.Errorf("%w: sequence without messages", ErrBadPayload)
		}
		for i := range m.Messages {
			member := &m.Messages[i]
			if member.Type != MessageSingle {
				if member.Type == MessageSequence {
					return ErrNestedSequence
				}
				return fmt.Errorf("%w: %q", ErrBadMessageType, member.Type)
			}
			if memberDuration(member, m) <= 0 {
				return fmt.Errorf("%w (member %d)", ErrNoDuration, i)
			}
			if err := validateSubmessages(member.Submessages); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrBadMessageType, m.Type)
	}
}

// MemberDuration resolves how long sequence member i stays on the display,
// in seconds. A missing or zero member duration falls back to the sequence
// interval.
func (m *Message) MemberDuration(i int) float64 {
	return memberDuration(&m.Messages[i], m)
}

func memberDuration(member, seq *Message) float64 {
	if member.Duration != nil && *member.Duration > 0 {
		return *member.Duration
	}
	if seq.Interval != nil {
		return *seq.Interval
	}
	return 0
}

func validateSubmessages(subs []Submessage) error {
	for i := range subs {
		if err := subs[i].Validate(); err != nil {
			return fmt.Errorf("submessage %d: %w", i, err)
		}
	}
	return nil
}

// Submessage is one drawing instruction contributing to a rendered frame:
// either a raw bitmap blitted at the image origin, or a named graphics call
// evaluated by the renderer.
type Submessage struct {
	Type string `json:"type"`

	// Bitmap variant.
	Bitmap Bitmap `json:"bitmap,omitempty"`

	// Graphics variant.
	Func            string          `json:"func,omitempty"`
	Params          map[string]any  `json:"params,omitempty"`
	RefreshInterval RefreshInterval `json:"refresh_interval,omitzero"`
}

// Validate checks the submessage's type tag and variant fields.
func (s *Submessage) Validate() error {
	switch s.Type {
	case SubmessageBitmap:
		if s.Bitmap == nil {
			return fmt.Errorf("%w: bitmap submessage without bitmap", ErrBadPayload)
		}
		return nil
	case SubmessageGraphics:
		if s.Func == "" {
			return fmt.Errorf("%w: graphics submessage without function name", ErrBadPayload)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrBadSubmessageType, s.Type)
	}
}

// RefreshInterval describes how often a graphics submessage must be
// regenerated: a number of seconds, or the literal "minute" token meaning
// every wall-clock minute boundary. The zero value means no periodic
// refresh.
type RefreshInterval struct {
	Seconds float64
	Minute  bool
}

// IsZero reports whether no periodic refresh was requested.
func (r RefreshInterval) IsZero() bool {
	return !r.Minute && r.Seconds == 0
}

// UnmarshalJSON accepts a number, the string "minute", or null.
func (r *RefreshInterval) UnmarshalJSON(data []byte) error {
	*r = RefreshInterval{}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRefreshInterval, err)
	}
	switch v := v.(type) {
	case nil:
		return nil
	case float64:
		if v < 0 {
			return fmt.Errorf("%w: %v", ErrBadRefreshInterval, v)
		}
		r.Seconds = v
		return nil
	case string:
		if v != "minute" {
			return fmt.Errorf("%w: %q", ErrBadRefreshInterval, v)
		}
		r.Minute = true
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrBadRefreshInterval, v)
	}
}

// MarshalJSON emits the wire form accepted by UnmarshalJSON.
func (r RefreshInterval) MarshalJSON() ([]byte, error) {
	switch {
	case r.Minute:
		return json.Marshal("minute")
	case r.Seconds > 0:
		return json.Marshal(r.Seconds)
	default:
		return []byte("null"), nil
	}
}
