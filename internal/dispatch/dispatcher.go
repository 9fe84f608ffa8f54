// Package dispatch interprets decoded protocol envelopes against the
// display registry and produces reply envelopes.
//
// The dispatcher is the only component that mutates display config and
// content from the network side; the scheduler picks the mutations up on
// its next tick. Every accepted mutation triggers a state save through the
// Saver collaborator.
package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Mezgrman/flipdot/internal/display"
	"github.com/Mezgrman/flipdot/protocol"
)

// Saver persists the current config and content of all displays. It is
// called after every successful control or data request.
type Saver interface {
	Save() error
}

// Logger defines the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher processes request envelopes against the display registry.
//
// Process and ProcessBatch are safe for concurrent use; per-display state is
// guarded by the display locks. In practice the acceptor serializes calls
// because it handles one connection at a time.
type Dispatcher struct {
	registry *display.Registry
	saver    Saver
	logger   Logger
}

// New creates a dispatcher. saver may be nil (persistence disabled, used by
// tests); logger may be nil.
func New(registry *display.Registry, saver Saver, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{registry: registry, saver: saver, logger: logger}
}

// ProcessBatch processes envelopes strictly in order, stopping at the first
// reply that reports failure. The returned reply is the one for the last
// request processed; earlier successful side effects are not rolled back.
func (p *Dispatcher) ProcessBatch(envs []protocol.Envelope) protocol.Reply {
	reply := protocol.OK()
	for i := range envs {
		reply = p.Process(envs[i])
		if reply.Failed() {
			break
		}
	}
	return reply
}

// Process interprets one request envelope and returns its reply.
//
// Validation failures (unknown display, unknown config key, malformed
// message body, unknown request type) are reported in the reply and never
// crash the process.
func (p *Dispatcher) Process(env protocol.Envelope) protocol.Reply {
	switch env.Type {
	case protocol.TypeControl:
		return p.control(env)
	case protocol.TypeData:
		return p.data(env)
	case protocol.TypeQueryConfig:
		return p.queryConfig(env)
	case protocol.TypeQueryHWConfig:
		return protocol.Result(p.registry.HardwareMap())
	case protocol.TypeQueryMessage:
		return p.queryMessage(env)
	case protocol.TypeQueryBitmap:
		return p.queryBitmap(env)
	default:
		return protocol.Failure(fmt.Sprintf("Invalid message type: %s", env.Type))
	}
}

// control applies config option changes to one display. Either all listed
// keys are valid and every differing value is recorded and marked pending,
// or nothing is applied at all.
func (p *Dispatcher) control(env protocol.Envelope) protocol.Reply {
	d, err := p.registry.Get(env.Display)
	if err != nil {
		return protocol.Failure(fmt.Sprintf("Invalid display: %s", env.Display))
	}

	changes, err := decodeConfigValues(env.Message)
	if err != nil {
		return protocol.Failure(err.Error())
	}

	if err := d.ApplyConfig(changes); err != nil {
		// Name the offending key the way the original protocol did.
		return protocol.Failure(fmt.Sprintf("Invalid configuration option: %s", unknownKey(d, changes)))
	}

	p.logger.Debug("config updated", "display", d.ID, "changes", changes)
	p.saveState()
	return protocol.OK()
}

// data replaces a display's content wholesale.
func (p *Dispatcher) data(env protocol.Envelope) protocol.Reply {
	d, err := p.registry.Get(env.Display)
	if err != nil {
		return protocol.Failure(fmt.Sprintf("Invalid display: %s", env.Display))
	}

	// A null body clears the display's content. This also makes replaying a
	// saved state file with never-assigned displays a no-op rather than an
	// error.
	if isJSONNull(env.Message) {
		d.SetMessage(nil)
		p.saveState()
		return protocol.OK()
	}

	var msg protocol.Message
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		return protocol.Failure(fmt.Sprintf("Invalid message body: %v", err))
	}
	if err := msg.Validate(); err != nil {
		return protocol.Failure(err.Error())
	}
	if name, ok := unsupportedGraphics(d, &msg); !ok {
		return protocol.Failure(fmt.Sprintf("Invalid graphics function: %s", name))
	}

	d.SetMessage(&msg)
	p.logger.Debug("message replaced", "display", d.ID, "type", msg.Type)
	p.saveState()
	return protocol.OK()
}

func (p *Dispatcher) queryConfig(env protocol.Envelope) protocol.Reply {
	ids, reply := p.resolveDisplays(env.Displays)
	if reply != nil {
		return *reply
	}
	out := make(map[string]map[string]bool, len(ids))
	for _, id := range ids {
		d, _ := p.registry.Get(id)
		out[id] = d.ConfigSnapshot(env.Keys)
	}
	return protocol.Result(out)
}

func (p *Dispatcher) queryMessage(env protocol.Envelope) protocol.Reply {
	ids, reply := p.resolveDisplays(env.Displays)
	if reply != nil {
		return *reply
	}
	out := make(map[string]*protocol.Message, len(ids))
	for _, id := range ids {
		d, _ := p.registry.Get(id)
		out[id] = d.CurrentMessage()
	}
	return protocol.Result(out)
}

func (p *Dispatcher) queryBitmap(env protocol.Envelope) protocol.Reply {
	ids, reply := p.resolveDisplays(env.Displays)
	if reply != nil {
		return *reply
	}
	out := make(map[string]protocol.Bitmap, len(ids))
	for _, id := range ids {
		d, _ := p.registry.Get(id)
		out[id] = d.CachedBitmap()
	}
	return protocol.Result(out)
}

// resolveDisplays expands an optional display filter, defaulting to all
// displays, and rejects unknown ids with a failure reply.
func (p *Dispatcher) resolveDisplays(requested []string) ([]string, *protocol.Reply) {
	if len(requested) == 0 {
		return p.registry.IDs(), nil
	}
	for _, id := range requested {
		if _, err := p.registry.Get(id); err != nil {
			reply := protocol.Failure(fmt.Sprintf("Invalid display: %s", id))
			return nil, &reply
		}
	}
	return requested, nil
}

// saveState persists config and content after an accepted mutation. Save
// failures are logged, never reported to the caller: the mutation itself
// has already taken effect.
func (p *Dispatcher) saveState() {
	if p.saver == nil {
		return
	}
	if err := p.saver.Save(); err != nil {
		p.logger.Error("saving state failed", "error", err)
	}
}

// isJSONNull reports whether raw is absent or the JSON null literal.
func isJSONNull(raw json.RawMessage) bool {
	trimmed := string(bytes.TrimSpace(raw))
	return trimmed == "" || trimmed == "null"
}

// decodeConfigValues decodes a control message body into option → bool.
// Values may be JSON booleans or numbers (non-zero = true), matching the
// boolean-like values older clients send.
func decodeConfigValues(raw json.RawMessage) (map[string]bool, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("Invalid control body: %v", err)
	}
	out := make(map[string]bool, len(body))
	for key, v := range body {
		switch v := v.(type) {
		case bool:
			out[key] = v
		case float64:
			out[key] = v != 0
		default:
			return nil, fmt.Errorf("Invalid value for configuration option %s: %v", key, v)
		}
	}
	return out, nil
}

// unknownKey returns the first key of changes the display does not
// recognise. Used only to build the error reply after ApplyConfig rejected
// the request.
func unknownKey(d *display.Display, changes map[string]bool) string {
	snapshot := d.ConfigSnapshot(nil)
	for key := range changes {
		if _, ok := snapshot[key]; !ok {
			return key
		}
	}
	return ""
}

// unsupportedGraphics returns the first graphics function name in the
// message that the display's renderer does not provide. Messages are
// rejected up front instead of failing reflectively inside the render loop.
func unsupportedGraphics(d *display.Display, msg *protocol.Message) (string, bool) {
	if d.Renderer == nil {
		return "", true
	}
	check := func(subs []protocol.Submessage) (string, bool) {
		for i := range subs {
			if subs[i].Type == protocol.SubmessageGraphics && !d.Renderer.Supports(subs[i].Func) {
				return subs[i].Func, false
			}
		}
		return "", true
	}
	if msg.Type == protocol.MessageSequence {
		for i := range msg.Messages {
			if name, ok := check(msg.Messages[i].Submessages); !ok {
				return name, false
			}
		}
		return "", true
	}
	return check(msg.Submessages)
}
