// Package status publishes display state to MQTT so dashboards can observe
// the signs without speaking the TCP protocol.
//
// Two kinds of message leave this package:
//   - retained per-display state on flipdot/display/<id>/state, refreshed
//     whenever configuration or content changes
//   - non-retained commit events on flipdot/display/<id>/commit, one per
//     frame pushed to the hardware
package status

import (
	"encoding/json"
	"time"

	"github.com/Mezgrman/flipdot/internal/display"
	"github.com/Mezgrman/flipdot/internal/infrastructure/mqtt"
)

// Broker is the publishing surface the status publisher needs.
type Broker interface {
	PublishRetained(topic string, payload []byte) error
	PublishEvent(topic string, payload []byte) error
}

// Logger is the logging interface used by this package.
type Logger interface {
	Warn(msg string, args ...any)
}

// noopLogger discards all log messages.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Publisher mirrors display state onto MQTT topics.
type Publisher struct {
	broker   Broker
	registry *display.Registry
	topics   mqtt.Topics
	logger   Logger
	now      func() time.Time
}

// New creates a Publisher over the given broker and display registry.
// logger may be nil.
func New(broker Broker, registry *display.Registry, logger Logger) *Publisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{
		broker:   broker,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// statePayload is the retained per-display state document.
type statePayload struct {
	Display   string          `json:"display"`
	Config    map[string]bool `json:"config"`
	Content   string          `json:"content"` // "none", "single" or "sequence"
	UpdatedAt string          `json:"updated_at"`
}

// commitPayload is the per-frame commit event document.
type commitPayload struct {
	Display   string  `json:"display"`
	RenderMS  float64 `json:"render_ms"`
	Success   bool    `json:"success"`
	Error     string  `json:"error,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// PublishState publishes the retained state document for one display.
func (p *Publisher) PublishState(id string) {
	d, err := p.registry.Get(id)
	if err != nil {
		return
	}

	content := "none"
	if msg := d.CurrentMessage(); msg != nil {
		content = msg.Type
	}

	payload := statePayload{
		Display:   id,
		Config:    d.ConfigSnapshot(display.ConfigKeys()),
		Content:   content,
		UpdatedAt: p.now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	if err := p.broker.PublishRetained(p.topics.DisplayState(id), body); err != nil {
		p.logger.Warn("publishing display state", "display", id, "error", err)
	}
}

// PublishAll publishes retained state for every registered display.
// Wired to the MQTT client's on-connect callback so a broker restart
// repopulates the retained topics.
func (p *Publisher) PublishAll() {
	for _, id := range p.registry.IDs() {
		p.PublishState(id)
	}
}

// HandleConfigApplied matches the scheduler's ConfigApplied hook. Failed
// setter calls still refresh the retained state; the cached configuration
// already carries the new value.
func (p *Publisher) HandleConfigApplied(displayID, _ string, _ bool, _ error) {
	p.PublishState(displayID)
}

// HandleFrameCommitted matches the scheduler's FrameCommitted hook and
// emits a non-retained commit event.
func (p *Publisher) HandleFrameCommitted(displayID string, renderTime time.Duration, commitErr error) {
	payload := commitPayload{
		Display:   displayID,
		RenderMS:  float64(renderTime.Microseconds()) / 1000.0,
		Success:   commitErr == nil,
		Timestamp: p.now().UTC().Format(time.RFC3339Nano),
	}
	if commitErr != nil {
		payload.Error = commitErr.Error()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	if err := p.broker.PublishEvent(p.topics.DisplayCommit(displayID), body); err != nil {
		p.logger.Warn("publishing commit event", "display", displayID, "error", err)
	}
}
