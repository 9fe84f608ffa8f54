package hardware

import "github.com/Mezgrman/flipdot/protocol"

// Noop is a controller that accepts everything and drives nothing. It is
// installed when the server runs without a serial port configured, so the
// protocol surface and scheduler behave normally during development.
type Noop struct {
	id     string
	logger Logger
}

// NewNoop returns a no-op controller for the named display.
func NewNoop(id string, logger Logger) *Noop {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Noop{id: id, logger: logger}
}

func (n *Noop) SetBacklight(on bool) error {
	n.logger.Debug("noop controller: backlight", "display", n.id, "on", on)
	return nil
}

func (n *Noop) SetInverting(on bool) error {
	n.logger.Debug("noop controller: inverting", "display", n.id, "on", on)
	return nil
}

func (n *Noop) SetActive(on bool) error {
	n.logger.Debug("noop controller: active", "display", n.id, "on", on)
	return nil
}

func (n *Noop) Commit(frame protocol.Bitmap) error {
	n.logger.Debug("noop controller: commit", "display", n.id, "rows", len(frame))
	return nil
}
