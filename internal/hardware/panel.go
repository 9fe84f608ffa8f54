package hardware

import (
	"fmt"

	"github.com/Mezgrman/flipdot/protocol"
)

// Panel drives one flip-dot panel on the shared bus. It satisfies the
// controller contract the scheduler commits frames through.
type Panel struct {
	bus     *Bus
	width   int
	height  int
	address int
}

// Panel returns a controller for the panel at the given bus address.
func (b *Bus) Panel(width, height, address int) *Panel {
	return &Panel{bus: b, width: width, height: height, address: address}
}

// SetBacklight switches the panel's backlight on or off.
func (p *Panel) SetBacklight(on bool) error {
	return p.bus.write(p.address, buildOption(optBacklight, on))
}

// SetInverting switches inverted rendering on or off.
func (p *Panel) SetInverting(on bool) error {
	return p.bus.write(p.address, buildOption(optInverting, on))
}

// SetActive switches the panel between active and blanked.
func (p *Panel) SetActive(on bool) error {
	return p.bus.write(p.address, buildOption(optActive, on))
}

// Commit sends a full frame to the panel. The bitmap must match the panel's
// configured dimensions exactly.
func (p *Panel) Commit(frame protocol.Bitmap) error {
	if len(frame) != p.height {
		return fmt.Errorf("%w: got %d rows, want %d", ErrFrameSize, len(frame), p.height)
	}
	for _, row := range frame {
		if len(row) != p.width {
			return fmt.Errorf("%w: got %d columns, want %d", ErrFrameSize, len(row), p.width)
		}
	}

	return p.bus.write(p.address, buildFrame(packColumns(frame, p.width, p.height)))
}
