package hardware

import "github.com/Mezgrman/flipdot/protocol"

// Controller firmware framing: start byte, command, payload length, payload.
const (
	frameStart = 0xFF

	cmdOption = 0xA0
	cmdFrame  = 0xA1
)

// Option identifiers understood by the panel controller firmware.
const (
	optBacklight = 0x01
	optInverting = 0x02
	optActive    = 0x03
)

// buildOption builds a set-option command frame.
func buildOption(opt byte, on bool) []byte {
	v := byte(0x00)
	if on {
		v = 0x01
	}
	return []byte{frameStart, cmdOption, 0x02, opt, v}
}

// buildFrame builds a frame-commit command from a packed column payload.
func buildFrame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+3)
	out = append(out, frameStart, cmdFrame, byte(len(payload)))
	return append(out, payload...)
}

// packColumns packs a bitmap into the controller's column-major wire layout:
// one byte per column per 8-row band, least significant bit at the top.
// Rows beyond the bitmap and non-zero values follow the bitmap as rendered;
// the caller guarantees the dimensions match the panel.
func packColumns(bitmap protocol.Bitmap, width, height int) []byte {
	bands := (height + 7) / 8
	out := make([]byte, width*bands)

	for y, row := range bitmap {
		for x, v := range row {
			if v == 0 {
				continue
			}
			band := y / 8
			out[x*bands+band] |= 1 << (y % 8)
		}
	}

	return out
}
