package hardware

import "errors"

var (
	// ErrPortClosed is returned when an operation is attempted on a bus
	// whose serial port has been closed.
	ErrPortClosed = errors.New("hardware: serial port closed")

	// ErrBadAddress is returned when a panel address does not fit the
	// two select lines.
	ErrBadAddress = errors.New("hardware: panel address out of range")

	// ErrFrameSize is returned when a bitmap does not match the panel's
	// configured dimensions.
	ErrFrameSize = errors.New("hardware: frame does not match panel dimensions")
)
