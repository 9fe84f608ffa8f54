package hardware

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// settleDelay gives the address mux time to latch after the select lines
// change before any payload bytes hit the wire.
const settleDelay = 2 * time.Millisecond

// port is the subset of the serial port the bus needs. Narrowing the
// dependency here keeps the bus testable without hardware attached.
type port interface {
	io.WriteCloser
	SetDTR(bool) error
	SetRTS(bool) error
}

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger discards all log messages.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Bus is the shared serial link connecting all panel controllers.
//
// A single write mutex serializes access: only one panel transaction is on
// the wire at a time, and the DTR/RTS select lines stay stable for the full
// duration of that transaction.
type Bus struct {
	mu     sync.Mutex
	port   port
	closed bool
	logger Logger

	// lastAddr tracks the currently latched mux address so repeated
	// writes to the same panel skip the settle delay. -1 means unknown.
	lastAddr int
}

// Open opens the serial port at the given path and wraps it in a Bus.
//
// Parameters:
//   - path: serial device path, e.g. /dev/ttyUSB0
//   - baud: line speed in bits per second
//   - logger: optional logger, may be nil
func Open(path string, baud int, logger Logger) (*Bus, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	p, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("hardware: open %s: %w", path, err)
	}

	logger.Debug("serial port opened", "path", path, "baud", baud)

	return &Bus{port: p, logger: logger, lastAddr: -1}, nil
}

// Close releases the serial port. Further writes fail with ErrPortClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	return b.port.Close()
}

// write selects the panel at addr on the mux lines and sends one framed
// command. It holds the bus for the whole transaction.
func (b *Bus) write(addr int, frame []byte) error {
	if addr < 0 || addr > 3 {
		return fmt.Errorf("%w: %d", ErrBadAddress, addr)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrPortClosed
	}

	if addr != b.lastAddr {
		// Address bit 0 rides on DTR, bit 1 on RTS.
		if err := b.port.SetDTR(addr&0x01 != 0); err != nil {
			return fmt.Errorf("hardware: set DTR: %w", err)
		}
		if err := b.port.SetRTS(addr&0x02 != 0); err != nil {
			return fmt.Errorf("hardware: set RTS: %w", err)
		}
		b.lastAddr = addr
		time.Sleep(settleDelay)
	}

	if _, err := b.port.Write(frame); err != nil {
		// Force a re-select next time; the mux state is unknown after
		// a failed transaction.
		b.lastAddr = -1
		return fmt.Errorf("hardware: write: %w", err)
	}

	return nil
}
