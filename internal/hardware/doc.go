// Package hardware drives the physical panel controllers over one shared
// serial link.
//
// All panels hang off a single serial port; the active panel is selected by
// its bus address, encoded on the port's DTR and RTS modem lines. The Bus
// serializes every write with a mutex so calls for different panels never
// interleave on the wire, and inserts a short settle delay after switching
// the select lines.
//
// Panel implements the controller contract consumed by the scheduler
// (option setters plus frame commit). The byte framing matches the panel
// controller firmware: a start byte, a command byte, a length byte and the
// payload.
//
// Noop is a stand-in controller used when no serial port is configured,
// letting the server run against real clients without hardware attached.
package hardware
