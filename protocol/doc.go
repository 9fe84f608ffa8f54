// Package protocol implements the wire protocol spoken between flipdot
// clients and the server.
//
// Every request and reply travels over a plain TCP connection as a
// five-digit, zero-padded ASCII decimal length header followed by exactly
// that many bytes of UTF-8 encoded JSON. There is no other framing. The
// decoded JSON value is either a single request envelope or a list of
// envelopes forming a batch that the server processes in order.
//
// # Key Types
//
//   - Envelope: One decoded request (type, display, payload)
//   - Message: Display content, either a single frame or a rotating sequence
//   - Submessage: One drawing instruction (raw bitmap or named graphics call)
//   - RefreshInterval: Seconds, or the literal "minute" for wall-clock
//     minute alignment
//   - Reply: The single JSON object sent back on a connection
//
// # Usage
//
//	envs, batch, err := protocol.Read(conn)
//	if err != nil {
//	    // connection-fatal: drop the connection, send nothing
//	}
//	...
//	err = protocol.Write(conn, reply)
//
// Message and Submessage are tagged variants validated at decode time;
// unknown type tags are rejected before any state is touched.
package protocol
