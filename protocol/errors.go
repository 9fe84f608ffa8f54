package protocol

import "errors"

// Wire-level errors. All of them are connection-fatal: the server drops the
// offending connection without sending a reply.
//
// They can be checked with errors.Is():
//
//	if errors.Is(err, protocol.ErrBadHeader) {
//	    // malformed length prefix
//	}
var (
	// ErrBadHeader is returned when the five-byte length prefix is not
	// exactly five ASCII decimal digits.
	ErrBadHeader = errors.New("protocol: malformed length header")

	// ErrTruncated is returned when the connection closes before the number
	// of payload bytes declared in the header has arrived.
	ErrTruncated = errors.New("protocol: truncated payload")

	// ErrBadPayload is returned when the payload is not valid JSON or does
	// not decode into an envelope or a list of envelopes.
	ErrBadPayload = errors.New("protocol: invalid payload")

	// ErrTooLarge is returned by Write when the serialized reply exceeds
	// what a five-digit length header can describe.
	ErrTooLarge = errors.New("protocol: payload too large")
)

// Validation errors for message bodies. These are reported back to the
// caller as a failed reply, never as a dropped connection.
var (
	// ErrBadMessageType is returned when a message carries an unknown type tag.
	ErrBadMessageType = errors.New("protocol: invalid message type")

	// ErrBadSubmessageType is returned when a submessage carries an unknown type tag.
	ErrBadSubmessageType = errors.New("protocol: invalid submessage type")

	// ErrNestedSequence is returned when a sequence message contains another sequence.
	ErrNestedSequence = errors.New("protocol: nesting of sequence messages is not allowed")

	// ErrNoDuration is returned when a sequence member has no duration and
	// the sequence has no default interval to fall back to.
	ErrNoDuration = errors.New("protocol: sequence member has no duration and no default interval was given")

	// ErrBadRefreshInterval is returned when a refresh interval is neither
	// a number of seconds nor the literal "minute".
	ErrBadRefreshInterval = errors.New(`protocol: refresh interval must be a number or "minute"`)
)
