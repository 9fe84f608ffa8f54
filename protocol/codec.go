package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const (
	// headerLen is the size of the decimal length prefix.
	headerLen = 5

	// maxPayload is the largest body a five-digit header can describe.
	maxPayload = 99999
)

// Read decodes one request from r: a five-digit zero-padded decimal length
// header followed by exactly that many bytes of JSON.
//
// The JSON value may be a single envelope or a list of envelopes (a batch).
// Both forms are returned as a slice; batch reports whether the client sent
// a list, which only matters for logging.
//
// Returns ErrBadHeader, ErrTruncated or ErrBadPayload (wrapped with detail)
// on malformed input. All of these are connection-fatal.
func Read(r io.Reader) (envs []Envelope, batch bool, err error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, false, fmt.Errorf("%w: reading length header: %v", ErrBadHeader, err)
	}

	length := 0
	for _, c := range header {
		if c < '0' || c > '9' {
			return nil, false, fmt.Errorf("%w: %q", ErrBadHeader, header)
		}
		length = length*10 + int(c-'0')
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, false, fmt.Errorf("%w: expected %d bytes: %v", ErrTruncated, length, err)
	}

	switch firstToken(payload) {
	case '[':
		if err := json.Unmarshal(payload, &envs); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return envs, true, nil
	default:
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return []Envelope{env}, false, nil
	}
}

// ReadRaw decodes one length-prefixed frame from r and returns the payload
// without interpreting it. The client library uses this to read replies,
// whose shape depends on the request that produced them.
func ReadRaw(r io.Reader) (json.RawMessage, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: reading length header: %v", ErrBadHeader, err)
	}

	length := 0
	for _, c := range header {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("%w: %q", ErrBadHeader, header)
		}
		length = length*10 + int(c-'0')
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: expected %d bytes: %v", ErrTruncated, length, err)
	}

	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrBadPayload)
	}
	return payload, nil
}

// Write encodes v as JSON and sends it prefixed with its five-digit length
// header. Exactly one JSON object is sent per connection.
func Write(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("protocol: encoding reply: %w", err)
	}
	if len(body) > maxPayload {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(body))
	}

	buf := make([]byte, 0, headerLen+len(body))
	buf = fmt.Appendf(buf, "%05d", len(body))
	buf = append(buf, body...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: writing reply: %w", err)
	}
	return nil
}

// firstToken returns the first non-whitespace byte of the payload, or 0 if
// the payload is all whitespace.
func firstToken(payload []byte) byte {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
