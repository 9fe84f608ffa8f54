package protocol

import "encoding/json"

// Request type tags carried in the envelope's "type" field.
const (
	TypeControl       = "control"
	TypeData          = "data"
	TypeQueryConfig   = "query-config"
	TypeQueryHWConfig = "query-hwconfig"
	TypeQueryMessage  = "query-message"
	TypeQueryBitmap   = "query-bitmap"
)

// Envelope is one decoded protocol request.
//
// Which fields are meaningful depends on Type: control and data address a
// single display and carry a message body; the query types take optional
// display and key filters.
type Envelope struct {
	Type     string          `json:"type"`
	Display  string          `json:"display,omitempty"`
	Message  json.RawMessage `json:"message,omitempty"`
	Displays []string        `json:"displays,omitempty"`
	Keys     []string        `json:"keys,omitempty"`
}

// Reply is the single JSON object sent back on a connection.
//
// Mutating requests produce {"success": bool, "error": string|null}; queries
// produce their result payload directly, with no success wrapper.
type Reply struct {
	ok      bool
	errMsg  string
	payload any
	isQuery bool
}

// OK returns a successful mutation reply.
func OK() Reply {
	return Reply{ok: true}
}

// Failure returns a failed mutation reply carrying an error description.
func Failure(errMsg string) Reply {
	return Reply{errMsg: errMsg}
}

// Result returns a query reply whose payload is serialized directly.
func Result(payload any) Reply {
	return Reply{ok: true, payload: payload, isQuery: true}
}

// Failed reports whether this reply terminates a batch. Query replies never
// fail; they carry no success flag at all.
func (r Reply) Failed() bool {
	return !r.isQuery && !r.ok
}

// Err returns the error description of a failed mutation reply, or "".
func (r Reply) Err() string {
	return r.errMsg
}

// Payload returns the query payload, or nil for mutation replies.
func (r Reply) Payload() any {
	return r.payload
}

// MarshalJSON serializes the reply in its wire form.
func (r Reply) MarshalJSON() ([]byte, error) {
	if r.isQuery {
		return json.Marshal(r.payload)
	}
	wire := struct {
		Success bool    `json:"success"`
		Error   *string `json:"error"`
	}{Success: r.ok}
	if r.errMsg != "" {
		wire.Error = &r.errMsg
	}
	return json.Marshal(wire)
}
