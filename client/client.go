// Package client is a Go client for the flipdot display server's TCP
// protocol.
//
// The client is connectionless: every request dials the server, sends one
// length-prefixed JSON frame, reads one reply frame and closes. Mutations
// can be queued and sent together as a batch with Commit; queries go out
// immediately.
//
//	c := client.New("sign.local")
//	c.StageGraphics("front", "time", map[string]any{"format": "%H:%M"},
//	    protocol.RefreshInterval{Minute: true})
//	if err := c.Commit(); err != nil {
//	    log.Fatal(err)
//	}
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/Mezgrman/flipdot/protocol"
)

// Defaults matching the server.
const (
	DefaultPort    = 1810
	defaultTimeout = 3 * time.Second
)

var (
	// ErrEmptyQueue is returned by Commit when nothing was queued.
	ErrEmptyQueue = errors.New("client: nothing queued")

	// ErrRejected is returned when the server reports a failed batch.
	ErrRejected = errors.New("client: request rejected")
)

// Client talks to one flipdot server.
//
// Thread Safety:
//   - All methods are safe for concurrent use; the queue is guarded by a
//     mutex and each request uses its own connection.
type Client struct {
	host    string
	port    int
	timeout time.Duration

	mu     sync.Mutex
	queue  []protocol.Envelope
	staged map[string][]protocol.Submessage
	order  []string // staging order of display IDs, for deterministic batches
}

// Option customises a Client.
type Option func(*Client)

// WithPort overrides the default server port.
func WithPort(port int) Option {
	return func(c *Client) { c.port = port }
}

// WithTimeout overrides the per-request dial/read/write timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a client for the server at host.
func New(host string, opts ...Option) *Client {
	c := &Client{
		host:    host,
		port:    DefaultPort,
		timeout: defaultTimeout,
		staged:  make(map[string][]protocol.Submessage),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendRaw sends one request value and returns the raw reply payload.
//
// Most callers want the typed helpers; SendRaw exists for requests the
// helpers don't cover.
func (c *Client) SendRaw(v any) (json.RawMessage, error) {
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dialing %s: %w", addr, err)
	}
	defer conn.Close() //nolint:errcheck // one-shot connection

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("client: setting deadline: %w", err)
	}

	if err := protocol.Write(conn, v); err != nil {
		return nil, err
	}

	return protocol.ReadRaw(conn)
}

// ack is the client-side view of a mutation reply.
type ack struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

// sendAck sends a request that produces a success/error reply.
func (c *Client) sendAck(v any) error {
	raw, err := c.SendRaw(v)
	if err != nil {
		return err
	}

	var a ack
	if err := json.Unmarshal(raw, &a); err != nil {
		return fmt.Errorf("client: decoding reply: %w", err)
	}
	if !a.Success {
		msg := "unspecified error"
		if a.Error != nil {
			msg = *a.Error
		}
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return nil
}

// ClearQueue discards all queued messages and staged submessages.
func (c *Client) ClearQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = nil
	c.staged = make(map[string][]protocol.Submessage)
	c.order = nil
}

// Commit folds staged submessages into single messages, sends the whole
// queue as one batch and clears it on success. On a server-reported failure
// the queue is kept so the caller can inspect or retry it.
func (c *Client) Commit() error {
	c.mu.Lock()
	for _, display := range c.order {
		env, err := dataEnvelope(display, SingleMessage(0, c.staged[display]...))
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.queue = append(c.queue, env)
	}
	c.staged = make(map[string][]protocol.Submessage)
	c.order = nil

	if len(c.queue) == 0 {
		c.mu.Unlock()
		return ErrEmptyQueue
	}
	batch := make([]protocol.Envelope, len(c.queue))
	copy(batch, c.queue)
	c.mu.Unlock()

	if err := c.sendAck(batch); err != nil {
		return err
	}

	c.mu.Lock()
	c.queue = nil
	c.mu.Unlock()
	return nil
}

// dataEnvelope wraps a message in a data envelope for one display.
func dataEnvelope(display string, msg protocol.Message) (protocol.Envelope, error) {
	body, err := json.Marshal(&msg)
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("client: encoding message: %w", err)
	}
	return protocol.Envelope{
		Type:    protocol.TypeData,
		Display: display,
		Message: body,
	}, nil
}
