// Package server implements the TCP acceptor for the flipdot protocol.
//
// The listener serves one connection at a time: a connection is received,
// decoded, dispatched and answered before the next one is accepted. Accepts
// use a bounded deadline so the loop can observe cancellation between
// connections. An optional peer-address prefix filter silently drains and
// drops connections from unwanted sources.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mezgrman/flipdot/protocol"
)

// Default timeouts for the accept loop and per-connection IO.
const (
	defaultAcceptTimeout = 5 * time.Second
	defaultReadTimeout   = 10 * time.Second
	defaultWriteTimeout  = 5 * time.Second

	// drainTimeout bounds how long a filtered connection's input is drained
	// before the connection is dropped.
	drainTimeout = time.Second
)

// Handler processes a decoded batch of request envelopes and returns the
// single reply to send back.
type Handler interface {
	ProcessBatch(envs []protocol.Envelope) protocol.Reply
}

// Logger defines the logging interface used by the server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config contains the acceptor settings.
type Config struct {
	// Host is the listen address; empty means all interfaces.
	Host string

	// Port is the TCP listen port.
	Port int

	// AllowedPeerPrefix, when non-empty, is a required prefix of the peer
	// IP address. Connections from other peers are drained and dropped
	// without a reply.
	AllowedPeerPrefix string

	// AcceptTimeout bounds each wait for a connection so the loop can
	// observe cancellation. Zero selects the default.
	AcceptTimeout time.Duration

	// ReadTimeout bounds reading one request so a slow or malicious client
	// cannot stall the single-connection listener. Zero selects the
	// default.
	ReadTimeout time.Duration

	// WriteTimeout bounds sending the reply. Zero selects the default.
	WriteTimeout time.Duration
}

// Server accepts flipdot protocol connections and feeds them to a Handler.
type Server struct {
	cfg     Config
	handler Handler
	logger  Logger
}

// New creates a server. logger may be nil.
func New(cfg Config, handler Handler, logger Logger) *Server {
	if cfg.AcceptTimeout <= 0 {
		cfg.AcceptTimeout = defaultAcceptTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Server{cfg: cfg, handler: handler, logger: logger}
}

// Run listens and serves until ctx is cancelled. Connections are handled
// strictly one at a time; a second client waits in the kernel backlog.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listening on %s: %w", addr, err)
	}
	defer listener.Close()

	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("server: unexpected listener type %T", listener)
	}
	s.logger.Info("listening", "addr", listener.Addr().String())

	for {
		if ctx.Err() != nil {
			s.logger.Info("server stopped")
			return ctx.Err()
		}

		if err := tcpListener.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout)); err != nil {
			return fmt.Errorf("server: setting accept deadline: %w", err)
		}
		conn, err := tcpListener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// Normal deadline expiry; loop to re-check cancellation.
				continue
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.handle(conn)
	}
}

// handle serves a single connection: filter, decode, dispatch, reply.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	peer := conn.RemoteAddr().String()

	if !s.peerAllowed(peer) {
		s.logger.Info("discarding connection from filtered peer", "conn", connID, "peer", peer)
		drain(conn)
		return
	}
	s.logger.Debug("connection accepted", "conn", connID, "peer", peer)

	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
		s.logger.Error("setting read deadline failed", "conn", connID, "error", err)
		return
	}
	envs, batch, err := protocol.Read(conn)
	if err != nil {
		// Connection-fatal: drop this connection, send nothing.
		s.logger.Warn("invalid request", "conn", connID, "peer", peer, "error", err)
		return
	}
	s.logger.Debug("request received", "conn", connID, "requests", len(envs), "batch", batch)

	reply := s.handler.ProcessBatch(envs)
	if reply.Failed() {
		s.logger.Warn("request failed", "conn", connID, "error", reply.Err())
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		s.logger.Error("setting write deadline failed", "conn", connID, "error", err)
		return
	}
	if err := protocol.Write(conn, reply); err != nil {
		s.logger.Error("sending reply failed", "conn", connID, "error", err)
	}
}

// peerAllowed applies the optional source-address prefix filter to the
// peer's IP (the port is ignored).
func (s *Server) peerAllowed(peer string) bool {
	if s.cfg.AllowedPeerPrefix == "" {
		return true
	}
	host, _, err := net.SplitHostPort(peer)
	if err != nil {
		host = peer
	}
	return strings.HasPrefix(host, s.cfg.AllowedPeerPrefix)
}

// drain consumes whatever the filtered peer sent, bounded by drainTimeout,
// so the socket closes cleanly without a RST racing the client's write.
func drain(conn net.Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(drainTimeout)); err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, conn)
}
