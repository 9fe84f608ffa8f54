package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Mezgrman/flipdot/protocol"
)

// mockHandler records batches and answers with a fixed reply.
type mockHandler struct {
	mu      sync.Mutex
	batches [][]protocol.Envelope
	reply   protocol.Reply
}

func (m *mockHandler) ProcessBatch(envs []protocol.Envelope) protocol.Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, envs)
	return m.reply
}

func (m *mockHandler) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// startServer runs a server on a loopback port and returns its address.
func startServer(t *testing.T, cfg Config, handler Handler) string {
	t.Helper()

	// Pick a free port first so the test can dial deterministically.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := probe.Addr().(*net.TCPAddr).Port
	probe.Close()

	cfg.Host = "127.0.0.1"
	cfg.Port = port
	cfg.AcceptTimeout = 50 * time.Millisecond
	cfg.ReadTimeout = time.Second
	cfg.WriteTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = New(cfg, handler, nil).Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	waitForListener(t, addr)
	return addr
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("listener never came up on %s", addr)
}

func sendFrame(t *testing.T, conn net.Conn, body string) {
	t.Helper()
	if _, err := fmt.Fprintf(conn, "%05d%s", len(body), body); err != nil {
		t.Fatal(err)
	}
}

func readReply(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	header := make([]byte, 5)
	if _, err := io.ReadFull(conn, header); err != nil {
		t.Fatalf("reading reply header: %v", err)
	}
	var length int
	if _, err := fmt.Sscanf(string(header), "%05d", &length); err != nil {
		t.Fatalf("bad reply header %q", header)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		t.Fatalf("reading reply body: %v", err)
	}
	return body
}

func TestServeRequestAndReply(t *testing.T) {
	handler := &mockHandler{reply: protocol.OK()}
	addr := startServer(t, Config{}, handler)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	sendFrame(t, conn, `{"type":"query-hwconfig"}`)
	body := readReply(t, conn)

	var reply struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		t.Fatalf("reply not JSON: %v", err)
	}
	if !reply.Success {
		t.Errorf("reply = %s", body)
	}
	if handler.batchCount() != 1 {
		t.Errorf("handler saw %d batches, want 1", handler.batchCount())
	}
}

func TestServeBatchInOrder(t *testing.T) {
	handler := &mockHandler{reply: protocol.OK()}
	addr := startServer(t, Config{}, handler)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	sendFrame(t, conn, `[{"type":"query-hwconfig"},{"type":"query-message"}]`)
	readReply(t, conn)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.batches) != 1 || len(handler.batches[0]) != 2 {
		t.Fatalf("batches = %+v", handler.batches)
	}
	if handler.batches[0][0].Type != protocol.TypeQueryHWConfig {
		t.Error("batch order not preserved")
	}
}

func TestMalformedRequestGetsNoReply(t *testing.T) {
	handler := &mockHandler{reply: protocol.OK()}
	addr := startServer(t, Config{}, handler)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("XXXXX{}")); err != nil {
		t.Fatal(err)
	}

	// Connection closes without a reply and no state is touched.
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != io.EOF {
		t.Errorf("read after bad request = %v, want EOF", err)
	}
	if handler.batchCount() != 0 {
		t.Error("handler invoked for malformed request")
	}
}

func TestFilteredPeerGetsNoReplyAndNoDispatch(t *testing.T) {
	handler := &mockHandler{reply: protocol.OK()}
	// 127.0.0.1 does not match the 10. prefix.
	addr := startServer(t, Config{AllowedPeerPrefix: "10."}, handler)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	sendFrame(t, conn, `{"type":"control","display":"front","message":{"backlight":true}}`)

	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != io.EOF {
		t.Errorf("read from filtered connection = %v, want EOF", err)
	}
	if handler.batchCount() != 0 {
		t.Error("filtered connection reached the dispatcher")
	}
}

func TestPeerAllowed(t *testing.T) {
	tests := []struct {
		prefix string
		peer   string
		want   bool
	}{
		{"", "203.0.113.9:1234", true},
		{"192.168.", "192.168.1.20:5000", true},
		{"192.168.", "10.0.0.1:5000", false},
		{"192.168.1.20", "192.168.1.20:5000", true},
	}
	for _, tt := range tests {
		s := New(Config{AllowedPeerPrefix: tt.prefix}, nil, nil)
		if got := s.peerAllowed(tt.peer); got != tt.want {
			t.Errorf("peerAllowed(%q) with prefix %q = %v, want %v", tt.peer, tt.prefix, got, tt.want)
		}
	}
}
