package client

import (
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/Mezgrman/flipdot/protocol"
)

// cannedServer accepts connections and answers each request with the next
// reply from the list, recording what it received.
type cannedServer struct {
	ln       net.Listener
	requests chan json.RawMessage
}

func newCannedServer(t *testing.T, replies ...any) *cannedServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck // test cleanup

	s := &cannedServer{ln: ln, requests: make(chan json.RawMessage, len(replies))}

	go func() {
		for _, reply := range replies {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			raw, err := protocol.ReadRaw(conn)
			if err == nil {
				s.requests <- raw
				protocol.Write(conn, reply) //nolint:errcheck // canned reply
			}
			conn.Close() //nolint:errcheck // per-request connection
		}
	}()

	return s
}

func (s *cannedServer) client() *Client {
	port := s.ln.Addr().(*net.TCPAddr).Port
	return New("127.0.0.1", WithPort(port), WithTimeout(2*time.Second))
}

func (s *cannedServer) lastRequest(t *testing.T) json.RawMessage {
	t.Helper()
	select {
	case raw := <-s.requests:
		return raw
	case <-time.After(2 * time.Second):
		t.Fatal("no request reached the server")
		return nil
	}
}

type okReply struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

func TestCommitSendsStagedAndQueuedAsBatch(t *testing.T) {
	srv := newCannedServer(t, okReply{Success: true})
	c := srv.client()

	if err := c.SetBacklight("front", true); err != nil {
		t.Fatalf("SetBacklight: %v", err)
	}
	c.StageGraphics("front", "text", map[string]any{"text": "HELLO"}, protocol.RefreshInterval{})
	c.StageBitmap("side", protocol.Bitmap{{1, 0}, {0, 1}})

	if err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	var batch []protocol.Envelope
	if err := json.Unmarshal(srv.lastRequest(t), &batch); err != nil {
		t.Fatalf("request was not a batch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("batch size = %d, want 3", len(batch))
	}

	if batch[0].Type != protocol.TypeControl || batch[0].Display != "front" {
		t.Errorf("batch[0] = %+v, want control for front", batch[0])
	}
	if batch[1].Type != protocol.TypeData || batch[1].Display != "front" {
		t.Errorf("batch[1] = %+v, want data for front", batch[1])
	}
	if batch[2].Display != "side" {
		t.Errorf("batch[2].Display = %q, want side (staging order)", batch[2].Display)
	}

	var msg protocol.Message
	if err := json.Unmarshal(batch[1].Message, &msg); err != nil {
		t.Fatalf("decoding staged message: %v", err)
	}
	if msg.Type != protocol.MessageSingle || len(msg.Submessages) != 1 {
		t.Errorf("staged message = %+v, want single with one submessage", msg)
	}

	// Queue cleared: a second commit has nothing to send.
	if err := c.Commit(); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("second Commit error = %v, want ErrEmptyQueue", err)
	}
}

func TestCommitKeepsQueueOnRejection(t *testing.T) {
	errMsg := "Invalid display: nope"
	srv := newCannedServer(t,
		okReply{Success: false, Error: &errMsg},
		okReply{Success: true},
	)
	c := srv.client()

	if err := c.SetActive("nope", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	err := c.Commit()
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Commit error = %v, want ErrRejected", err)
	}
	srv.lastRequest(t)

	// The rejected envelope is still queued and goes out on retry.
	if err := c.Commit(); err != nil {
		t.Fatalf("retry Commit: %v", err)
	}

	var batch []protocol.Envelope
	if err := json.Unmarshal(srv.lastRequest(t), &batch); err != nil {
		t.Fatalf("retry request: %v", err)
	}
	if len(batch) != 1 || batch[0].Display != "nope" {
		t.Errorf("retried batch = %+v", batch)
	}
}

func TestGetConfig(t *testing.T) {
	srv := newCannedServer(t, map[string]map[string]bool{
		"front": {"backlight": true, "inverting": false, "active": true},
	})
	c := srv.client()

	cfg, err := c.GetConfig([]string{"front"}, nil)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if !cfg["front"]["backlight"] {
		t.Errorf("config = %+v, want front.backlight true", cfg)
	}

	var env protocol.Envelope
	if err := json.Unmarshal(srv.lastRequest(t), &env); err != nil {
		t.Fatalf("request: %v", err)
	}
	if env.Type != protocol.TypeQueryConfig || len(env.Displays) != 1 {
		t.Errorf("request envelope = %+v", env)
	}
}

func TestGetHardwareConfig(t *testing.T) {
	srv := newCannedServer(t, map[string]Hardware{
		"front": {Width: 96, Height: 16, Address: 0},
	})
	c := srv.client()

	hw, err := c.GetHardwareConfig()
	if err != nil {
		t.Fatalf("GetHardwareConfig: %v", err)
	}
	if hw["front"].Width != 96 {
		t.Errorf("hardware = %+v", hw)
	}
}

func TestQueryRejectionSurfacesServerError(t *testing.T) {
	errMsg := "Invalid display: nope"
	srv := newCannedServer(t, okReply{Success: false, Error: &errMsg})
	c := srv.client()

	_, err := c.GetBitmap([]string{"nope"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("GetBitmap error = %v, want ErrRejected", err)
	}
}

func TestSequenceMessageValidation(t *testing.T) {
	// Member without duration and no interval must be rejected locally.
	_, err := SequenceMessage(0, SingleMessage(0, BitmapSubmessage(protocol.Bitmap{{1}})))
	if err == nil {
		t.Fatal("SequenceMessage accepted unresolvable duration")
	}

	seq, err := SequenceMessage(2.5,
		SingleMessage(0, BitmapSubmessage(protocol.Bitmap{{1}})),
		SingleMessage(1.0, BitmapSubmessage(protocol.Bitmap{{0}})),
	)
	if err != nil {
		t.Fatalf("SequenceMessage: %v", err)
	}
	if seq.MemberDuration(0) != 2.5 || seq.MemberDuration(1) != 1.0 {
		t.Errorf("member durations = %v, %v", seq.MemberDuration(0), seq.MemberDuration(1))
	}
}

func TestClearContentQueuesNull(t *testing.T) {
	srv := newCannedServer(t, okReply{Success: true})
	c := srv.client()

	c.ClearContent("front")
	if err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	var batch []protocol.Envelope
	if err := json.Unmarshal(srv.lastRequest(t), &batch); err != nil {
		t.Fatalf("request: %v", err)
	}
	if string(batch[0].Message) != "null" {
		t.Errorf("message body = %s, want null", batch[0].Message)
	}
}
