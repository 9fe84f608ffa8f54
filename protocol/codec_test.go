package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func frame(body string) string {
	return fmt.Sprintf("%05d%s", len(body), body)
}

func TestReadSingleEnvelope(t *testing.T) {
	body := `{"type":"control","display":"front","message":{"backlight":true}}`
	envs, batch, err := Read(strings.NewReader(frame(body)))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if batch {
		t.Error("Read() batch = true, want false")
	}
	if len(envs) != 1 {
		t.Fatalf("Read() returned %d envelopes, want 1", len(envs))
	}
	if envs[0].Type != TypeControl || envs[0].Display != "front" {
		t.Errorf("envelope = %+v, want control/front", envs[0])
	}
}

func TestReadBatch(t *testing.T) {
	body := `[{"type":"query-hwconfig"},{"type":"query-message","displays":["front"]}]`
	envs, batch, err := Read(strings.NewReader(frame(body)))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !batch {
		t.Error("Read() batch = false, want true")
	}
	if len(envs) != 2 {
		t.Fatalf("Read() returned %d envelopes, want 2", len(envs))
	}
	if envs[1].Displays[0] != "front" {
		t.Errorf("second envelope displays = %v", envs[1].Displays)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty input", "", ErrBadHeader},
		{"short header", "001", ErrBadHeader},
		{"non-digit header", "12a45{}", ErrBadHeader},
		{"negative-looking header", "-0001x", ErrBadHeader},
		{"truncated payload", "00050{\"type\"", ErrTruncated},
		{"invalid json", frame(`{"type":`), ErrBadPayload},
		{"bad json payload", frame(`not json here`), ErrBadPayload},
		{"bad list payload", frame(`[1,2,3]`), ErrBadPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("Read(%q) error = %v, want %v", tt.input, err, tt.want)
			}
		})
	}
}

func TestWriteFramesReply(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Failure("unknown display")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	if len(out) < headerLen {
		t.Fatalf("Write() produced %q, too short", out)
	}
	want := `{"success":false,"error":"unknown display"}`
	if out != frame(want) {
		t.Errorf("Write() = %q, want %q", out, frame(want))
	}
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Envelope{Type: TypeQueryConfig, Keys: []string{"backlight"}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	envs, _, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if envs[0].Type != TypeQueryConfig || len(envs[0].Keys) != 1 {
		t.Errorf("round trip envelope = %+v", envs[0])
	}
}

func TestWriteTooLarge(t *testing.T) {
	huge := strings.Repeat("x", maxPayload)
	err := Write(&bytes.Buffer{}, map[string]string{"v": huge})
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Write() error = %v, want ErrTooLarge", err)
	}
}
