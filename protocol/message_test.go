package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want error
	}{
		{
			name: "valid single",
			msg: Message{Type: MessageSingle, Submessages: []Submessage{
				{Type: SubmessageBitmap, Bitmap: Bitmap{{1, 0}, {0, 1}}},
			}},
		},
		{
			name: "valid sequence with interval fallback",
			msg: Message{Type: MessageSequence, Interval: f64(2), Messages: []Message{
				{Type: MessageSingle},
				{Type: MessageSingle, Duration: f64(5)},
			}},
		},
		{
			name: "unknown message type",
			msg:  Message{Type: "marquee"},
			want: ErrBadMessageType,
		},
		{
			name: "nested sequence",
			msg: Message{Type: MessageSequence, Interval: f64(2), Messages: []Message{
				{Type: MessageSequence},
			}},
			want: ErrNestedSequence,
		},
		{
			name: "member without duration and no interval",
			msg: Message{Type: MessageSequence, Messages: []Message{
				{Type: MessageSingle},
			}},
			want: ErrNoDuration,
		},
		{
			name: "zero member duration falls back to missing interval",
			msg: Message{Type: MessageSequence, Messages: []Message{
				{Type: MessageSingle, Duration: f64(0)},
			}},
			want: ErrNoDuration,
		},
		{
			name: "unknown submessage type",
			msg: Message{Type: MessageSingle, Submessages: []Submessage{
				{Type: "sprite"},
			}},
			want: ErrBadSubmessageType,
		},
		{
			name: "graphics submessage without func",
			msg: Message{Type: MessageSingle, Submessages: []Submessage{
				{Type: SubmessageGraphics},
			}},
			want: ErrBadPayload,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMemberDuration(t *testing.T) {
	seq := Message{Type: MessageSequence, Interval: f64(3), Messages: []Message{
		{Type: MessageSingle},                   // falls back to interval
		{Type: MessageSingle, Duration: f64(7)}, // own duration wins
		{Type: MessageSingle, Duration: f64(0)}, // zero falls back
	}}
	for i, want := range []float64{3, 7, 3} {
		if got := seq.MemberDuration(i); got != want {
			t.Errorf("MemberDuration(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestRefreshIntervalUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    RefreshInterval
		wantErr bool
	}{
		{"seconds", `5`, RefreshInterval{Seconds: 5}, false},
		{"fractional seconds", `0.5`, RefreshInterval{Seconds: 0.5}, false},
		{"minute token", `"minute"`, RefreshInterval{Minute: true}, false},
		{"null", `null`, RefreshInterval{}, false},
		{"other string", `"hourly"`, RefreshInterval{}, true},
		{"negative", `-1`, RefreshInterval{}, true},
		{"object", `{}`, RefreshInterval{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got RefreshInterval
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				if !errors.Is(err, ErrBadRefreshInterval) {
					t.Errorf("Unmarshal(%s) error = %v, want ErrBadRefreshInterval", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSubmessageJSONRoundTrip(t *testing.T) {
	raw := `{"type":"graphics","func":"text","params":{"text":"HELLO","x":2},"refresh_interval":"minute"}`

	var sub Submessage
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !sub.RefreshInterval.Minute {
		t.Error("refresh_interval not decoded as minute")
	}

	out, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var again Submessage
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("re-Unmarshal() error = %v", err)
	}
	if again.Func != "text" || !again.RefreshInterval.Minute {
		t.Errorf("round trip lost fields: %+v", again)
	}
}
