package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeSignal_Join(t *testing.T) {
	sig, err := DecodeSignal([]byte(`{"type":"join-meeting","from":"P","meetingId":"ABCD1234"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	join, ok := sig.(JoinSignal)
	if !ok {
		t.Fatalf("expected JoinSignal, got %T", sig)
	}
	if join.From != "P" || join.Meeting != "ABCD1234" {
		t.Errorf("unexpected fields: %+v", join)
	}
	if join.Kind() != KindJoinMeeting {
		t.Errorf("expected kind %s, got %s", KindJoinMeeting, join.Kind())
	}
}

func TestDecodeSignal_ForwardKinds(t *testing.T) {
	cases := []struct {
		name string
		body string
		tag  Kind
	}{
		{"offer", `{"type":"offer","from":"P","to":"H","offer":{"type":"offer","sdp":"v=0"}}`, KindOffer},
		{"answer", `{"type":"answer","from":"H","to":"P","answer":{"type":"answer","sdp":"v=0"}}`, KindAnswer},
		{"candidate", `{"type":"ice-candidate","from":"P","to":"H","candidate":{"candidate":"foo"}}`, KindICECandidate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig, err := DecodeSignal([]byte(tc.body))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			fwd, ok := sig.(ForwardSignal)
			if !ok {
				t.Fatalf("expected ForwardSignal, got %T", sig)
			}
			if fwd.Kind() != tc.tag {
				t.Errorf("expected kind %s, got %s", tc.tag, fwd.Kind())
			}
			if len(fwd.Payload) == 0 {
				t.Error("expected payload to be carried through")
			}
		})
	}
}

func TestDecodeSignal_ToggleMeetingWide(t *testing.T) {
	sig, err := DecodeSignal([]byte(`{"type":"audio-toggle","from":"P","meetingId":"M","enabled":false}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tog := sig.(ToggleSignal)
	if tog.Enabled {
		t.Error("expected enabled=false")
	}
	if tog.To != "" || tog.Meeting != "M" {
		t.Errorf("expected meeting-wide target, got %+v", tog)
	}
}

func TestDecodeSignal_Invalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"garbage", `{]`},
		{"unknown kind", `{"type":"warp","from":"P"}`},
		{"missing from", `{"type":"join-meeting","meetingId":"M"}`},
		{"join missing meeting", `{"type":"join-meeting","from":"P"}`},
		{"offer missing to", `{"type":"offer","from":"P","offer":{"type":"offer","sdp":"v=0"}}`},
		{"offer missing payload", `{"type":"offer","from":"P","to":"H"}`},
		{"toggle missing enabled", `{"type":"video-toggle","from":"P","meetingId":"M"}`},
		{"toggle missing target", `{"type":"video-toggle","from":"P","enabled":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeSignal([]byte(tc.body)); !errors.Is(err, ErrInvalidSignal) {
				t.Errorf("expected ErrInvalidSignal, got %v", err)
			}
		})
	}
}

func TestNewSessionEvent(t *testing.T) {
	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	ev := NewSessionEvent(KindOffer, "P", payload)
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(out["type"]) != `"offer"` || string(out["from"]) != `"P"` {
		t.Errorf("unexpected envelope: %s", data)
	}
	if _, ok := out["offer"]; !ok {
		t.Error("expected offer payload field")
	}
	if _, ok := out["answer"]; ok {
		t.Error("answer field must be omitted on an offer event")
	}
}
