package signal_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mvolkov/huddle/internal/core"
)

func dialWS(t *testing.T, httpURL, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpURL, "http") + "/api/ws/signal?userId=" + userID
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readWSEvent(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev map[string]any
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	return ev
}

func TestWSPushChannel(t *testing.T) {
	srv := newTestServer(t)
	meeting := createMeeting(t, srv, "H")

	ws := dialWS(t, srv.URL, "W")
	if ev := readWSEvent(t, ws); ev["type"] != core.EventConnected || ev["userId"] != "W" {
		t.Fatalf("expected connected ack, got %v", ev)
	}

	// the socket accepts signals in-band and answers with a join-ack
	join := `{"type":"join-meeting","from":"W","meetingId":"` + meeting + `"}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(join)); err != nil {
		t.Fatal(err)
	}
	ev := readWSEvent(t, ws)
	if ev["type"] != core.EventJoinAck || ev["meetingId"] != meeting {
		t.Fatalf("expected join-ack, got %v", ev)
	}
	participants, _ := ev["participants"].([]any)
	if len(participants) != 1 || participants[0] != "H" {
		t.Fatalf("join-ack participants %v, want [H]", participants)
	}

	// the same socket is the push channel for signals posted over HTTP
	code, out := postJSON(t, srv.URL+"/api/signal",
		`{"type":"answer","from":"H","to":"W","answer":{"type":"answer","sdp":"v=0"}}`)
	if code != http.StatusOK {
		t.Fatalf("answer: %d %v", code, out)
	}
	if ev := readWSEvent(t, ws); ev["type"] != "answer" || ev["from"] != "H" {
		t.Fatalf("expected relayed answer, got %v", ev)
	}
}

func TestWSInbandErrors(t *testing.T) {
	srv := newTestServer(t)
	ws := dialWS(t, srv.URL, "W")
	if ev := readWSEvent(t, ws); ev["type"] != core.EventConnected {
		t.Fatalf("expected connected ack, got %v", ev)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)); err != nil {
		t.Fatal(err)
	}
	if ev := readWSEvent(t, ws); ev["type"] != core.EventError {
		t.Fatalf("expected error event for an unknown kind, got %v", ev)
	}

	join := `{"type":"join-meeting","from":"W","meetingId":"NOPE1234"}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(join)); err != nil {
		t.Fatal(err)
	}
	if ev := readWSEvent(t, ws); ev["type"] != core.EventError {
		t.Fatalf("expected error event for an unknown meeting, got %v", ev)
	}
}
