package protocol

import (
	"errors"
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

const testNoteJSON = `{"id":"70b10f70c1318967eddf12527799411b1a9780ad9c43858f5e5fcd45486a13a5","pubkey":"379e863e8357163b5bce5d2688dc4f1dcc2d505222fb8d74db600f30535dfdfe","created_at":1612809991,"kind":1,"tags":[],"content":"test","sig":"273a9cd5d11455590f4359500bccb7a89428262b96b3ea87a756b770964472f8c3e87f5d5e64d8d2e859a71462a3f477b554565c4f2f326cb01dd7620db71502"}`

func TestClientFrameEncode(t *testing.T) {
	limit := 50
	cases := []struct {
		name  string
		frame ClientFrame
		want  string
	}{
		{
			name:  "close",
			frame: CloseFrame{SubID: "p1a"},
			want:  `["CLOSE","p1a"]`,
		},
		{
			name:  "event",
			frame: EventFrame{EventJSON: `{"kind":1}`},
			want:  `["EVENT",{"kind":1}]`,
		},
		{
			name:  "req",
			frame: ReqFrame{SubID: "p2", Filters: []nostr.Filter{{Kinds: []int{1}, Limit: limit}}},
			want:  `["REQ","p2",{"kinds":[1],"limit":50}]`,
		},
		{
			name:  "raw",
			frame: RawFrame{Text: `["CLOSE","x"]`},
			want:  `["CLOSE","x"]`,
		},
	}

	for _, tc := range cases {
		got, err := tc.frame.Encode()
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestRelayFrameRoundTrip(t *testing.T) {
	frames := []RelayFrame{
		EventMsg{Sub: "home", EventJSON: testNoteJSON},
		EoseMsg{Sub: "home"},
		NoticeMsg{Message: "Invalid event format!"},
		OkMsg{EventID: "b1a649ebe8b435ec71d3784793f3bbf4b93e64e17568a741aecd4c7ddeafce30", Accepted: true, Reason: "pow: difficulty 25>=24"},
		ClosedMsg{Sub: "p7", Reason: "rate limited"},
		AuthChallenge{Challenge: "challenge-string"},
	}

	for _, frame := range frames {
		encoded, err := frame.Encode()
		if err != nil {
			t.Fatalf("encode %T: %v", frame, err)
		}
		parsed, err := ParseRelayFrame(encoded)
		if err != nil {
			t.Fatalf("parse %s: %v", encoded, err)
		}
		if parsed != frame {
			t.Fatalf("round trip mismatch: got %#v want %#v", parsed, frame)
		}
	}
}

func TestParseRelayFrameTolerantOfSpacing(t *testing.T) {
	parsed, err := ParseRelayFrame(`["EVENT",  "sub-1",  ` + testNoteJSON + `]`)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ev, ok := parsed.(EventMsg)
	if !ok {
		t.Fatalf("expected EventMsg, got %T", parsed)
	}
	if ev.Sub != "sub-1" {
		t.Fatalf("expected sub-1, got %q", ev.Sub)
	}
	if ev.EventJSON != testNoteJSON {
		t.Fatalf("note payload mangled: %s", ev.EventJSON)
	}
}

func TestParseRelayFrameRejectsGarbage(t *testing.T) {
	bad := []string{
		`["NOTICE"]`,
		`["EOSE"]`,
		`["OK","b1a649ebe8b435ec71d3784793f3bbf4b93e64e17568a741aecd4c7ddeafce30"]`,
		`["OK","abc","hello",""]`,
		`["WHAT","huh"]`,
		`{"not":"an array"}`,
	}
	for _, msg := range bad {
		if _, err := ParseRelayFrame(msg); !errors.Is(err, ErrDecode) {
			t.Fatalf("expected decode error for %s, got %v", msg, err)
		}
	}

	if _, err := ParseRelayFrame(""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestDroppability(t *testing.T) {
	if !(EventFrame{}).Droppable() {
		t.Fatal("EVENT frames must be droppable under back-pressure")
	}
	if (ReqFrame{}).Droppable() || (CloseFrame{}).Droppable() {
		t.Fatal("REQ and CLOSE must never be droppable")
	}
}
