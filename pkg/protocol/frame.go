package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/tidwall/gjson"
)

var (
	// ErrEmptyMessage is returned when a relay delivers an empty text frame.
	ErrEmptyMessage = errors.New("empty relay message")
	// ErrDecode is returned for frames that are not a recognized JSON array.
	ErrDecode = errors.New("could not decode relay message")
)

// ClientFrame is one client-to-relay message. Frames are encoded as JSON
// arrays per the Nostr wire convention.
type ClientFrame interface {
	Encode() (string, error)
	// Droppable reports whether the outbound queue may shed this frame
	// under back-pressure. Only EVENT publishes are droppable; REQ and
	// CLOSE carry subscription state and must survive.
	Droppable() bool
}

// EventFrame publishes a signed note. EventJSON is the raw note object,
// already signed by the key layer.
type EventFrame struct {
	EventJSON string
}

func (f EventFrame) Encode() (string, error) {
	return encodeArray("EVENT", json.RawMessage(f.EventJSON))
}

func (f EventFrame) Droppable() bool { return true }

// ReqFrame opens a subscription with the given per-relay sub id.
type ReqFrame struct {
	SubID   string
	Filters []nostr.Filter
}

func (f ReqFrame) Encode() (string, error) {
	elems := make([]any, 0, 2+len(f.Filters))
	elems = append(elems, "REQ", f.SubID)
	for _, filter := range f.Filters {
		elems = append(elems, filter)
	}
	b, err := json.Marshal(elems)
	if err != nil {
		return "", fmt.Errorf("encode REQ %s: %w", f.SubID, err)
	}
	return string(b), nil
}

func (f ReqFrame) Droppable() bool { return false }

// CloseFrame ends the subscription with the given per-relay sub id.
type CloseFrame struct {
	SubID string
}

func (f CloseFrame) Encode() (string, error) {
	return encodeArray("CLOSE", f.SubID)
}

func (f CloseFrame) Droppable() bool { return false }

// AuthFrame forwards a signed AUTH event. The core does not sign; it
// passes through whatever the key layer produced.
type AuthFrame struct {
	EventJSON string
}

func (f AuthFrame) Encode() (string, error) {
	return encodeArray("AUTH", json.RawMessage(f.EventJSON))
}

func (f AuthFrame) Droppable() bool { return false }

// RawFrame is an already-encoded wire message, sent verbatim.
type RawFrame struct {
	Text string
}

func (f RawFrame) Encode() (string, error) { return f.Text, nil }

func (f RawFrame) Droppable() bool { return false }

func encodeArray(elems ...any) (string, error) {
	b, err := json.Marshal(elems)
	if err != nil {
		return "", fmt.Errorf("encode %v frame: %w", elems[0], err)
	}
	return string(b), nil
}

// RelayFrame is one relay-to-client message.
type RelayFrame interface {
	// SubID returns the subscription id the frame refers to, or "" for
	// frames that are not subscription-scoped (NOTICE, OK, AUTH).
	SubID() string
	Encode() (string, error)
}

// EventMsg carries one note for a subscription. EventJSON is the raw note
// object exactly as it appeared on the wire; signature validation is the
// store's job.
type EventMsg struct {
	Sub       string
	EventJSON string
}

func (m EventMsg) SubID() string { return m.Sub }

func (m EventMsg) Encode() (string, error) {
	return encodeArray("EVENT", m.Sub, json.RawMessage(m.EventJSON))
}

// EoseMsg signals end-of-stored-events for a subscription.
type EoseMsg struct {
	Sub string
}

func (m EoseMsg) SubID() string { return m.Sub }

func (m EoseMsg) Encode() (string, error) { return encodeArray("EOSE", m.Sub) }

// NoticeMsg is a human-readable message from the relay.
type NoticeMsg struct {
	Message string
}

func (m NoticeMsg) SubID() string { return "" }

func (m NoticeMsg) Encode() (string, error) { return encodeArray("NOTICE", m.Message) }

// OkMsg reports the outcome of a published event.
type OkMsg struct {
	EventID  string
	Accepted bool
	Reason   string
}

func (m OkMsg) SubID() string { return "" }

func (m OkMsg) Encode() (string, error) {
	return encodeArray("OK", m.EventID, m.Accepted, m.Reason)
}

// ClosedMsg means the relay terminated a subscription on its side.
type ClosedMsg struct {
	Sub    string
	Reason string
}

func (m ClosedMsg) SubID() string { return m.Sub }

func (m ClosedMsg) Encode() (string, error) {
	return encodeArray("CLOSED", m.Sub, m.Reason)
}

// AuthChallenge asks the client to authenticate (NIP-42).
type AuthChallenge struct {
	Challenge string
}

func (m AuthChallenge) SubID() string { return "" }

func (m AuthChallenge) Encode() (string, error) { return encodeArray("AUTH", m.Challenge) }

// ParseRelayFrame decodes one relay text message. Only the fields the pool
// routes on are pulled out eagerly; the note payload of an EVENT stays raw
// so it can be handed to the store without a round-trip through a struct.
func ParseRelayFrame(msg string) (RelayFrame, error) {
	if msg == "" {
		return nil, ErrEmptyMessage
	}

	parsed := gjson.Parse(msg)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: not a JSON array", ErrDecode)
	}
	arr := parsed.Array()
	if len(arr) == 0 || arr[0].Type != gjson.String {
		return nil, fmt.Errorf("%w: missing frame label", ErrDecode)
	}

	switch arr[0].Str {
	case "EVENT":
		if len(arr) < 3 {
			return nil, fmt.Errorf("%w: EVENT needs sub id and note", ErrDecode)
		}
		return EventMsg{Sub: arr[1].Str, EventJSON: arr[2].Raw}, nil
	case "EOSE":
		if len(arr) < 2 {
			return nil, fmt.Errorf("%w: EOSE needs sub id", ErrDecode)
		}
		return EoseMsg{Sub: arr[1].Str}, nil
	case "NOTICE":
		if len(arr) < 2 {
			return nil, fmt.Errorf("%w: NOTICE needs a message", ErrDecode)
		}
		return NoticeMsg{Message: arr[1].Str}, nil
	case "OK":
		if len(arr) < 3 {
			return nil, fmt.Errorf("%w: OK needs event id and status", ErrDecode)
		}
		if arr[2].Type != gjson.True && arr[2].Type != gjson.False {
			return nil, fmt.Errorf("%w: OK status must be a boolean", ErrDecode)
		}
		ok := OkMsg{EventID: arr[1].Str, Accepted: arr[2].Bool()}
		if len(arr) > 3 {
			ok.Reason = arr[3].Str
		}
		return ok, nil
	case "CLOSED":
		if len(arr) < 2 {
			return nil, fmt.Errorf("%w: CLOSED needs sub id", ErrDecode)
		}
		closed := ClosedMsg{Sub: arr[1].Str}
		if len(arr) > 2 {
			closed.Reason = arr[2].Str
		}
		return closed, nil
	case "AUTH":
		if len(arr) < 2 {
			return nil, fmt.Errorf("%w: AUTH needs a challenge", ErrDecode)
		}
		return AuthChallenge{Challenge: arr[1].Str}, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame %q", ErrDecode, arr[0].Str)
	}
}
