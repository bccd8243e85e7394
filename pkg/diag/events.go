package diag

import "time"

type Event interface {
	Timestamp() time.Time // When the event occurred
	EventType() string    // For categorization/filtering
}

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// ConnStatusChanged is emitted on every relay status transition.
type ConnStatusChanged struct {
	timestamp time.Time
	RelayURL  string
	Status    string
}

func (e ConnStatusChanged) Timestamp() time.Time { return e.timestamp }
func (e ConnStatusChanged) EventType() string    { return "conn_status_changed" }

func NewConnStatusChanged(relayURL, status string) ConnStatusChanged {
	return ConnStatusChanged{
		timestamp: time.Now(),
		RelayURL:  relayURL,
		Status:    status,
	}
}

// FrameDropped is emitted when an outbound publish is shed because a
// relay's send queue hit its high-water mark.
type FrameDropped struct {
	timestamp time.Time
	RelayURL  string
	Label     string
}

func (e FrameDropped) Timestamp() time.Time { return e.timestamp }
func (e FrameDropped) EventType() string    { return "frame_dropped" }

func NewFrameDropped(relayURL, label string) FrameDropped {
	return FrameDropped{
		timestamp: time.Now(),
		RelayURL:  relayURL,
		Label:     label,
	}
}

// ProtocolError is emitted when an inbound relay message fails to decode.
// Decode failures are non-fatal; the connection stays up.
type ProtocolError struct {
	timestamp time.Time
	RelayURL  string
	Err       error
}

func (e ProtocolError) Timestamp() time.Time { return e.timestamp }
func (e ProtocolError) EventType() string    { return "protocol_error" }

func NewProtocolError(relayURL string, err error) ProtocolError {
	return ProtocolError{
		timestamp: time.Now(),
		RelayURL:  relayURL,
		Err:       err,
	}
}

// NoteIngested is emitted for every EVENT handed to the store.
type NoteIngested struct {
	timestamp time.Time
	RelayURL  string
	Kind      int
	EventID   string
}

func (e NoteIngested) Timestamp() time.Time { return e.timestamp }
func (e NoteIngested) EventType() string    { return "note_ingested" }

func NewNoteIngested(relayURL string, kind int, eventID string) NoteIngested {
	return NoteIngested{
		timestamp: time.Now(),
		RelayURL:  relayURL,
		Kind:      kind,
		EventID:   eventID,
	}
}

// PublishResult carries a relay's OK verdict on a published note.
type PublishResult struct {
	timestamp time.Time
	RelayURL  string
	EventID   string
	Accepted  bool
	Reason    string
}

func (e PublishResult) Timestamp() time.Time { return e.timestamp }
func (e PublishResult) EventType() string    { return "publish_result" }

func NewPublishResult(relayURL, eventID string, accepted bool, reason string) PublishResult {
	return PublishResult{
		timestamp: time.Now(),
		RelayURL:  relayURL,
		EventID:   eventID,
		Accepted:  accepted,
		Reason:    reason,
	}
}

// SubscriptionClosed is emitted when a relay terminates a subscription
// on its side (CLOSED frame).
type SubscriptionClosed struct {
	timestamp time.Time
	RelayURL  string
	SubID     string
	Reason    string
}

func (e SubscriptionClosed) Timestamp() time.Time { return e.timestamp }
func (e SubscriptionClosed) EventType() string    { return "subscription_closed" }

func NewSubscriptionClosed(relayURL, subID, reason string) SubscriptionClosed {
	return SubscriptionClosed{
		timestamp: time.Now(),
		RelayURL:  relayURL,
		SubID:     subID,
		Reason:    reason,
	}
}

// ColdRelay is emitted when a relay crosses the consecutive-failure
// threshold and is demoted to the slow retry cadence.
type ColdRelay struct {
	timestamp time.Time
	RelayURL  string
	Failures  int
}

func (e ColdRelay) Timestamp() time.Time { return e.timestamp }
func (e ColdRelay) EventType() string    { return "cold_relay" }

func NewColdRelay(relayURL string, failures int) ColdRelay {
	return ColdRelay{
		timestamp: time.Now(),
		RelayURL:  relayURL,
		Failures:  failures,
	}
}

// UnknownIDDropped is emitted when a missing-id fetch exhausts its retry
// budget and the id is abandoned.
type UnknownIDDropped struct {
	timestamp time.Time
	ID        string
	Retries   int
}

func (e UnknownIDDropped) Timestamp() time.Time { return e.timestamp }
func (e UnknownIDDropped) EventType() string    { return "unknown_id_dropped" }

func NewUnknownIDDropped(id string, retries int) UnknownIDDropped {
	return UnknownIDDropped{
		timestamp: time.Now(),
		ID:        id,
		Retries:   retries,
	}
}

// CoordinatorError is a catch-all for failures inside the driver loop.
type CoordinatorError struct {
	timestamp time.Time
	Err       error
	Context   string // e.g. "store_ingest", "relay_dial"
	Severity  Severity
}

func (e CoordinatorError) Timestamp() time.Time { return e.timestamp }
func (e CoordinatorError) EventType() string    { return "coordinator_error" }

func NewCoordinatorError(err error, context string, severity Severity) CoordinatorError {
	return CoordinatorError{
		timestamp: time.Now(),
		Err:       err,
		Context:   context,
		Severity:  severity,
	}
}

type Sink interface {
	// Publish sends a diagnostic event to the aggregator.
	// This is a non-blocking, fire-and-forget call.
	Publish(event Event)
}
