package testutil

import (
	"sync"

	"nostr-pool/pkg/diag"
)

// CapturingSink collects diagnostic events for assertions in tests.
type CapturingSink struct {
	mu     sync.Mutex
	Events []diag.Event
}

func NewCapturingSink() *CapturingSink { return &CapturingSink{} }

func (c *CapturingSink) Publish(event diag.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Events = append(c.Events, event)
}

func (c *CapturingSink) Snapshot() []diag.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]diag.Event, len(c.Events))
	copy(out, c.Events)
	return out
}

// CountType returns how many captured events have the given EventType.
func (c *CapturingSink) CountType(eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.Events {
		if ev.EventType() == eventType {
			n++
		}
	}
	return n
}
