package diag

// NoopSink is a diagnostics sink that does nothing.
// Useful for testing or when diagnostics are disabled.
type NoopSink struct{}

// NewNoopSink creates a new no-op diagnostics sink
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

// Publish does nothing
func (n *NoopSink) Publish(event Event) {
	// No-op
}
