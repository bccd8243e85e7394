package diag

import (
	"context"
	"sync"
	"time"
)

// Clock interface allows for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Config for diagnostics settings
type Config struct {
	BufferSize        int `default:"1000"`
	MaxRecentErrors   int `default:"50"`
	RateWindowSeconds int `default:"10"`
}

func DefaultConfig() Config {
	return Config{
		BufferSize:        1000,
		MaxRecentErrors:   50,
		RateWindowSeconds: 10,
	}
}

// Aggregator is the core stateful component that processes diagnostic events
type Aggregator struct {
	mu    sync.RWMutex
	clock Clock
	cfg   Config

	// Core counters
	notesIngested     uint64
	framesDropped     uint64
	protocolErrors    uint64
	publishesAccepted uint64
	publishesRejected uint64
	subsClosed        uint64
	unknownIDsDropped uint64
	errorsTotal       uint64

	// Breakdowns
	notesByKind      map[int]uint64
	errorsByContext  map[string]uint64
	errorsBySeverity map[Severity]uint64

	// Per-relay status, keyed by URL
	relayStatus map[string]string
	coldRelays  map[string]struct{}

	// Rate calculation
	ingestTimes []time.Time // Ring buffer for rate calculations

	// Recent errors (ring buffer)
	recentErrors []string
	errorIndex   int

	// Control channels
	eventCh chan Event
	done    chan struct{}
	wg      sync.WaitGroup

	// Startup time
	startTime time.Time
}

// NewAggregator creates a new diagnostics aggregator
func NewAggregator(clock Clock, cfg Config) *Aggregator {
	if clock == nil {
		clock = RealClock{}
	}

	return &Aggregator{
		clock:            clock,
		cfg:              cfg,
		notesByKind:      make(map[int]uint64),
		errorsByContext:  make(map[string]uint64),
		errorsBySeverity: make(map[Severity]uint64),
		relayStatus:      make(map[string]string),
		coldRelays:       make(map[string]struct{}),
		ingestTimes:      make([]time.Time, 0, cfg.RateWindowSeconds*10),
		recentErrors:     make([]string, cfg.MaxRecentErrors),
		eventCh:          make(chan Event, cfg.BufferSize),
		done:             make(chan struct{}),
		startTime:        clock.Now(),
	}
}

// Start begins processing diagnostic events
func (a *Aggregator) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.processEvents(ctx)
}

// Stop gracefully shuts down the aggregator
func (a *Aggregator) Stop() {
	close(a.done)
	a.wg.Wait()
}

// Publish implements the Sink interface
func (a *Aggregator) Publish(event Event) {
	select {
	case a.eventCh <- event:
	default:
		// Non-blocking send - drop if channel is full
		// This protects the hot path from being blocked
	}
}

func (a *Aggregator) processEvents(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case event := <-a.eventCh:
			a.handleEvent(event)
		}
	}
}

func (a *Aggregator) handleEvent(event Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()

	switch e := event.(type) {
	case ConnStatusChanged:
		a.relayStatus[e.RelayURL] = e.Status
		if e.Status != "cold" {
			delete(a.coldRelays, e.RelayURL)
		}

	case FrameDropped:
		a.framesDropped++

	case ProtocolError:
		a.protocolErrors++
		a.errorsTotal++
		a.errorsByContext["protocol"]++
		a.errorsBySeverity[SeverityWarning]++
		a.addRecentError(e.Err.Error())

	case NoteIngested:
		a.notesIngested++
		a.notesByKind[e.Kind]++
		a.addIngestTime(now)

	case PublishResult:
		if e.Accepted {
			a.publishesAccepted++
		} else {
			a.publishesRejected++
		}

	case SubscriptionClosed:
		a.subsClosed++

	case ColdRelay:
		a.coldRelays[e.RelayURL] = struct{}{}
		a.relayStatus[e.RelayURL] = "cold"

	case UnknownIDDropped:
		a.unknownIDsDropped++

	case CoordinatorError:
		a.errorsTotal++
		a.errorsByContext[e.Context]++
		a.errorsBySeverity[e.Severity]++
		a.addRecentError(e.Err.Error())
	}
}

// Snapshot returns a point-in-time copy of all aggregated counters.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.clock.Now()

	// Copy maps to prevent data races
	kindsCopy := make(map[int]uint64)
	for k, v := range a.notesByKind {
		kindsCopy[k] = v
	}

	statusCopy := make(map[string]string)
	for k, v := range a.relayStatus {
		statusCopy[k] = v
	}

	errorsByContextCopy := make(map[string]uint64)
	for k, v := range a.errorsByContext {
		errorsByContextCopy[k] = v
	}

	// Copy recent errors, newest first
	recentErrors := make([]string, 0)
	for i := 0; i < a.cfg.MaxRecentErrors; i++ {
		idx := (a.errorIndex - i - 1 + len(a.recentErrors)) % len(a.recentErrors)
		if a.recentErrors[idx] != "" {
			recentErrors = append(recentErrors, a.recentErrors[idx])
		}
	}

	return Snapshot{
		NotesIngested:      a.notesIngested,
		NotesByKind:        kindsCopy,
		FramesDropped:      a.framesDropped,
		ProtocolErrors:     a.protocolErrors,
		PublishesAccepted:  a.publishesAccepted,
		PublishesRejected:  a.publishesRejected,
		SubsClosed:         a.subsClosed,
		UnknownIDsDropped:  a.unknownIDsDropped,
		ErrorsTotal:        a.errorsTotal,
		ErrorsByContext:    errorsByContextCopy,
		RecentErrors:       recentErrors,
		RelayStatus:        statusCopy,
		ColdRelays:         uint64(len(a.coldRelays)),
		NotesPerSecond:     a.calculateRate(a.ingestTimes, now),
		UptimeSeconds:      now.Sub(a.startTime).Seconds(),
		ChannelUtilization: float64(len(a.eventCh)) / float64(cap(a.eventCh)) * 100,
	}
}

func (a *Aggregator) addIngestTime(t time.Time) {
	cutoff := t.Add(-time.Duration(a.cfg.RateWindowSeconds) * time.Second)

	// Remove old entries
	for len(a.ingestTimes) > 0 && a.ingestTimes[0].Before(cutoff) {
		a.ingestTimes = a.ingestTimes[1:]
	}

	a.ingestTimes = append(a.ingestTimes, t)
}

func (a *Aggregator) addRecentError(err string) {
	a.recentErrors[a.errorIndex] = err
	a.errorIndex = (a.errorIndex + 1) % len(a.recentErrors)
}

func (a *Aggregator) calculateRate(times []time.Time, now time.Time) float64 {
	if len(times) == 0 {
		return 0.0
	}

	cutoff := now.Add(-time.Duration(a.cfg.RateWindowSeconds) * time.Second)
	count := 0

	for _, t := range times {
		if t.After(cutoff) {
			count++
		}
	}

	return float64(count) / float64(a.cfg.RateWindowSeconds)
}
