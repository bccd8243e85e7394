package relay

import (
	"log"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"nostr-pool/pkg/diag"
	"nostr-pool/pkg/protocol"
)

type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
	StatusCold
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusCold:
		return "cold"
	default:
		return "unknown"
	}
}

// Options tunes one relay's reconnect and keepalive behavior.
type Options struct {
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	ColdThreshold     int
	ColdRetryInterval time.Duration
	IdlePing          time.Duration
	OutboundHighWater int
}

func DefaultOptions() Options {
	return Options{
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		ColdThreshold:     8,
		ColdRetryInterval: 5 * time.Minute,
		IdlePing:          30 * time.Second,
		OutboundHighWater: 256,
	}
}

// PollEvent is one unit of a relay's poll output: either an inbound frame
// or a status transition, in the order they occurred.
type PollEvent struct {
	Frame        protocol.RelayFrame // non-nil for frame events
	Status       Status
	StatusChange bool
}

// Relay owns one websocket connection: its status machine, queued
// subscription tasks, bounded outbound buffer, and reconnect schedule.
// All methods are driver-loop only; nothing here is safe for concurrent
// use. The transport's goroutines communicate exclusively through the
// Conn event channel.
type Relay struct {
	URL protocol.RelayURL

	dialer Dialer
	opts   Options
	logger *log.Logger
	sink   diag.Sink
	wake   func()
	rng    func() float64 // jitter source, injectable for tests

	status   Status
	conn     Conn
	tasks    *QueuedTasks
	outbound *OutQueue
	subIDs   map[string]struct{}
	pinned   bool

	lastActivity time.Time
	lastPing     time.Time
	failures     int  // consecutive handshake failures
	cold         bool // sticky across retry attempts until one succeeds
	nextRetry    time.Time
}

func New(url protocol.RelayURL, dialer Dialer, opts Options, logger *log.Logger, sink diag.Sink, wake func()) *Relay {
	if sink == nil {
		sink = diag.NewNoopSink()
	}
	return &Relay{
		URL:      url,
		dialer:   dialer,
		opts:     opts,
		logger:   logger,
		sink:     sink,
		wake:     wake,
		rng:      defaultJitter,
		status:   StatusConnecting,
		tasks:    NewQueuedTasks(),
		outbound: NewOutQueue(opts.OutboundHighWater),
		subIDs:   make(map[string]struct{}),
	}
}

// SetJitterSource overrides the backoff jitter source. Tests use this to
// make reconnect schedules deterministic.
func (r *Relay) SetJitterSource(rng func() float64) { r.rng = rng }

func (r *Relay) Status() Status { return r.status }

// IsCold stays true while a slow retry attempt is in flight; only a
// successful handshake clears it.
func (r *Relay) IsCold() bool { return r.cold }

// Pinned relays are user-configured: cold status never excludes them
// from relay plans.
func (r *Relay) Pinned() bool     { return r.pinned }
func (r *Relay) SetPinned(p bool) { r.pinned = p }

// SubIDs returns the per-relay sub ids currently live on the wire.
func (r *Relay) SubIDs() map[string]struct{} { return r.subIDs }

// Connect starts a connection attempt if none is in flight.
func (r *Relay) Connect(now time.Time) {
	if r.conn != nil || r.status == StatusConnected {
		return
	}
	r.setStatus(StatusConnecting)
	conn, err := r.dialer.Dial(r.URL, r.wake)
	if err != nil {
		r.logger.Printf("dial %s failed: %v", r.URL, err)
		r.connectFailed(now)
		return
	}
	r.conn = conn
}

// Send buffers or writes one raw client frame. It never blocks: while the
// relay is not Connected the frame goes to the outbound queue, subject to
// the droppable-frame high-water mark.
func (r *Relay) Send(frame protocol.ClientFrame) {
	if r.status == StatusConnected {
		r.write(frame)
		return
	}
	if shed := r.outbound.Push(frame); shed != nil {
		r.sink.Publish(diag.NewFrameDropped(string(r.URL), "event"))
	}
}

// Subscribe opens the given per-relay sub id, or queues the intent when
// the relay is not Connected.
func (r *Relay) Subscribe(id string, filters []nostr.Filter) {
	if r.status == StatusConnected {
		r.subIDs[id] = struct{}{}
		r.write(protocol.ReqFrame{SubID: id, Filters: filters})
		return
	}
	r.tasks.Subscribe(id, filters)
}

// Unsubscribe closes the given per-relay sub id. When the relay is not
// Connected and the id's Subscribe is still queued, the pair cancels and
// nothing is ever sent.
func (r *Relay) Unsubscribe(id string) {
	if r.status == StatusConnected {
		delete(r.subIDs, id)
		r.write(protocol.CloseFrame{SubID: id})
		return
	}
	r.tasks.Unsubscribe(id)
}

// Poll drains pending transport events without blocking and returns the
// resulting frames and status transitions in wire order.
func (r *Relay) Poll(now time.Time) []PollEvent {
	if r.conn == nil {
		return nil
	}

	var out []PollEvent
	for {
		var ev ConnEvent
		select {
		case ev = <-r.conn.Events():
		default:
			return out
		}

		switch ev.Kind {
		case ConnOpened:
			r.onOpened(now)
			out = append(out, PollEvent{Status: r.status, StatusChange: true})

		case ConnMessage:
			r.lastActivity = now
			frame, err := protocol.ParseRelayFrame(ev.Text)
			if err != nil {
				// Parse errors are non-fatal; the connection stays up.
				r.logger.Printf("relay %s: bad frame: %v", r.URL, err)
				r.sink.Publish(diag.NewProtocolError(string(r.URL), err))
				continue
			}
			if closed, ok := frame.(protocol.ClosedMsg); ok {
				delete(r.subIDs, closed.Sub)
			}
			out = append(out, PollEvent{Frame: frame})

		case ConnFailed:
			r.logger.Printf("relay %s: handshake failed: %v", r.URL, ev.Err)
			r.connectFailed(now)
			out = append(out, PollEvent{Status: r.status, StatusChange: true})
			return out

		case ConnClosed:
			r.logger.Printf("relay %s: connection lost: %v", r.URL, ev.Err)
			r.dropConn(now)
			out = append(out, PollEvent{Status: r.status, StatusChange: true})
			return out
		}
	}
}

// Tick runs time-based work: reconnect attempts, cold demotion recovery
// and the idle keepalive ping.
func (r *Relay) Tick(now time.Time) []PollEvent {
	var out []PollEvent

	switch r.status {
	case StatusDisconnected, StatusCold:
		if r.conn == nil && !now.Before(r.nextRetry) {
			r.Connect(now)
			if r.status == StatusConnecting {
				out = append(out, PollEvent{Status: r.status, StatusChange: true})
			}
		}

	case StatusConnected:
		if r.opts.IdlePing > 0 &&
			now.Sub(r.lastActivity) >= r.opts.IdlePing &&
			now.Sub(r.lastPing) >= r.opts.IdlePing {
			if err := r.conn.Ping(); err != nil {
				r.logger.Printf("relay %s: ping failed: %v", r.URL, err)
				r.dropConn(now)
				out = append(out, PollEvent{Status: r.status, StatusChange: true})
				return out
			}
			r.lastPing = now
		}
	}

	return out
}

// Close tears down the transport. The relay is not usable afterwards.
func (r *Relay) Close() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	r.subIDs = make(map[string]struct{})
}

func (r *Relay) onOpened(now time.Time) {
	r.setStatus(StatusConnected)
	r.failures = 0
	r.cold = false
	r.lastActivity = now
	r.lastPing = now

	// Queued subscription state first, then buffered raw frames.
	for _, task := range r.tasks.Drain() {
		switch task.Kind {
		case TaskSubscribe:
			r.subIDs[task.SubID] = struct{}{}
			r.write(protocol.ReqFrame{SubID: task.SubID, Filters: task.Filters})
		case TaskUnsubscribe:
			r.write(protocol.CloseFrame{SubID: task.SubID})
		}
	}
	for _, frame := range r.outbound.Drain() {
		r.write(frame)
	}
}

func (r *Relay) connectFailed(now time.Time) {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	r.failures++
	if r.failures >= r.opts.ColdThreshold {
		wasCold := r.cold
		r.cold = true
		r.setStatus(StatusCold)
		r.nextRetry = now.Add(r.opts.ColdRetryInterval)
		if !wasCold {
			r.sink.Publish(diag.NewColdRelay(string(r.URL), r.failures))
		}
		return
	}
	r.setStatus(StatusDisconnected)
	r.nextRetry = now.Add(r.backoff())
}

// dropConn handles loss of an established connection. Live sub ids are
// cleared; the pool re-subscribes from its records on the next Connected
// transition.
func (r *Relay) dropConn(now time.Time) {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	r.subIDs = make(map[string]struct{})
	r.setStatus(StatusDisconnected)
	r.nextRetry = now.Add(r.backoff())
}

// backoff computes initial * 2^(failures-1) capped at the ceiling, scaled
// by a jitter factor in [0.5, 1.0].
func (r *Relay) backoff() time.Duration {
	d := r.opts.InitialBackoff
	for i := 1; i < r.failures; i++ {
		d *= 2
		if d >= r.opts.MaxBackoff {
			d = r.opts.MaxBackoff
			break
		}
	}
	if d > r.opts.MaxBackoff {
		d = r.opts.MaxBackoff
	}
	factor := 0.5 + 0.5*r.rng()
	return time.Duration(float64(d) * factor)
}

func (r *Relay) setStatus(s Status) {
	if r.status == s {
		return
	}
	r.status = s
	r.sink.Publish(diag.NewConnStatusChanged(string(r.URL), s.String()))
}

func (r *Relay) write(frame protocol.ClientFrame) {
	text, err := frame.Encode()
	if err != nil {
		r.logger.Printf("relay %s: encode failed: %v", r.URL, err)
		return
	}
	if err := r.conn.Send(text); err != nil {
		r.logger.Printf("relay %s: write failed: %v", r.URL, err)
	}
}

func defaultJitter() float64 {
	// Nanosecond clock bits are enough spread for backoff jitter.
	return float64(time.Now().UnixNano()%1000) / 1000.0
}
