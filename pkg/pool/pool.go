package pool

import (
	"fmt"
	"log"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"nostr-pool/pkg/diag"
	"nostr-pool/pkg/protocol"
	"nostr-pool/pkg/relay"
)

// Mode controls a subscription's lifetime.
type Mode int

const (
	// Streaming subscriptions stay open after EOSE.
	Streaming Mode = iota
	// Oneshot subscriptions are torn down once every targeted relay
	// has delivered EOSE.
	Oneshot
)

// AddResult reports whether Add created a new relay.
type AddResult int

const (
	Added AddResult = iota
	AlreadyPresent
)

// SubscriptionRecord is the pool-side state of one logical subscription.
// Relays maps each targeted relay to the per-relay sub id in use there.
type SubscriptionRecord struct {
	ID      string
	Filters []nostr.Filter
	Mode    Mode
	Relays  map[protocol.RelayURL]string
	GotEOSE map[protocol.RelayURL]bool
}

// eoseComplete reports whether every currently targeted relay has EOSEd.
func (r *SubscriptionRecord) eoseComplete() bool {
	if len(r.Relays) == 0 {
		return false
	}
	for url := range r.Relays {
		if !r.GotEOSE[url] {
			return false
		}
	}
	return true
}

// Event is one unit of the pool's poll output: an inbound frame rewritten
// to carry the pool-level sub id, or a relay status transition.
type Event struct {
	URL          protocol.RelayURL
	Frame        protocol.RelayFrame
	Status       relay.Status
	StatusChange bool
}

// Pool owns the set of relays and the demultiplexing tables. It is
// single-writer: only the driver loop may call into it. App threads
// reach it through the coordinator's request queue.
type Pool struct {
	dialer relay.Dialer
	opts   relay.Options
	logger *log.Logger
	sink   diag.Sink
	clock  diag.Clock

	relays map[protocol.RelayURL]*relay.Relay
	order  []protocol.RelayURL

	records map[string]*SubscriptionRecord
	// relaySubs maps (relay, per-relay sub id) -> pool sub id.
	relaySubs map[protocol.RelayURL]map[string]string

	aliasCounter uint64
	onWake       func()

	finishedOneshots []string
}

func New(dialer relay.Dialer, opts relay.Options, logger *log.Logger, sink diag.Sink, clock diag.Clock) *Pool {
	if sink == nil {
		sink = diag.NewNoopSink()
	}
	if clock == nil {
		clock = diag.RealClock{}
	}
	return &Pool{
		dialer:    dialer,
		opts:      opts,
		logger:    logger,
		sink:      sink,
		clock:     clock,
		relays:    make(map[protocol.RelayURL]*relay.Relay),
		records:   make(map[string]*SubscriptionRecord),
		relaySubs: make(map[protocol.RelayURL]map[string]string),
	}
}

// Add registers a relay and starts connecting. Idempotent by normalized
// URL. The wake callback is stored once per pool; later calls may pass nil.
func (p *Pool) Add(url protocol.RelayURL, onWake func()) AddResult {
	if p.onWake == nil && onWake != nil {
		p.onWake = onWake
	}
	if _, ok := p.relays[url]; ok {
		return AlreadyPresent
	}
	r := relay.New(url, p.dialer, p.opts, p.logger, p.sink, p.onWake)
	p.relays[url] = r
	p.order = append(p.order, url)
	p.relaySubs[url] = make(map[string]string)
	r.Connect(p.clock.Now())
	return Added
}

// Remove tears the relay down. Records that still list it drop the entry
// but stay alive on their remaining relays.
func (p *Pool) Remove(url protocol.RelayURL) {
	r, ok := p.relays[url]
	if !ok {
		return
	}
	r.Close()
	delete(p.relays, url)
	delete(p.relaySubs, url)
	for i, u := range p.order {
		if u == url {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	for _, rec := range p.records {
		delete(rec.Relays, url)
		delete(rec.GotEOSE, url)
	}
}

// Has reports whether the relay is in the pool.
func (p *Pool) Has(url protocol.RelayURL) bool {
	_, ok := p.relays[url]
	return ok
}

// IsCold reports whether the relay is in the slow-retry state. Unknown
// relays are not cold.
func (p *Pool) IsCold(url protocol.RelayURL) bool {
	r, ok := p.relays[url]
	return ok && r.IsCold()
}

// IsPinned reports whether the relay is user-pinned.
func (p *Pool) IsPinned(url protocol.RelayURL) bool {
	r, ok := p.relays[url]
	return ok && r.Pinned()
}

// Relay exposes a pool member, mainly for pinning. Returns nil when the
// URL is not in the pool.
func (p *Pool) Relay(url protocol.RelayURL) *relay.Relay {
	return p.relays[url]
}

// URLs returns the pool members in insertion order.
func (p *Pool) URLs() []protocol.RelayURL {
	out := make([]protocol.RelayURL, len(p.order))
	copy(out, p.order)
	return out
}

// Statuses returns the current status of every pool member.
func (p *Pool) Statuses() map[protocol.RelayURL]relay.Status {
	out := make(map[protocol.RelayURL]relay.Status, len(p.relays))
	for url, r := range p.relays {
		out[url] = r.Status()
	}
	return out
}

// Broadcast enqueues the frame on every listed target that exists in the
// pool; unknown targets are silently ignored.
func (p *Pool) Broadcast(frame protocol.ClientFrame, targets []protocol.RelayURL) {
	for _, url := range targets {
		if r, ok := p.relays[url]; ok {
			r.Send(frame)
		}
	}
}

// Subscribe creates or retargets the record for the given pool sub id.
// New targets get a fresh per-relay sub id and a REQ; targets no longer
// listed get a CLOSE, removals first.
func (p *Pool) Subscribe(poolID string, filters []nostr.Filter, targets []protocol.RelayURL, mode Mode) {
	rec, ok := p.records[poolID]
	if !ok {
		rec = &SubscriptionRecord{
			ID:      poolID,
			Relays:  make(map[protocol.RelayURL]string),
			GotEOSE: make(map[protocol.RelayURL]bool),
		}
		p.records[poolID] = rec
	}
	rec.Filters = filters
	rec.Mode = mode

	want := make(map[protocol.RelayURL]bool, len(targets))
	for _, url := range targets {
		if p.Has(url) {
			want[url] = true
		}
	}

	for url, rsid := range rec.Relays {
		if want[url] {
			continue
		}
		p.relays[url].Unsubscribe(rsid)
		delete(p.relaySubs[url], rsid)
		delete(rec.Relays, url)
		delete(rec.GotEOSE, url)
	}

	for url := range want {
		if _, ok := rec.Relays[url]; ok {
			continue
		}
		rsid := p.nextRelaySubID()
		rec.Relays[url] = rsid
		p.relaySubs[url][rsid] = poolID
		p.relays[url].Subscribe(rsid, filters)
	}
}

// Unsubscribe closes the subscription on every relay and drops the record.
func (p *Pool) Unsubscribe(poolID string) {
	rec, ok := p.records[poolID]
	if !ok {
		return
	}
	for url, rsid := range rec.Relays {
		if r, exists := p.relays[url]; exists {
			r.Unsubscribe(rsid)
		}
		delete(p.relaySubs[url], rsid)
	}
	delete(p.records, poolID)
}

// Record returns the live record for a pool sub id, or nil.
func (p *Pool) Record(poolID string) *SubscriptionRecord {
	return p.records[poolID]
}

// Poll drains every relay and returns the demultiplexed events. Frames
// carrying an unknown per-relay sub id are dropped; a CLOSED arriving
// after unsubscribe is expected noise.
func (p *Pool) Poll(now time.Time) []Event {
	var out []Event
	for _, url := range p.order {
		r := p.relays[url]
		for _, ev := range r.Poll(now) {
			out = append(out, p.handle(url, r, ev)...)
		}
	}
	return out
}

// Tick runs every relay's time-based work and returns any resulting
// status transitions.
func (p *Pool) Tick(now time.Time) []Event {
	var out []Event
	for _, url := range p.order {
		for _, ev := range p.relays[url].Tick(now) {
			out = append(out, p.handle(url, p.relays[url], ev)...)
		}
	}
	return out
}

// FinishedOneshots returns the pool sub ids of oneshot subscriptions torn
// down since the last call.
func (p *Pool) FinishedOneshots() []string {
	out := p.finishedOneshots
	p.finishedOneshots = nil
	return out
}

func (p *Pool) handle(url protocol.RelayURL, r *relay.Relay, ev relay.PollEvent) []Event {
	if ev.StatusChange {
		if ev.Status == relay.StatusConnected {
			p.resubscribe(url, r)
		}
		return []Event{{URL: url, Status: ev.Status, StatusChange: true}}
	}

	switch frame := ev.Frame.(type) {
	case protocol.EventMsg:
		poolID, ok := p.relaySubs[url][frame.Sub]
		if !ok {
			return nil
		}
		return []Event{{URL: url, Frame: protocol.EventMsg{Sub: poolID, EventJSON: frame.EventJSON}}}

	case protocol.EoseMsg:
		poolID, ok := p.relaySubs[url][frame.Sub]
		if !ok {
			return nil
		}
		out := []Event{{URL: url, Frame: protocol.EoseMsg{Sub: poolID}}}
		if rec := p.records[poolID]; rec != nil {
			rec.GotEOSE[url] = true
			if rec.Mode == Oneshot && rec.eoseComplete() {
				p.Unsubscribe(poolID)
				p.finishedOneshots = append(p.finishedOneshots, poolID)
			}
		}
		return out

	case protocol.ClosedMsg:
		poolID, ok := p.relaySubs[url][frame.Sub]
		if !ok {
			return nil
		}
		// Dead on this relay only; the record lives on elsewhere.
		p.sink.Publish(diag.NewSubscriptionClosed(string(url), poolID, frame.Reason))
		if rec := p.records[poolID]; rec != nil {
			delete(rec.Relays, url)
			delete(rec.GotEOSE, url)
			// A oneshot with no relays left, or whose remaining relays
			// have all EOSEd, will never finish on its own.
			if rec.Mode == Oneshot && (len(rec.Relays) == 0 || rec.eoseComplete()) {
				p.Unsubscribe(poolID)
				p.finishedOneshots = append(p.finishedOneshots, poolID)
			}
		}
		delete(p.relaySubs[url], frame.Sub)
		return []Event{{URL: url, Frame: protocol.ClosedMsg{Sub: poolID, Reason: frame.Reason}}}

	case protocol.OkMsg:
		p.sink.Publish(diag.NewPublishResult(string(url), frame.EventID, frame.Accepted, frame.Reason))
		return []Event{{URL: url, Frame: frame}}

	case protocol.NoticeMsg:
		p.logger.Printf("relay %s: NOTICE: %s", url, frame.Message)
		return []Event{{URL: url, Frame: frame}}

	default:
		return []Event{{URL: url, Frame: ev.Frame}}
	}
}

// resubscribe re-issues REQ for every record still targeting this relay.
// The per-relay sub id is reused so the demux tables stay valid.
func (p *Pool) resubscribe(url protocol.RelayURL, r *relay.Relay) {
	live := r.SubIDs()
	for _, rec := range p.records {
		rsid, ok := rec.Relays[url]
		if !ok {
			continue
		}
		// Queued tasks drained during the handshake are already live.
		if _, onWire := live[rsid]; onWire {
			continue
		}
		rec.GotEOSE[url] = false
		r.Subscribe(rsid, rec.Filters)
	}
}

func (p *Pool) nextRelaySubID() string {
	p.aliasCounter++
	return fmt.Sprintf("p%x", p.aliasCounter)
}
