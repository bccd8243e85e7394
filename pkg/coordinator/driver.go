// Package coordinator owns the driver loop that ties the pool, the outbox
// planner, the scoped-subscription runtime and the unknown-ids pipeline
// together. All relay and planning state is confined to the loop; app
// threads reach it through a bounded request queue.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"nostr-pool/pkg/account"
	"nostr-pool/pkg/config"
	"nostr-pool/pkg/diag"
	"nostr-pool/pkg/outbox"
	"nostr-pool/pkg/pool"
	"nostr-pool/pkg/protocol"
	"nostr-pool/pkg/relay"
	"nostr-pool/pkg/scoped"
	"nostr-pool/pkg/store"
	"nostr-pool/pkg/unknownids"
)

const (
	// requestBuffer bounds the app-to-driver queue. Requests beyond it
	// are dropped with a diagnostic rather than blocking the caller.
	requestBuffer = 1024

	// tickInterval drives timers (backoff, pings, debounce) when no
	// wake arrives.
	tickInterval = 50 * time.Millisecond
)

// Driver runs the coordination loop.
type Driver struct {
	cfg    *config.Config
	logger *log.Logger
	sink   diag.Sink
	clock  diag.Clock
	st     store.Store

	pool     *pool.Pool
	index    *outbox.Index
	manager  *outbox.Manager
	runtime  *scoped.Runtime
	tracker  *account.Tracker
	unknowns *unknownids.Pipeline

	requests chan func()
	wake     chan struct{}
	subSeq   uint64

	// frameHandler receives every demultiplexed frame and status change.
	// Set before Run; called on the driver loop.
	frameHandler func(pool.Event)
}

func New(cfg *config.Config, st store.Store, dialer relay.Dialer, logger *log.Logger, sink diag.Sink, clock diag.Clock) (*Driver, error) {
	if sink == nil {
		sink = diag.NewNoopSink()
	}
	if clock == nil {
		clock = diag.RealClock{}
	}

	index, err := outbox.NewIndex(cfg.Outbox.HintsCapPerPubkey)
	if err != nil {
		return nil, fmt.Errorf("building outbox index: %w", err)
	}

	d := &Driver{
		cfg:      cfg,
		logger:   logger,
		sink:     sink,
		clock:    clock,
		st:       st,
		index:    index,
		requests: make(chan func(), requestBuffer),
		wake:     make(chan struct{}, 1),
	}

	d.manager = outbox.NewManager(index, cfg.Outbox.AuthorsK, cfg.Outbox.MaxFanout)
	d.pool = pool.New(dialer, cfg.RelayOptions(), logger, sink, clock)
	d.tracker = account.NewTracker(cfg.AccountPubkey, logger)
	d.runtime = scoped.NewRuntime(d.pool, d.manager, logger, d.accountRead, d.nextSubID)
	d.unknowns = unknownids.NewPipeline(st, logger, sink, cfg.UnknownIDOptions())

	// Tracker callbacks fire inside ingest, already on the loop.
	d.tracker.OnChange(func(account.RelayView) {
		d.runtime.OnRelayListChange()
	})

	return d, nil
}

// OnFrame registers the app-side frame handler. Must be set before Run.
func (d *Driver) OnFrame(fn func(pool.Event)) {
	d.frameHandler = fn
}

// Index exposes the outbox index for read-only inspection in tests.
func (d *Driver) Index() *outbox.Index { return d.index }

// Pool exposes the pool for read-only inspection in tests.
func (d *Driver) Pool() *pool.Pool { return d.pool }

// Start seeds loop state: the outbox index is rebuilt from stored relay
// lists, the account tracker picks up its newest list, and the configured
// relays are opened.
func (d *Driver) Start(now time.Time) {
	if d.st != nil {
		d.st.ScanRelayLists(func(ev *nostr.Event) bool {
			d.index.RecordRelayList(ev)
			return true
		})
		if d.tracker.Pubkey() != "" {
			if ev := d.st.LatestRelayList(d.tracker.Pubkey()); ev != nil {
				d.tracker.Ingest(ev)
			}
		}
	}

	for _, raw := range d.cfg.Relays {
		d.pool.Add(protocol.RelayURL(raw), d.signalWake)
	}
	for _, raw := range d.cfg.PinnedRelays {
		url := protocol.RelayURL(raw)
		d.pool.Add(url, d.signalWake)
		if r := d.pool.Relay(url); r != nil {
			r.SetPinned(true)
		}
	}
}

// Run blocks until ctx is done, alternating between wake signals and the
// timer tick.
func (d *Driver) Run(ctx context.Context) error {
	d.Start(d.clock.Now())

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return ctx.Err()
		case <-d.wake:
			d.Tick(d.clock.Now())
		case <-ticker.C:
			d.Tick(d.clock.Now())
		}
	}
}

// Tick runs one loop iteration: queued app requests first, then relay
// I/O, then the pipelines that feed off what arrived.
func (d *Driver) Tick(now time.Time) {
	d.drainRequests()

	events := d.pool.Poll(now)
	events = append(events, d.pool.Tick(now)...)
	for _, ev := range events {
		d.handleEvent(ev, now)
	}

	for _, poolID := range d.pool.FinishedOneshots() {
		if poolID == unknownids.PoolSubID {
			d.unknowns.OnEoseComplete()
			d.manager.FinishRequest(poolID)
			continue
		}
		d.runtime.ReleaseFinished(poolID)
	}

	if d.unknowns.OnTimeout(now) {
		d.pool.Unsubscribe(unknownids.PoolSubID)
		d.manager.FinishRequest(unknownids.PoolSubID)
	}
	if batch, ok := d.unknowns.Flush(now); ok {
		d.dispatchUnknowns(batch)
	}

	for _, url := range d.manager.TakeReleasable() {
		d.pool.Remove(url)
	}
}

// EnsureSub asks the loop to hold a subscription for the slot. Safe from
// any goroutine.
func (d *Driver) EnsureSub(owner scoped.OwnerKey, key scoped.SubKey, spec scoped.SubSpec) {
	d.enqueue(func() {
		d.runtime.EnsureSub(scoped.Identity{Owner: owner, Key: key}, spec)
	})
}

// DropSub tears down the slot's subscription. Safe from any goroutine.
func (d *Driver) DropSub(owner scoped.OwnerKey, key scoped.SubKey) {
	d.enqueue(func() {
		d.runtime.DropSub(scoped.Identity{Owner: owner, Key: key})
	})
}

// DropOwner tears down every slot the owner holds. Safe from any goroutine.
func (d *Driver) DropOwner(owner scoped.OwnerKey) {
	d.enqueue(func() {
		d.runtime.DropOwner(owner)
	})
}

// PublishNote broadcasts a signed note. Nil targets means the account's
// write relays, falling back to the configured set when no relay list is
// known. Safe from any goroutine.
func (d *Driver) PublishNote(noteJSON string, targets []protocol.RelayURL) {
	d.enqueue(func() {
		if targets == nil {
			targets = d.accountWrite()
		}
		d.pool.Broadcast(protocol.EventFrame{EventJSON: noteJSON}, targets)
	})
}

func (d *Driver) enqueue(fn func()) {
	select {
	case d.requests <- fn:
		d.signalWake()
	default:
		d.logger.Printf("coordinator: request queue full, dropping request")
		d.sink.Publish(diag.NewCoordinatorError(fmt.Errorf("request queue full"), "enqueue", diag.SeverityWarning))
	}
}

func (d *Driver) drainRequests() {
	for {
		select {
		case fn := <-d.requests:
			fn()
		default:
			return
		}
	}
}

func (d *Driver) signalWake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Driver) handleEvent(ev pool.Event, now time.Time) {
	if !ev.StatusChange {
		if frame, ok := ev.Frame.(protocol.EventMsg); ok {
			d.ingest(string(ev.URL), frame.EventJSON, now)
		}
	}
	if d.frameHandler != nil {
		d.frameHandler(ev)
	}
}

// ingest hands the raw note to the store and feeds the pipelines that
// watch the inbound stream.
func (d *Driver) ingest(url, noteJSON string, now time.Time) {
	var ev nostr.Event
	if err := json.Unmarshal([]byte(noteJSON), &ev); err != nil {
		d.sink.Publish(diag.NewProtocolError(url, fmt.Errorf("malformed note: %w", err)))
		return
	}

	if err := d.st.IngestNote(url, noteJSON); err != nil {
		d.logger.Printf("ingest from %s failed: %v", url, err)
		d.sink.Publish(diag.NewCoordinatorError(err, "ingest", diag.SeverityError))
		return
	}
	d.sink.Publish(diag.NewNoteIngested(url, ev.Kind, ev.ID))

	d.unknowns.Scan(&ev, now)

	if ev.Kind == nostr.KindRelayListMetadata {
		d.index.RecordRelayList(&ev)
		d.tracker.Ingest(&ev)
	}
}

// dispatchUnknowns turns one flushed batch into a oneshot round over the
// planned relay set.
func (d *Driver) dispatchUnknowns(batch unknownids.Batch) {
	req := outbox.Request{
		Authors:     batch.Authors,
		Hinted:      batch.Hinted,
		AccountRead: d.accountRead(),
	}
	plan := d.manager.Plan(req, d.pool)

	for _, url := range plan.Ephemeral {
		d.pool.Add(url, d.signalWake)
	}
	d.manager.BeginRequest(unknownids.PoolSubID, plan)
	d.pool.Subscribe(unknownids.PoolSubID, []nostr.Filter{batch.Filter}, plan.All(), pool.Oneshot)
}

// accountRead is the read set: the account's declared read relays, or the
// configured relays until a relay list is known.
func (d *Driver) accountRead() []protocol.RelayURL {
	if read := d.tracker.View().Read; len(read) > 0 {
		return read
	}
	return d.configuredRelays()
}

func (d *Driver) accountWrite() []protocol.RelayURL {
	if write := d.tracker.View().Write; len(write) > 0 {
		return write
	}
	return d.configuredRelays()
}

func (d *Driver) configuredRelays() []protocol.RelayURL {
	out := make([]protocol.RelayURL, 0, len(d.cfg.Relays))
	for _, raw := range d.cfg.Relays {
		out = append(out, protocol.RelayURL(raw))
	}
	return out
}

func (d *Driver) nextSubID() string {
	d.subSeq++
	return fmt.Sprintf("sub%d", d.subSeq)
}

func (d *Driver) shutdown() {
	for _, url := range d.pool.URLs() {
		d.pool.Remove(url)
	}
}
