// Package unknownids batches fetches for events and profiles that notes
// reference but the store does not hold yet. One shared pool subscription
// hydrates them in rounds, guided by relay hints from the referencing
// notes.
package unknownids

import (
	"log"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"nostr-pool/pkg/diag"
	"nostr-pool/pkg/protocol"
	"nostr-pool/pkg/store"
)

// PoolSubID is the shared pool sub id every round uses.
const PoolSubID = "unknownids"

// roundKinds bounds what a hydration round asks for: profiles, notes,
// contact lists, reposts and reactions.
var roundKinds = []int{0, 1, 3, 6, 7}

type Kind int

const (
	KindEvent Kind = iota
	KindProfile
)

// UnknownID is one missing reference: an event id or a pubkey.
type UnknownID struct {
	Kind  Kind
	Value string
}

type entry struct {
	hints map[protocol.RelayURL]struct{}
}

type round struct {
	ids    map[UnknownID]*entry
	sentAt time.Time
}

// Options tunes batching and retry behavior.
type Options struct {
	Debounce time.Duration
	Batch    int
	Timeout  time.Duration
	MaxRetry int
}

func DefaultOptions() Options {
	return Options{
		Debounce: 200 * time.Millisecond,
		Batch:    64,
		Timeout:  30 * time.Second,
		MaxRetry: 3,
	}
}

// Batch is one flushed round, ready for dispatch.
type Batch struct {
	Filter  nostr.Filter
	Authors []string
	Hinted  []protocol.RelayURL
}

// Pipeline accumulates unknown ids and flushes them in debounced rounds.
// Driver loop only.
type Pipeline struct {
	store  store.Store
	logger *log.Logger
	sink   diag.Sink
	opts   Options

	pending     map[UnknownID]*entry
	lastUpdated time.Time
	inflight    *round
	retries     map[UnknownID]int
}

func NewPipeline(st store.Store, logger *log.Logger, sink diag.Sink, opts Options) *Pipeline {
	if sink == nil {
		sink = diag.NewNoopSink()
	}
	return &Pipeline{
		store:   st,
		logger:  logger,
		sink:    sink,
		opts:    opts,
		pending: make(map[UnknownID]*entry),
		retries: make(map[UnknownID]int),
	}
}

// Add queues one missing reference with optional relay hints. References
// the store already holds are ignored.
func (p *Pipeline) Add(id UnknownID, hints []protocol.RelayURL, now time.Time) {
	switch id.Kind {
	case KindEvent:
		if p.store.HasEvent(id.Value) {
			return
		}
	case KindProfile:
		if p.store.HasProfile(id.Value) {
			return
		}
	}

	e, ok := p.pending[id]
	if !ok {
		e = &entry{hints: make(map[protocol.RelayURL]struct{})}
		p.pending[id] = e
	}
	for _, h := range hints {
		e.hints[h] = struct{}{}
	}
	p.lastUpdated = now
}

// Scan walks a freshly ingested note for missing references: the author's
// profile, and every e/p tag whose target is not stored. The third tag
// element, when present and valid, is taken as a relay hint.
func (p *Pipeline) Scan(ev *nostr.Event, now time.Time) {
	if ev == nil {
		return
	}
	if !p.store.HasProfile(ev.PubKey) {
		p.Add(UnknownID{Kind: KindProfile, Value: ev.PubKey}, nil, now)
	}
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[1] == "" {
			continue
		}
		var hints []protocol.RelayURL
		if len(tag) >= 3 && tag[2] != "" {
			if url, err := protocol.NormalizeURL(tag[2]); err == nil {
				hints = []protocol.RelayURL{url}
			}
		}
		switch tag[0] {
		case "e":
			if !p.store.HasEvent(tag[1]) {
				p.Add(UnknownID{Kind: KindEvent, Value: tag[1]}, hints, now)
			}
		case "p":
			if !p.store.HasProfile(tag[1]) {
				p.Add(UnknownID{Kind: KindProfile, Value: tag[1]}, hints, now)
			}
		}
	}
}

// ReadyToSend reports whether a round should be flushed: something is
// pending, no round is in flight, and either the debounce window has
// passed since the last addition or the batch threshold is reached.
func (p *Pipeline) ReadyToSend(now time.Time) bool {
	if len(p.pending) == 0 || p.inflight != nil {
		return false
	}
	if len(p.pending) >= p.opts.Batch {
		return true
	}
	return now.Sub(p.lastUpdated) >= p.opts.Debounce
}

// Flush builds one round from everything pending: a single filter with
// the missing event ids, the missing pubkeys, and the round kinds, plus
// the union of all gathered hints. The pending set moves in flight.
func (p *Pipeline) Flush(now time.Time) (Batch, bool) {
	if !p.ReadyToSend(now) {
		return Batch{}, false
	}

	var batch Batch
	hintSet := make(map[protocol.RelayURL]struct{})
	for id, e := range p.pending {
		switch id.Kind {
		case KindEvent:
			batch.Filter.IDs = append(batch.Filter.IDs, id.Value)
		case KindProfile:
			batch.Filter.Authors = append(batch.Filter.Authors, id.Value)
			batch.Authors = append(batch.Authors, id.Value)
		}
		for h := range e.hints {
			hintSet[h] = struct{}{}
		}
	}
	batch.Filter.Kinds = roundKinds
	for h := range hintSet {
		batch.Hinted = append(batch.Hinted, h)
	}

	p.inflight = &round{ids: p.pending, sentAt: now}
	p.pending = make(map[UnknownID]*entry)
	return batch, true
}

// InFlight reports whether a round is outstanding.
func (p *Pipeline) InFlight() bool { return p.inflight != nil }

// Pending returns the number of queued unknown ids.
func (p *Pipeline) Pending() int { return len(p.pending) }

// OnEoseComplete finishes the in-flight round: every relay EOSEd, so the
// retry state for its ids is cleared. Ids the round failed to hydrate are
// only fetched again if a fresh reference re-adds them.
func (p *Pipeline) OnEoseComplete() {
	if p.inflight == nil {
		return
	}
	for id := range p.inflight.ids {
		delete(p.retries, id)
	}
	p.inflight = nil
}

// OnTimeout re-queues the in-flight round when it has outlived the
// oneshot timeout. Ids past the retry cap are dropped with a diagnostic.
// Returns true when the round timed out and the caller should tear down
// the pool subscription.
func (p *Pipeline) OnTimeout(now time.Time) bool {
	if p.inflight == nil || now.Sub(p.inflight.sentAt) < p.opts.Timeout {
		return false
	}

	for id, e := range p.inflight.ids {
		p.retries[id]++
		if p.retries[id] >= p.opts.MaxRetry {
			p.logger.Printf("unknown id %s dropped after %d attempts", id.Value, p.retries[id])
			p.sink.Publish(diag.NewUnknownIDDropped(id.Value, p.retries[id]))
			delete(p.retries, id)
			continue
		}
		if existing, ok := p.pending[id]; ok {
			for h := range e.hints {
				existing.hints[h] = struct{}{}
			}
		} else {
			p.pending[id] = e
		}
	}
	if len(p.pending) > 0 {
		p.lastUpdated = now
	}
	p.inflight = nil
	return true
}
