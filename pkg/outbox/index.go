package outbox

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nbd-wtf/go-nostr"

	"nostr-pool/pkg/protocol"
)

// Source records where a relay association came from.
type Source int

const (
	// SourceNIP65 means a kind-10002 relay-list note.
	SourceNIP65 Source = iota
	// SourceHint means a relay hint embedded in an event tag.
	SourceHint
	// SourceConfigured means explicit user configuration.
	SourceConfigured
)

// Hint is one pubkey->relay association.
type Hint struct {
	URL          protocol.RelayURL
	Source       Source
	LastObserved time.Time
}

type authorEntry struct {
	// hints is ordered most recently observed first.
	hints []Hint
}

// maxAuthors bounds the author table; least-recently-used authors are
// evicted first. The index is in-memory only and is rebuilt from the
// store's relay-list notes on startup.
const maxAuthors = 4096

// Index maintains pubkey -> ranked relay URLs and its inverse. Driver
// loop only; not safe for concurrent use.
type Index struct {
	authors      *lru.Cache[string, *authorEntry]
	capPerAuthor int
}

func NewIndex(capPerAuthor int) (*Index, error) {
	cache, err := lru.New[string, *authorEntry](maxAuthors)
	if err != nil {
		return nil, err
	}
	return &Index{authors: cache, capPerAuthor: capPerAuthor}, nil
}

// Record upserts one association and refreshes its timestamp. The newest
// observation ranks first; entries beyond the per-author cap fall off the
// tail.
func (ix *Index) Record(pubkey string, url protocol.RelayURL, source Source, observed time.Time) {
	entry, ok := ix.authors.Get(pubkey)
	if !ok {
		entry = &authorEntry{}
		ix.authors.Add(pubkey, entry)
	}

	for i, h := range entry.hints {
		if h.URL == url {
			if observed.Before(h.LastObserved) {
				return
			}
			entry.hints = append(entry.hints[:i], entry.hints[i+1:]...)
			break
		}
	}

	entry.hints = append([]Hint{{URL: url, Source: source, LastObserved: observed}}, entry.hints...)
	if len(entry.hints) > ix.capPerAuthor {
		entry.hints = entry.hints[:ix.capPerAuthor]
	}
}

// RecordRelayList ingests a kind-10002 note: every "r" tag whose marker
// allows writes (no marker, or "write") maps the author to that relay.
// That is where the author's own notes are found.
func (ix *Index) RecordRelayList(ev *nostr.Event) {
	if ev == nil || ev.Kind != nostr.KindRelayListMetadata {
		return
	}
	observed := ev.CreatedAt.Time()
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[0] != "r" {
			continue
		}
		if len(tag) >= 3 && tag[2] == "read" {
			continue
		}
		url, err := protocol.NormalizeURL(tag[1])
		if err != nil {
			continue
		}
		ix.Record(ev.PubKey, url, SourceNIP65, observed)
	}
}

// RelaysFor returns the author's relays ranked by recency, newest first,
// capped at the per-author limit.
func (ix *Index) RelaysFor(pubkey string) []protocol.RelayURL {
	entry, ok := ix.authors.Get(pubkey)
	if !ok {
		return nil
	}
	out := make([]protocol.RelayURL, 0, len(entry.hints))
	for _, h := range entry.hints {
		out = append(out, h.URL)
	}
	return out
}

// HintsFor returns the full hint entries for diagnostics.
func (ix *Index) HintsFor(pubkey string) []Hint {
	entry, ok := ix.authors.Get(pubkey)
	if !ok {
		return nil
	}
	out := make([]Hint, len(entry.hints))
	copy(out, entry.hints)
	return out
}

// AuthorsAt returns every known author associated with the relay. Used
// for diagnostics and to decide which subscriptions to re-dispatch when
// a relay is added.
func (ix *Index) AuthorsAt(url protocol.RelayURL) []string {
	var out []string
	for _, pubkey := range ix.authors.Keys() {
		entry, ok := ix.authors.Peek(pubkey)
		if !ok {
			continue
		}
		for _, h := range entry.hints {
			if h.URL == url {
				out = append(out, pubkey)
				break
			}
		}
	}
	return out
}

// Len returns the number of tracked authors.
func (ix *Index) Len() int { return ix.authors.Len() }
