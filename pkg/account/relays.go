// Package account derives the active account's read/write relay sets from
// its kind-10002 relay-list notes and notifies listeners when they change.
package account

import (
	"log"
	"reflect"

	"github.com/nbd-wtf/go-nostr"

	"nostr-pool/pkg/protocol"
)

// RelayView is one account's declared relay sets. Read relays are where
// the account looks for mentions and replies; write relays are where its
// own notes are published.
type RelayView struct {
	Read  []protocol.RelayURL
	Write []protocol.RelayURL
}

// ViewFromRelayList computes the view from a kind-10002 note. An "r" tag
// with no marker counts for both directions.
func ViewFromRelayList(ev *nostr.Event) RelayView {
	var view RelayView
	if ev == nil || ev.Kind != nostr.KindRelayListMetadata {
		return view
	}
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[0] != "r" {
			continue
		}
		url, err := protocol.NormalizeURL(tag[1])
		if err != nil {
			continue
		}
		marker := ""
		if len(tag) >= 3 {
			marker = tag[2]
		}
		switch marker {
		case "read":
			view.Read = append(view.Read, url)
		case "write":
			view.Write = append(view.Write, url)
		default:
			view.Read = append(view.Read, url)
			view.Write = append(view.Write, url)
		}
	}
	return view
}

// Tracker holds the active account's current view and tells listeners
// when a newer relay list changes it. Driver loop only.
type Tracker struct {
	pubkey    string
	logger    *log.Logger
	view      RelayView
	newest    nostr.Timestamp
	listeners []func(RelayView)
}

func NewTracker(pubkey string, logger *log.Logger) *Tracker {
	return &Tracker{pubkey: pubkey, logger: logger}
}

func (t *Tracker) Pubkey() string { return t.pubkey }

// View returns the current relay view.
func (t *Tracker) View() RelayView { return t.view }

// OnChange registers a listener invoked whenever the view changes.
func (t *Tracker) OnChange(fn func(RelayView)) {
	t.listeners = append(t.listeners, fn)
}

// Ingest considers one kind-10002 note. Only notes for the tracked
// account that are newer than the current list are applied; listeners
// fire only when the resulting sets actually differ.
func (t *Tracker) Ingest(ev *nostr.Event) {
	if ev == nil || ev.Kind != nostr.KindRelayListMetadata || ev.PubKey != t.pubkey {
		return
	}
	if ev.CreatedAt <= t.newest {
		return
	}
	t.newest = ev.CreatedAt

	next := ViewFromRelayList(ev)
	if reflect.DeepEqual(next, t.view) {
		return
	}
	t.view = next
	t.logger.Printf("account relay list updated: %d read, %d write", len(next.Read), len(next.Write))
	for _, fn := range t.listeners {
		fn(next)
	}
}
