// Package store defines the interface the coordination layer uses to hand
// raw relay frames to the local event database. The database itself lives
// outside this module; it owns signature validation and persistence.
package store

import "github.com/nbd-wtf/go-nostr"

type Store interface {
	// IngestNote hands one raw note object, exactly as it appeared on
	// the wire, to the database. The relay URL is kept for provenance.
	IngestNote(relayURL string, noteJSON string) error

	// HasEvent reports whether the note with the given id is stored.
	HasEvent(id string) bool

	// HasProfile reports whether a kind-0 note for the pubkey is stored.
	HasProfile(pubkey string) bool

	// LatestRelayList returns the newest kind-10002 note for the pubkey,
	// or nil.
	LatestRelayList(pubkey string) *nostr.Event

	// ScanRelayLists visits every stored kind-10002 note until the
	// callback returns false. Used to rebuild the outbox index on
	// startup.
	ScanRelayLists(fn func(*nostr.Event) bool)
}
