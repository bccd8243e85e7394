package testutil

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// MemoryStore is an in-memory store.Store for tests. It records every
// ingest call and keeps just enough state to answer the lookup methods.
type MemoryStore struct {
	mu sync.Mutex

	IngestCalls []IngestCall
	IngestErr   error

	events     map[string]*nostr.Event
	profiles   map[string]bool
	relayLists map[string]*nostr.Event
}

type IngestCall struct {
	RelayURL string
	NoteJSON string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:     make(map[string]*nostr.Event),
		profiles:   make(map[string]bool),
		relayLists: make(map[string]*nostr.Event),
	}
}

func (s *MemoryStore) IngestNote(relayURL string, noteJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.IngestCalls = append(s.IngestCalls, IngestCall{RelayURL: relayURL, NoteJSON: noteJSON})
	if s.IngestErr != nil {
		return s.IngestErr
	}

	var ev nostr.Event
	if err := json.Unmarshal([]byte(noteJSON), &ev); err != nil {
		return fmt.Errorf("ingest note: %w", err)
	}
	s.put(&ev)
	return nil
}

// Put seeds the store directly, bypassing the ingest path.
func (s *MemoryStore) Put(ev *nostr.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(ev)
}

func (s *MemoryStore) put(ev *nostr.Event) {
	s.events[ev.ID] = ev
	switch ev.Kind {
	case 0:
		s.profiles[ev.PubKey] = true
	case nostr.KindRelayListMetadata:
		prev, ok := s.relayLists[ev.PubKey]
		if !ok || ev.CreatedAt > prev.CreatedAt {
			s.relayLists[ev.PubKey] = ev
		}
	}
}

func (s *MemoryStore) HasEvent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[id]
	return ok
}

func (s *MemoryStore) HasProfile(pubkey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[pubkey]
}

func (s *MemoryStore) LatestRelayList(pubkey string) *nostr.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relayLists[pubkey]
}

func (s *MemoryStore) ScanRelayLists(fn func(*nostr.Event) bool) {
	s.mu.Lock()
	lists := make([]*nostr.Event, 0, len(s.relayLists))
	for _, ev := range s.relayLists {
		lists = append(lists, ev)
	}
	s.mu.Unlock()

	for _, ev := range lists {
		if !fn(ev) {
			return
		}
	}
}
