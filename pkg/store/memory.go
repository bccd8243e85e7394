package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// Memory is a minimal in-process store. The daemon uses it when no
// external database is wired; it keeps only the lookups the coordination
// layer needs.
type Memory struct {
	mu         sync.RWMutex
	events     map[string]struct{}
	profiles   map[string]struct{}
	relayLists map[string]*nostr.Event
}

func NewMemory() *Memory {
	return &Memory{
		events:     make(map[string]struct{}),
		profiles:   make(map[string]struct{}),
		relayLists: make(map[string]*nostr.Event),
	}
}

func (m *Memory) IngestNote(relayURL string, noteJSON string) error {
	var ev nostr.Event
	if err := json.Unmarshal([]byte(noteJSON), &ev); err != nil {
		return fmt.Errorf("malformed note from %s: %w", relayURL, err)
	}
	if ev.ID == "" {
		return fmt.Errorf("note from %s has no id", relayURL)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[ev.ID] = struct{}{}
	switch ev.Kind {
	case nostr.KindProfileMetadata:
		m.profiles[ev.PubKey] = struct{}{}
	case nostr.KindRelayListMetadata:
		if prev, ok := m.relayLists[ev.PubKey]; !ok || ev.CreatedAt > prev.CreatedAt {
			copied := ev
			m.relayLists[ev.PubKey] = &copied
		}
	}
	return nil
}

func (m *Memory) HasEvent(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.events[id]
	return ok
}

func (m *Memory) HasProfile(pubkey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.profiles[pubkey]
	return ok
}

func (m *Memory) LatestRelayList(pubkey string) *nostr.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.relayLists[pubkey]
}

func (m *Memory) ScanRelayLists(fn func(*nostr.Event) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ev := range m.relayLists {
		if !fn(ev) {
			return
		}
	}
}
