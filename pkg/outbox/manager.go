package outbox

import (
	"nostr-pool/pkg/protocol"
)

// PoolView is the slice of pool state plan construction needs.
type PoolView interface {
	Has(url protocol.RelayURL) bool
	IsCold(url protocol.RelayURL) bool
	IsPinned(url protocol.RelayURL) bool
}

// Request describes one outbound subscription for planning purposes.
type Request struct {
	Authors     []string
	Hinted      []protocol.RelayURL
	AccountRead []protocol.RelayURL
}

// Plan is the chosen relay set, split by whether each relay is already a
// pool member. Rationale is per-relay, for observability only.
type Plan struct {
	Reuse     []protocol.RelayURL
	Ephemeral []protocol.RelayURL
	Rationale map[protocol.RelayURL]string
}

// All returns the full target set, reuse first.
func (p Plan) All() []protocol.RelayURL {
	out := make([]protocol.RelayURL, 0, len(p.Reuse)+len(p.Ephemeral))
	out = append(out, p.Reuse...)
	out = append(out, p.Ephemeral...)
	return out
}

// Manager builds relay plans from the index and tracks which subscriptions
// hold which ephemeral (short-lived fallback) relays. Driver loop only.
type Manager struct {
	index     *Index
	authorsK  int
	maxFanout int

	// holders maps an ephemeral relay to the pool sub ids keeping it open.
	holders    map[protocol.RelayURL]map[string]struct{}
	releasable map[protocol.RelayURL]struct{}
}

func NewManager(index *Index, authorsK, maxFanout int) *Manager {
	return &Manager{
		index:      index,
		authorsK:   authorsK,
		maxFanout:  maxFanout,
		holders:    make(map[protocol.RelayURL]map[string]struct{}),
		releasable: make(map[protocol.RelayURL]struct{}),
	}
}

// origin classes, in cap-preference order.
const (
	originAccount = iota
	originHinted
	originAuthor
)

type candidate struct {
	url    protocol.RelayURL
	origin int
}

// Plan chooses the relay set for a request:
//
//  1. the account read set is always included,
//  2. up to K relays per author from the index,
//  3. hinted relays exactly as given,
//  4. cold relays are dropped unless account-read or pinned,
//  5. fanout is capped, preferring account > hinted > author,
//  6. the result is split into pool members and ephemeral connections.
func (m *Manager) Plan(req Request, view PoolView) Plan {
	seen := make(map[protocol.RelayURL]int)
	var candidates []candidate

	add := func(url protocol.RelayURL, origin int) {
		if prev, ok := seen[url]; ok {
			if origin < prev {
				seen[url] = origin
				for i := range candidates {
					if candidates[i].url == url {
						candidates[i].origin = origin
						break
					}
				}
			}
			return
		}
		seen[url] = origin
		candidates = append(candidates, candidate{url: url, origin: origin})
	}

	for _, url := range req.AccountRead {
		add(url, originAccount)
	}
	for _, author := range req.Authors {
		relays := m.index.RelaysFor(author)
		if len(relays) > m.authorsK {
			relays = relays[:m.authorsK]
		}
		for _, url := range relays {
			add(url, originAuthor)
		}
	}
	for _, url := range req.Hinted {
		add(url, originHinted)
	}

	plan := Plan{Rationale: make(map[protocol.RelayURL]string)}
	taken := 0

	// Account relays ride above the cap; hinted then author-derived fill
	// the remaining slots in insertion order.
	for _, origin := range []int{originAccount, originHinted, originAuthor} {
		for _, c := range candidates {
			if c.origin != origin {
				continue
			}
			if origin != originAccount {
				if taken >= m.maxFanout {
					continue
				}
				if view.IsCold(c.url) && !view.IsPinned(c.url) {
					continue
				}
			}
			taken++
			plan.Rationale[c.url] = originName(origin)
			if view.Has(c.url) {
				plan.Reuse = append(plan.Reuse, c.url)
			} else {
				plan.Ephemeral = append(plan.Ephemeral, c.url)
			}
		}
	}

	return plan
}

func originName(origin int) string {
	switch origin {
	case originAccount:
		return "account-read"
	case originHinted:
		return "hinted"
	default:
		return "author-index"
	}
}

// BeginRequest marks the plan's ephemeral relays as held by the given
// pool sub id.
func (m *Manager) BeginRequest(poolID string, plan Plan) {
	for _, url := range plan.Ephemeral {
		set, ok := m.holders[url]
		if !ok {
			set = make(map[string]struct{})
			m.holders[url] = set
		}
		set[poolID] = struct{}{}
		delete(m.releasable, url)
	}
}

// FinishRequest releases the sub's hold on its ephemeral relays. Relays
// with no holders left become releasable and are removed from the pool on
// the next idle tick.
func (m *Manager) FinishRequest(poolID string) {
	for url, set := range m.holders {
		delete(set, poolID)
		if len(set) == 0 {
			delete(m.holders, url)
			m.releasable[url] = struct{}{}
		}
	}
}

// TakeReleasable returns the ephemeral relays ready for removal and
// clears the set.
func (m *Manager) TakeReleasable() []protocol.RelayURL {
	if len(m.releasable) == 0 {
		return nil
	}
	out := make([]protocol.RelayURL, 0, len(m.releasable))
	for url := range m.releasable {
		out = append(out, url)
	}
	m.releasable = make(map[protocol.RelayURL]struct{})
	return out
}
