// Package scoped keys pool subscriptions by (owner, identity) slots so
// that UI surfaces can churn without leaking subscriptions: each slot
// holds at most one live pool subscription, and replacing a slot tears
// the previous one down first.
package scoped

import (
	"bytes"
	"encoding/json"
	"hash/fnv"
	"log"

	"github.com/nbd-wtf/go-nostr"

	"nostr-pool/pkg/outbox"
	"nostr-pool/pkg/pool"
	"nostr-pool/pkg/protocol"
)

// OwnerKey names the surface that owns a group of slots, e.g. one column
// or one view.
type OwnerKey string

// SubKey distinguishes slots within an owner.
type SubKey uint64

// KeyFor derives a SubKey from the parts that make the slot unique.
func KeyFor(parts ...string) SubKey {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return SubKey(h.Sum64())
}

// Identity addresses one slot.
type Identity struct {
	Owner OwnerKey
	Key   SubKey
}

// SubSpec describes what a slot subscribes to. Two specs are the same
// subscription iff they are structurally equal.
type SubSpec struct {
	Filters []nostr.Filter
	Authors []string
	Relays  []protocol.RelayURL // explicit relay hints
	Mode    pool.Mode
	// FollowsAccountRelayList marks the slot for re-dispatch whenever
	// the active account's read set changes.
	FollowsAccountRelayList bool
}

func specEqual(a, b SubSpec) bool {
	ja, erra := json.Marshal(a)
	jb, errb := json.Marshal(b)
	return erra == nil && errb == nil && bytes.Equal(ja, jb)
}

type slot struct {
	poolID string
	spec   SubSpec
	plan   outbox.Plan
}

// Runtime owns the slot tables. Driver loop only; app threads reach it
// through the coordinator's request queue.
type Runtime struct {
	pool    *pool.Pool
	manager *outbox.Manager
	logger  *log.Logger

	// accountRead supplies the active account's current read set.
	accountRead func() []protocol.RelayURL
	// allocID mints pool sub ids; the coordinator allocates them
	// app-side from a counter.
	allocID func() string

	owners map[OwnerKey]map[SubKey]struct{}
	slots  map[Identity]*slot
}

func NewRuntime(p *pool.Pool, manager *outbox.Manager, logger *log.Logger, accountRead func() []protocol.RelayURL, allocID func() string) *Runtime {
	return &Runtime{
		pool:        p,
		manager:     manager,
		logger:      logger,
		accountRead: accountRead,
		allocID:     allocID,
		owners:      make(map[OwnerKey]map[SubKey]struct{}),
		slots:       make(map[Identity]*slot),
	}
}

// EnsureSub makes the slot hold a live subscription matching spec and
// returns its pool sub id. Unchanged specs are a no-op returning the
// existing id. A changed spec tears the old subscription down before the
// new REQs go out, so relays in both plans see CLOSE before REQ.
func (rt *Runtime) EnsureSub(id Identity, spec SubSpec) string {
	if sl, ok := rt.slots[id]; ok {
		if specEqual(sl.spec, spec) {
			return sl.poolID
		}
		rt.teardown(sl)
	}

	poolID := rt.allocID()
	plan := rt.dispatch(poolID, spec)
	rt.slots[id] = &slot{poolID: poolID, spec: spec, plan: plan}

	set, ok := rt.owners[id.Owner]
	if !ok {
		set = make(map[SubKey]struct{})
		rt.owners[id.Owner] = set
	}
	set[id.Key] = struct{}{}

	return poolID
}

// DropSub tears down and forgets the slot.
func (rt *Runtime) DropSub(id Identity) {
	sl, ok := rt.slots[id]
	if !ok {
		return
	}
	rt.teardown(sl)
	delete(rt.slots, id)
	if set, ok := rt.owners[id.Owner]; ok {
		delete(set, id.Key)
		if len(set) == 0 {
			delete(rt.owners, id.Owner)
		}
	}
}

// DropOwner tears down every slot under the owner.
func (rt *Runtime) DropOwner(owner OwnerKey) {
	set, ok := rt.owners[owner]
	if !ok {
		return
	}
	for key := range set {
		id := Identity{Owner: owner, Key: key}
		if sl, ok := rt.slots[id]; ok {
			rt.teardown(sl)
			delete(rt.slots, id)
		}
	}
	delete(rt.owners, owner)
}

// OnRelayListChange re-dispatches every slot that follows the account
// relay list. The pool sub id is kept, so the pool's retargeting diff
// sends CLOSE only to dropped relays and REQ only to added ones.
func (rt *Runtime) OnRelayListChange() {
	for _, sl := range rt.slots {
		if !sl.spec.FollowsAccountRelayList {
			continue
		}
		rt.manager.FinishRequest(sl.poolID)
		sl.plan = rt.dispatch(sl.poolID, sl.spec)
	}
}

// PoolID returns the slot's live pool sub id, or "".
func (rt *Runtime) PoolID(id Identity) string {
	if sl, ok := rt.slots[id]; ok {
		return sl.poolID
	}
	return ""
}

// OwnerOf finds which slot a pool sub id belongs to.
func (rt *Runtime) OwnerOf(poolID string) (Identity, bool) {
	for id, sl := range rt.slots {
		if sl.poolID == poolID {
			return id, true
		}
	}
	return Identity{}, false
}

// ReleaseFinished drops slot state for a oneshot the pool tore down on
// its own, freeing any ephemeral relays it held.
func (rt *Runtime) ReleaseFinished(poolID string) {
	rt.manager.FinishRequest(poolID)
	if id, ok := rt.OwnerOf(poolID); ok {
		delete(rt.slots, id)
		if set, ok := rt.owners[id.Owner]; ok {
			delete(set, id.Key)
			if len(set) == 0 {
				delete(rt.owners, id.Owner)
			}
		}
	}
}

func (rt *Runtime) dispatch(poolID string, spec SubSpec) outbox.Plan {
	req := outbox.Request{Authors: spec.Authors, Hinted: spec.Relays}
	if spec.FollowsAccountRelayList {
		req.AccountRead = rt.accountRead()
	}
	plan := rt.manager.Plan(req, rt.pool)
	for _, url := range plan.Ephemeral {
		rt.pool.Add(url, nil)
	}
	rt.manager.BeginRequest(poolID, plan)
	rt.pool.Subscribe(poolID, spec.Filters, plan.All(), spec.Mode)
	return plan
}

func (rt *Runtime) teardown(sl *slot) {
	rt.pool.Unsubscribe(sl.poolID)
	rt.manager.FinishRequest(sl.poolID)
}
