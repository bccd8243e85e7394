package pool_test

import (
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"nostr-pool/pkg/pool"
	"nostr-pool/pkg/protocol"
	"nostr-pool/pkg/relay"
	"nostr-pool/pkg/testutil"
)

var (
	urlA = protocol.MustNormalize("wss://a")
	urlB = protocol.MustNormalize("wss://b")
	urlC = protocol.MustNormalize("wss://c")
	urlD = protocol.MustNormalize("wss://d")
)

func createTestLogger() *log.Logger { return log.New(os.Stdout, "[TEST] ", 0) }

func newTestPool(t *testing.T) (*pool.Pool, *testutil.FakeDialer) {
	t.Helper()
	dialer := testutil.NewFakeDialer()
	p := pool.New(dialer, relay.DefaultOptions(), createTestLogger(), nil, nil)
	return p, dialer
}

func connect(t *testing.T, p *pool.Pool, d *testutil.FakeDialer, url protocol.RelayURL) *testutil.FakeConn {
	t.Helper()
	conn := d.ConnFor(url)
	if conn == nil {
		t.Fatalf("no dial recorded for %s", url)
	}
	conn.Open()
	p.Poll(time.Unix(1000, 0))
	return conn
}

func reqCount(sent []string) int {
	n := 0
	for _, s := range sent {
		if strings.HasPrefix(s, `["REQ"`) {
			n++
		}
	}
	return n
}

func TestSimpleTimeline(t *testing.T) {
	p, dialer := newTestPool(t)
	now := time.Unix(1000, 0)

	if p.Add(urlA, nil) != pool.Added {
		t.Fatal("expected Added")
	}
	if p.Add(urlA, nil) != pool.AlreadyPresent {
		t.Fatal("expected AlreadyPresent on duplicate add")
	}
	p.Add(urlB, nil)

	connA := connect(t, p, dialer, urlA)
	connB := connect(t, p, dialer, urlB)

	p.Subscribe("home", []nostr.Filter{{Kinds: []int{1}, Limit: 50}}, []protocol.RelayURL{urlA, urlB}, pool.Streaming)

	if reqCount(connA.Sent) != 1 || reqCount(connB.Sent) != 1 {
		t.Fatalf("expected one REQ per relay, got a=%v b=%v", connA.Sent, connB.Sent)
	}
	// Distinct per-relay sub ids.
	if connA.Sent[0] == connB.Sent[0] {
		t.Fatalf("expected distinct relay sub ids, both sent %s", connA.Sent[0])
	}

	rec := p.Record("home")
	rsidA := rec.Relays[urlA]

	noteJSON := `{"id":"e1","kind":1,"content":"hi"}`
	connA.Deliver(`["EVENT","` + rsidA + `",` + noteJSON + `]`)
	events := p.Poll(now)
	if len(events) != 1 {
		t.Fatalf("expected 1 pool event, got %d", len(events))
	}
	ev, ok := events[0].Frame.(protocol.EventMsg)
	if !ok || events[0].URL != urlA {
		t.Fatalf("unexpected pool event: %+v", events[0])
	}
	if ev.Sub != "home" {
		t.Fatalf("expected the pool sub id, got %q", ev.Sub)
	}
	if ev.EventJSON != noteJSON {
		t.Fatalf("note payload mangled: %s", ev.EventJSON)
	}

	connA.Deliver(`["EOSE","` + rsidA + `"]`)
	connB.Deliver(`["EOSE","` + rec.Relays[urlB] + `"]`)
	p.Poll(now)

	if !rec.GotEOSE[urlA] || !rec.GotEOSE[urlB] {
		t.Fatalf("expected EOSE bookkeeping on both relays: %+v", rec.GotEOSE)
	}
	// Streaming survives full EOSE.
	if p.Record("home") == nil {
		t.Fatal("streaming subscription must stay alive after EOSE")
	}
}

func TestTearDownBeforeConnect(t *testing.T) {
	p, dialer := newTestPool(t)
	now := time.Unix(1000, 0)

	p.Add(urlC, nil)
	p.Subscribe("s", []nostr.Filter{{Kinds: []int{1}}}, []protocol.RelayURL{urlC}, pool.Oneshot)
	p.Unsubscribe("s")

	conn := dialer.ConnFor(urlC)
	conn.Open()
	p.Poll(now)

	if len(conn.Sent) != 0 {
		t.Fatalf("expected zero frames for the cancelled subscription, got %v", conn.Sent)
	}
}

func TestResubscribeOnReconnect(t *testing.T) {
	p, dialer := newTestPool(t)
	now := time.Unix(1000, 0)

	p.Add(urlA, nil)
	conn := connect(t, p, dialer, urlA)
	p.Subscribe("home", []nostr.Filter{{Kinds: []int{1}}}, []protocol.RelayURL{urlA}, pool.Streaming)
	if reqCount(conn.Sent) != 1 {
		t.Fatalf("expected the initial REQ, got %v", conn.Sent)
	}
	initialReq := conn.Sent[0]

	conn.Drop(errors.New("reset by peer"))
	p.Poll(now)

	// Reconnect on the backoff schedule.
	now = now.Add(time.Minute)
	p.Tick(now)
	conn2 := dialer.ConnFor(urlA)
	if conn2 == conn {
		t.Fatal("expected a fresh dial after the drop")
	}
	conn2.Open()
	p.Poll(now)

	if reqCount(conn2.Sent) != 1 {
		t.Fatalf("expected exactly one re-REQ, got %v", conn2.Sent)
	}
	if conn2.Sent[0] != initialReq {
		t.Fatalf("re-REQ should reuse the sub id: got %s want %s", conn2.Sent[0], initialReq)
	}
}

func TestRetargetSendsCloseAndReq(t *testing.T) {
	p, dialer := newTestPool(t)

	for _, url := range []protocol.RelayURL{urlA, urlB, urlD} {
		p.Add(url, nil)
	}
	connA := connect(t, p, dialer, urlA)
	connB := connect(t, p, dialer, urlB)
	connD := connect(t, p, dialer, urlD)

	p.Subscribe("feed", []nostr.Filter{{Kinds: []int{1}}}, []protocol.RelayURL{urlA, urlB}, pool.Streaming)
	sentA, sentB := len(connA.Sent), len(connB.Sent)

	// Retarget {a,b} -> {b,d}: CLOSE on a, REQ on d, nothing new on b.
	p.Subscribe("feed", []nostr.Filter{{Kinds: []int{1}}}, []protocol.RelayURL{urlB, urlD}, pool.Streaming)

	if len(connA.Sent) != sentA+1 || !strings.HasPrefix(connA.Sent[len(connA.Sent)-1], `["CLOSE"`) {
		t.Fatalf("expected one CLOSE on a, got %v", connA.Sent)
	}
	if len(connB.Sent) != sentB {
		t.Fatalf("expected no traffic on b, got %v", connB.Sent)
	}
	if reqCount(connD.Sent) != 1 {
		t.Fatalf("expected one REQ on d, got %v", connD.Sent)
	}
}

func TestOneshotTeardownOnFullEose(t *testing.T) {
	p, dialer := newTestPool(t)
	now := time.Unix(1000, 0)

	p.Add(urlA, nil)
	p.Add(urlB, nil)
	connA := connect(t, p, dialer, urlA)
	connB := connect(t, p, dialer, urlB)

	p.Subscribe("fetch", []nostr.Filter{{IDs: []string{"e9"}}}, []protocol.RelayURL{urlA, urlB}, pool.Oneshot)
	rec := p.Record("fetch")

	connA.Deliver(`["EOSE","` + rec.Relays[urlA] + `"]`)
	p.Poll(now)
	if p.Record("fetch") == nil {
		t.Fatal("torn down before all relays EOSEd")
	}
	if len(p.FinishedOneshots()) != 0 {
		t.Fatal("no oneshot should be finished yet")
	}

	rsidB := rec.Relays[urlB]
	connB.Deliver(`["EOSE","` + rsidB + `"]`)
	p.Poll(now)

	if p.Record("fetch") != nil {
		t.Fatal("expected teardown after EOSE from all relays")
	}
	finished := p.FinishedOneshots()
	if len(finished) != 1 || finished[0] != "fetch" {
		t.Fatalf("expected [fetch], got %v", finished)
	}
	// The teardown CLOSEd both relays.
	if !strings.HasPrefix(connA.Sent[len(connA.Sent)-1], `["CLOSE"`) ||
		!strings.HasPrefix(connB.Sent[len(connB.Sent)-1], `["CLOSE"`) {
		t.Fatalf("expected CLOSE on both relays: a=%v b=%v", connA.Sent, connB.Sent)
	}
}

func TestOneshotFinishesWhenClosedDrainsTargets(t *testing.T) {
	p, dialer := newTestPool(t)
	now := time.Unix(1000, 0)

	p.Add(urlA, nil)
	p.Add(urlB, nil)
	connA := connect(t, p, dialer, urlA)
	connB := connect(t, p, dialer, urlB)

	p.Subscribe("fetch", []nostr.Filter{{IDs: []string{"e9"}}}, []protocol.RelayURL{urlA, urlB}, pool.Oneshot)
	rec := p.Record("fetch")

	// a EOSEs, b rejects the sub. No EOSE is ever coming from b.
	connA.Deliver(`["EOSE","` + rec.Relays[urlA] + `"]`)
	connB.Deliver(`["CLOSED","` + rec.Relays[urlB] + `","auth-required"]`)
	p.Poll(now)

	if p.Record("fetch") != nil {
		t.Fatal("expected teardown once the remaining relays have EOSEd")
	}
	finished := p.FinishedOneshots()
	if len(finished) != 1 || finished[0] != "fetch" {
		t.Fatalf("expected [fetch], got %v", finished)
	}
}

func TestOneshotFinishesWhenClosedOnLastRelay(t *testing.T) {
	p, dialer := newTestPool(t)
	now := time.Unix(1000, 0)

	p.Add(urlA, nil)
	conn := connect(t, p, dialer, urlA)

	p.Subscribe("fetch", []nostr.Filter{{IDs: []string{"e9"}}}, []protocol.RelayURL{urlA}, pool.Oneshot)
	rec := p.Record("fetch")

	conn.Deliver(`["CLOSED","` + rec.Relays[urlA] + `","blocked"]`)
	p.Poll(now)

	if p.Record("fetch") != nil {
		t.Fatal("expected teardown when the record's last relay closed it")
	}
	finished := p.FinishedOneshots()
	if len(finished) != 1 || finished[0] != "fetch" {
		t.Fatalf("expected [fetch], got %v", finished)
	}
}

func TestUnknownSubIDDroppedSilently(t *testing.T) {
	p, dialer := newTestPool(t)
	now := time.Unix(1000, 0)

	p.Add(urlA, nil)
	conn := connect(t, p, dialer, urlA)

	conn.Deliver(`["EVENT","stale",{"id":"e1","kind":1}]`)
	conn.Deliver(`["CLOSED","stale","sub gone"]`)
	events := p.Poll(now)

	if len(events) != 0 {
		t.Fatalf("frames with unknown sub ids must be dropped, got %+v", events)
	}
}

func TestRemoveWalksRecords(t *testing.T) {
	p, dialer := newTestPool(t)

	p.Add(urlA, nil)
	p.Add(urlB, nil)
	connect(t, p, dialer, urlA)
	connect(t, p, dialer, urlB)

	p.Subscribe("home", []nostr.Filter{{Kinds: []int{1}}}, []protocol.RelayURL{urlA, urlB}, pool.Streaming)
	p.Remove(urlA)

	rec := p.Record("home")
	if rec == nil {
		t.Fatal("record must survive removal of one relay")
	}
	if _, ok := rec.Relays[urlA]; ok {
		t.Fatal("record still lists the removed relay")
	}
	if _, ok := rec.Relays[urlB]; !ok {
		t.Fatal("record lost its surviving relay")
	}
	if p.Has(urlA) {
		t.Fatal("relay still present after remove")
	}
	if dialer.ConnFor(urlA).CloseCount == 0 {
		t.Fatal("removed relay's transport was not closed")
	}
}

func TestBroadcastIgnoresUnknownTargets(t *testing.T) {
	p, dialer := newTestPool(t)

	p.Add(urlA, nil)
	conn := connect(t, p, dialer, urlA)

	p.Broadcast(protocol.EventFrame{EventJSON: `{"id":"n1"}`}, []protocol.RelayURL{urlA, urlD})

	if len(conn.Sent) != 1 {
		t.Fatalf("expected 1 frame on a, got %v", conn.Sent)
	}
	if dialer.ConnFor(urlD) != nil {
		t.Fatal("broadcast must not dial unknown targets")
	}
}
