package testutil

import (
	"nostr-pool/pkg/protocol"
	"nostr-pool/pkg/relay"
)

// FakeConn is a scriptable relay.Conn for tests. Tests inject transport
// events with Open/Deliver/Fail/Drop and assert on the recorded writes.
type FakeConn struct {
	URL protocol.RelayURL

	Sent       []string
	PingCount  int
	CloseCount int
	SendErr    error
	PingErr    error

	events chan relay.ConnEvent
	wake   func()
}

func NewFakeConn(url protocol.RelayURL, wake func()) *FakeConn {
	return &FakeConn{
		URL:    url,
		events: make(chan relay.ConnEvent, 128),
		wake:   wake,
	}
}

func (c *FakeConn) Events() <-chan relay.ConnEvent { return c.events }

func (c *FakeConn) Send(text string) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	c.Sent = append(c.Sent, text)
	return nil
}

func (c *FakeConn) Ping() error {
	c.PingCount++
	return c.PingErr
}

func (c *FakeConn) Close() error {
	c.CloseCount++
	return nil
}

// Open simulates a completed handshake.
func (c *FakeConn) Open() { c.push(relay.ConnEvent{Kind: relay.ConnOpened}) }

// Deliver simulates one inbound text frame.
func (c *FakeConn) Deliver(text string) {
	c.push(relay.ConnEvent{Kind: relay.ConnMessage, Text: text})
}

// Fail simulates a handshake failure.
func (c *FakeConn) Fail(err error) {
	c.push(relay.ConnEvent{Kind: relay.ConnFailed, Err: err})
}

// Drop simulates loss of an established connection.
func (c *FakeConn) Drop(err error) {
	c.push(relay.ConnEvent{Kind: relay.ConnClosed, Err: err})
}

func (c *FakeConn) push(ev relay.ConnEvent) {
	c.events <- ev
	if c.wake != nil {
		c.wake()
	}
}

// FakeDialer hands out FakeConns and records every dial.
type FakeDialer struct {
	Conns   []*FakeConn
	DialErr error
}

func NewFakeDialer() *FakeDialer { return &FakeDialer{} }

func (d *FakeDialer) Dial(url protocol.RelayURL, wake func()) (relay.Conn, error) {
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	conn := NewFakeConn(url, wake)
	d.Conns = append(d.Conns, conn)
	return conn, nil
}

// Last returns the most recently dialed conn, or nil.
func (d *FakeDialer) Last() *FakeConn {
	if len(d.Conns) == 0 {
		return nil
	}
	return d.Conns[len(d.Conns)-1]
}

// ConnFor returns the most recent conn dialed for the given URL, or nil.
func (d *FakeDialer) ConnFor(url protocol.RelayURL) *FakeConn {
	for i := len(d.Conns) - 1; i >= 0; i-- {
		if d.Conns[i].URL == url {
			return d.Conns[i]
		}
	}
	return nil
}
