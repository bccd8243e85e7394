package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nostr-pool/pkg/protocol"
)

// ConnEventKind discriminates transport events delivered through a Conn.
type ConnEventKind int

const (
	// ConnOpened means the websocket handshake completed.
	ConnOpened ConnEventKind = iota
	// ConnMessage carries one inbound text frame.
	ConnMessage
	// ConnFailed means the handshake never completed.
	ConnFailed
	// ConnClosed means an established connection went away.
	ConnClosed
)

type ConnEvent struct {
	Kind ConnEventKind
	Text string
	Err  error
}

// Conn is one websocket connection. The driver loop never blocks on it:
// inbound traffic is pulled from Events with a non-blocking receive, and
// all blocking I/O stays on the transport's own goroutine.
type Conn interface {
	Events() <-chan ConnEvent
	Send(text string) error
	Ping() error
	Close() error
}

// Dialer opens connections. Dial returns immediately; the handshake runs
// in the background and reports through the Conn's event stream. wake is
// invoked after each delivered event so a parked driver can re-tick.
type Dialer interface {
	Dial(url protocol.RelayURL, wake func()) (Conn, error)
}

// WSDialer is the production Dialer, backed by gorilla/websocket.
type WSDialer struct {
	HandshakeTimeout time.Duration
}

func NewWSDialer(handshakeTimeout time.Duration) *WSDialer {
	return &WSDialer{HandshakeTimeout: handshakeTimeout}
}

func (d *WSDialer) Dial(url protocol.RelayURL, wake func()) (Conn, error) {
	c := &wsConn{
		events: make(chan ConnEvent, 256),
		done:   make(chan struct{}),
		wake:   wake,
	}
	go c.run(string(url), d.HandshakeTimeout)
	return c, nil
}

var errNotEstablished = errors.New("connection not established")

type wsConn struct {
	mu   sync.Mutex // guards ws and serializes writes
	ws   *websocket.Conn
	dead bool

	events    chan ConnEvent
	done      chan struct{}
	closeOnce sync.Once
	wake      func()
}

func (c *wsConn) run(url string, handshakeTimeout time.Duration) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, resp, err := dialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.push(ConnEvent{Kind: ConnFailed, Err: err})
		return
	}

	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	c.mu.Unlock()

	c.push(ConnEvent{Kind: ConnOpened})

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			c.push(ConnEvent{Kind: ConnClosed, Err: err})
			return
		}
		c.push(ConnEvent{Kind: ConnMessage, Text: string(msg)})
	}
}

func (c *wsConn) push(ev ConnEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
		return
	}
	if c.wake != nil {
		c.wake()
	}
}

func (c *wsConn) Events() <-chan ConnEvent { return c.events }

func (c *wsConn) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return errNotEstablished
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *wsConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return errNotEstablished
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.dead = true
		ws := c.ws
		c.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
	})
	return nil
}
