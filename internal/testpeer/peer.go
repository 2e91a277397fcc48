// Package testpeer provides an in-process bridge host for tests.
//
// The peer speaks the host side of the protocol over a real WebSocket served
// by httptest. Behavior is switchable per test: answering auth, answering
// pings, acknowledging hello, delaying auth_success.
package testpeer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Message is one frame received from a client.
type Message struct {
	Conn   int
	Type   string
	Raw    json.RawMessage
	Fields map[string]any
	At     time.Time
}

// Option configures a Peer.
type Option func(*Peer)

// WithoutAuthSuccess makes the peer never answer auth.
func WithoutAuthSuccess() Option {
	return func(p *Peer) { p.authSuccess = false }
}

// WithAuthDelay delays auth_success by d.
func WithAuthDelay(d time.Duration) Option {
	return func(p *Peer) { p.authDelay = d }
}

// WithoutPong makes the peer ignore pings.
func WithoutPong() Option {
	return func(p *Peer) { p.pong = false }
}

// WithHelloAck makes the peer answer hello with hello_ack.
func WithHelloAck(protocol int) Option {
	return func(p *Peer) { p.helloAck = protocol }
}

// WithSecret makes the peer close connections whose auth secret differs.
func WithSecret(secret string) Option {
	return func(p *Peer) { p.secret = secret }
}

// WithClientID sets the clientId sent in auth_success.
func WithClientID(id string) Option {
	return func(p *Peer) { p.clientID = id }
}

// Peer is a scripted bridge host.
type Peer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	authSuccess bool
	authDelay   time.Duration
	pong        bool
	helloAck    int
	secret      string
	clientID    string

	mu       sync.Mutex
	messages []Message
	headers  []http.Header
	conns    int
	active   *peerConn
	changed  chan struct{}
}

type peerConn struct {
	id      int
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *peerConn) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeRaw(data)
}

func (c *peerConn) writeRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// New starts a peer. It is closed when the test ends.
func New(t testing.TB, opts ...Option) *Peer {
	t.Helper()
	p := &Peer{
		authSuccess: true,
		pong:        true,
		clientID:    "test-client",
		changed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Close)
	return p
}

// URL returns the ws:// endpoint.
func (p *Peer) URL() string {
	return "ws" + strings.TrimPrefix(p.server.URL, "http")
}

// Close stops the server and drops every connection.
func (p *Peer) Close() {
	p.CloseActive()
	p.server.Close()
}

// Connections returns how many clients have connected.
func (p *Peer) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conns
}

// Headers returns the upgrade request headers of every connection.
func (p *Peer) Headers() []http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]http.Header(nil), p.headers...)
}

// Messages returns every message received so far.
func (p *Peer) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

// Types returns the message types received so far, optionally skipping
// heartbeats.
func (p *Peer) Types(skipHeartbeats bool) []string {
	var out []string
	for _, m := range p.Messages() {
		if skipHeartbeats && (m.Type == "ping" || m.Type == "pong") {
			continue
		}
		out = append(out, m.Type)
	}
	return out
}

// OfType returns the received messages of one type.
func (p *Peer) OfType(typ string) []Message {
	var out []Message
	for _, m := range p.Messages() {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

// Send writes a message to the active connection.
func (p *Peer) Send(v any) error {
	c, err := p.activeConn()
	if err != nil {
		return err
	}
	return c.write(v)
}

// SendRaw writes a text frame verbatim, valid JSON or not.
func (p *Peer) SendRaw(data string) error {
	c, err := p.activeConn()
	if err != nil {
		return err
	}
	return c.writeRaw([]byte(data))
}

func (p *Peer) activeConn() (*peerConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return nil, fmt.Errorf("testpeer: no active connection")
	}
	return p.active, nil
}

// SendControl sends a control_request to the active connection.
func (p *Peer) SendControl(id any, action string, args any) error {
	msg := map[string]any{"type": "control_request", "id": id, "action": action}
	if args != nil {
		msg["args"] = args
	}
	return p.Send(msg)
}

// CloseActive drops the active connection.
func (p *Peer) CloseActive() {
	p.mu.Lock()
	c := p.active
	p.active = nil
	p.mu.Unlock()
	if c != nil {
		_ = c.ws.Close()
	}
}

// WaitFor polls cond until it holds or timeout passes.
func (p *Peer) WaitFor(t testing.TB, timeout time.Duration, cond func() bool, msgAndArgs ...any) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		p.mu.Lock()
		changed := p.changed
		p.mu.Unlock()
		select {
		case <-changed:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			if cond() {
				return
			}
			t.Fatalf("testpeer: condition not met within %v: %s", timeout, fmt.Sprint(msgAndArgs...))
		}
	}
}

// WaitForType waits until n messages of typ have been received.
func (p *Peer) WaitForType(t testing.TB, typ string, n int, timeout time.Duration) []Message {
	t.Helper()
	p.WaitFor(t, timeout, func() bool { return len(p.OfType(typ)) >= n }, typ)
	return p.OfType(typ)
}

// WaitForConnections waits until n clients have connected.
func (p *Peer) WaitForConnections(t testing.TB, n int, timeout time.Duration) {
	t.Helper()
	p.WaitFor(t, timeout, func() bool { return p.Connections() >= n }, "connections")
}

func (p *Peer) notify() {
	close(p.changed)
	p.changed = make(chan struct{})
}

func (p *Peer) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p.mu.Lock()
	p.conns++
	c := &peerConn{id: p.conns, ws: ws}
	p.active = c
	p.headers = append(p.headers, r.Header.Clone())
	p.notify()
	p.mu.Unlock()

	defer func() {
		_ = ws.Close()
		p.mu.Lock()
		if p.active == c {
			p.active = nil
		}
		p.notify()
		p.mu.Unlock()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			continue
		}
		typ, _ := fields["type"].(string)

		p.mu.Lock()
		p.messages = append(p.messages, Message{Conn: c.id, Type: typ, Raw: data, Fields: fields, At: time.Now()})
		p.notify()
		p.mu.Unlock()

		switch typ {
		case "auth":
			if p.secret != "" && fields["secret"] != p.secret {
				return
			}
			if p.authSuccess {
				go p.answerAuth(c)
			}
		case "hello":
			if p.helloAck > 0 {
				_ = c.write(map[string]any{"type": "hello_ack", "protocol": p.helloAck})
			}
		case "ping":
			if p.pong {
				_ = c.write(map[string]any{"type": "pong"})
			}
		}
	}
}

func (p *Peer) answerAuth(c *peerConn) {
	if p.authDelay > 0 {
		time.Sleep(p.authDelay)
	}
	_ = c.write(map[string]any{"type": "auth_success", "role": "bridge", "clientId": p.clientID})
}
