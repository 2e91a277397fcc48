package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aria-bridge/bridge-go/pkg/log"
	"github.com/aria-bridge/bridge-go/pkg/version"
)

// SecretHeader carries the shared secret on the upgrade request. Hosts that
// authenticate at the HTTP layer read it; others rely on the auth message.
const SecretHeader = "X-Bridge-Secret"

// Transport defaults.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultReadLimit        = 1 << 20

	// MaxLogFrameDataSize caps the frame bytes copied into protocol log events.
	MaxLogFrameDataSize = 1024

	closeGracePeriod = time.Second
)

// ErrConnectionClosed is returned when sending on or receiving from a closed
// transport.
var ErrConnectionClosed = errors.New("transport: connection closed")

// WebSocketDialer dials bridge hosts over ws:// or wss://.
type WebSocketDialer struct {
	// Secret is sent in the SecretHeader of the upgrade request when set.
	Secret string

	// Header holds extra upgrade request headers.
	Header http.Header

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
}

// Dial opens a WebSocket connection to endpoint.
func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string) (Transport, error) {
	header := http.Header{}
	for k, vs := range d.Header {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	if d.Secret != "" {
		header.Set(SecretHeader, d.Secret)
	}
	if header.Get("User-Agent") == "" {
		header.Set("User-Agent", version.UserAgent())
	}

	handshake := d.HandshakeTimeout
	if handshake <= 0 {
		handshake = DefaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	conn.SetReadLimit(limit)

	return NewWebSocketConn(conn, d.WriteTimeout), nil
}

// WebSocketConn adapts a gorilla websocket.Conn to Transport.
type WebSocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	logMu     sync.RWMutex
	logger    log.Logger
	sessionID string
}

// NewWebSocketConn wraps an established connection. A non-positive
// writeTimeout selects DefaultWriteTimeout.
func NewWebSocketConn(conn *websocket.Conn, writeTimeout time.Duration) *WebSocketConn {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &WebSocketConn{
		conn:         conn,
		writeTimeout: writeTimeout,
		logger:       log.NoopLogger{},
	}
}

// SetLogger attaches a protocol logger. Every frame sent or received is
// logged with the given session ID.
func (c *WebSocketConn) SetLogger(logger log.Logger, sessionID string) {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	c.logger = log.OrNoop(logger)
	c.sessionID = sessionID
}

// Send writes one text frame.
func (c *WebSocketConn) Send(data []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.closed.Store(true)
		return fmt.Errorf("write frame: %w", err)
	}
	c.logFrame(log.DirectionOut, data)
	return nil
}

// Receive blocks for the next data frame.
func (c *WebSocketConn) Receive() ([]byte, error) {
	for {
		if c.closed.Load() {
			return nil, ErrConnectionClosed
		}
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			wasClosed := c.closed.Swap(true)
			if wasClosed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrConnectionClosed
			}
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		c.logFrame(log.DirectionIn, data)
		return data, nil
	}
}

// Close sends a normal close frame and closes the socket. Idempotent.
func (c *WebSocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		err = c.conn.Close()
	})
	return err
}

// IsOpen reports whether the connection has not been closed or failed.
func (c *WebSocketConn) IsOpen() bool {
	return !c.closed.Load()
}

// RemoteAddr returns the peer's network address.
func (c *WebSocketConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *WebSocketConn) logFrame(dir log.Direction, data []byte) {
	c.logMu.RLock()
	logger, sessionID := c.logger, c.sessionID
	c.logMu.RUnlock()

	if _, noop := logger.(log.NoopLogger); noop {
		return
	}
	logger.Log(makeFrameEvent(sessionID, dir, data))
}

func makeFrameEvent(sessionID string, dir log.Direction, data []byte) log.Event {
	frame := &log.FrameEvent{Size: len(data)}
	if len(data) > MaxLogFrameDataSize {
		frame.Data = append([]byte(nil), data[:MaxLogFrameDataSize]...)
		frame.Truncated = true
	} else {
		frame.Data = append([]byte(nil), data...)
	}
	return log.Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Direction: dir,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame:     frame,
	}
}
