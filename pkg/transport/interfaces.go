package transport

import "context"

// Transport is an opaque bidirectional message channel to the peer.
// Implemented by WebSocketConn.
type Transport interface {
	// Send sends one text frame. Safe for concurrent use.
	Send(data []byte) error

	// Receive blocks until the next frame arrives or the transport fails.
	// Only one goroutine may call Receive at a time.
	Receive() ([]byte, error)

	// Close closes the transport and unblocks Receive. Idempotent.
	Close() error

	// IsOpen reports whether the transport can still carry frames.
	IsOpen() bool
}

// Dialer acquires a Transport to an endpoint.
// Implemented by WebSocketDialer.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Transport, error)
}

// Compile-time interface satisfaction checks.
var (
	_ Transport = (*WebSocketConn)(nil)
	_ Dialer    = (*WebSocketDialer)(nil)
)
