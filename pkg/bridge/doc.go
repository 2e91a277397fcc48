// Package bridge implements the bridge client: a long-lived WebSocket
// session to a bridge host that forwards console and error events and
// answers control requests.
//
// # Lifecycle
//
// A Client is created with New and runs once between Start and Stop. Its
// supervisor goroutine cycles through
//
//	IDLE → CONNECTING → AUTHENTICATING → HELLO_PENDING → CONNECTED → DRAINING → BACKOFF → CONNECTING …
//
// until Stop moves it to the terminal STOPPED state. Every failure (dial
// error, auth timeout, auth rejection, heartbeat timeout, peer close) ends
// the current session and schedules a reconnect with exponential backoff;
// none of them is fatal.
//
// # Handshake
//
// After the transport opens the client sends auth and waits up to the
// heartbeat timeout for auth_success, then sends hello. Application events
// are never written before hello.
//
// # Events
//
// SendConsole and SendError always go through a bounded buffer. When a
// session is live the buffer is flushed immediately; otherwise events wait
// for the next session. Overflow drops the oldest events and is reported
// to the host once as an info event after the next successful flush.
//
// # Control
//
// Control requests from the host are dispatched to the handler installed
// with OnControl, each on its own goroutine. Results are written directly
// to the session, never buffered.
//
// Example:
//
//	c, err := bridge.New(bridge.Config{URL: "ws://localhost:9877", Secret: secret})
//	if err != nil {
//		return err
//	}
//	c.OnControl(control.HandlerFunc(func(ctx context.Context, req control.Request) (any, error) {
//		return map[string]any{"action": req.Action}, nil
//	}))
//	if err := c.Start(ctx); err != nil {
//		return err
//	}
//	defer c.Stop()
//	_ = c.SendConsole("ready", wire.LevelInfo)
package bridge
