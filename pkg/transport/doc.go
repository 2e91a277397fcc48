// Package transport provides the bridge client's transport layer.
//
// The transport layer handles:
//   - An opaque bidirectional text-frame channel (Transport)
//   - WebSocket connections via gorilla/websocket
//   - Heartbeat ping/pong liveness with a shared pong deadline
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      JSON messages (wire)      │
//	├────────────────────────────────┤
//	│      WebSocket text frames     │
//	├────────────────────────────────┤
//	│     HTTP upgrade (ws / wss)    │
//	├────────────────────────────────┤
//	│              TCP               │
//	└────────────────────────────────┘
//
// # Heartbeat
//
// Liveness uses application-level ping/pong messages:
//   - Ping interval: 15 seconds
//   - Pong timeout: 30 seconds from the last observed ping or pong
//   - Watchdog poll: 50 milliseconds
//
// Inbound pings and pongs both reset the deadline. An outbound ping arms the
// deadline only when none is armed, so a peer that never answers is detected
// within the timeout.
package transport
