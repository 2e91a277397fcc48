// Package connection provides connection lifecycle primitives for the bridge client.
//
// This package handles:
//   - Exponential backoff for reconnection attempts
//   - Jitter to prevent thundering herd
//   - Supervisor state tracking
//
// # Reconnection Strategy
//
// When a connection attempt fails or a session ends, the client waits:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Continue at 30s until successful
//  5. Reset to 1s once a handshake completes
//
// # Jitter
//
// Each wait is sampled uniformly from the base delay up to one and a half
// times the base delay:
//
//	actual_delay = base_delay + random(0, base_delay * 0.5)
//
// # States
//
//	IDLE -> CONNECTING -> AUTHENTICATING -> HELLO_PENDING -> CONNECTED
//	     -> DRAINING -> BACKOFF -> CONNECTING ...
//
// STOPPED is terminal and reachable from any state.
package connection
