// Package wire defines the JSON wire format for the bridge protocol.
//
// Every frame is a UTF-8 JSON object carrying a "type" discriminator and is
// sent as a single text frame over the transport.
//
// # Message Types
//
//	auth             client -> peer   secret, role
//	auth_success     peer -> client   role, clientId
//	hello            client -> peer   capabilities, platform, projectId, protocol
//	hello_ack        peer -> client   protocol (informational)
//	ping / pong      either direction
//	console          client -> peer   level, message, timestamp
//	error            client -> peer   message, stack?, timestamp
//	info             client -> peer   level, message, timestamp
//	control_request  peer -> client   id, action, args?
//	control_result   client -> peer   id, ok, result? | error{message}
//
// # Nullable vs Absent
//
// hello.projectId is always present and is null when no project is
// configured. control_request.id is opaque and echoed byte-for-byte in the
// matching control_result.
//
// Timestamps are Unix milliseconds.
package wire
