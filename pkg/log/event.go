package log

import "time"

// Event is one protocol event captured by the bridge client.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies one transport session (UUID). A new ID is
	// assigned on every connection attempt.
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Endpoint is the host URL the session dialed.
	Endpoint string `cbor:"6,keyasint,omitempty"`

	// ClientID is the identifier the host assigned in auth_success.
	ClientID string `cbor:"7,keyasint,omitempty"`

	// ProjectID is the configured project, if any.
	ProjectID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Supervisor/session state
	Heartbeat   *HeartbeatEvent   `cbor:"13,keyasint,omitempty"` // Ping/pong/timeout
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionNone marks events that are not tied to a frame, such as
	// supervisor state changes and errors.
	DirectionNone Direction = 0
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 1
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionNone:
		return "-"
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the client captured the event.
type Layer uint8

const (
	// LayerTransport is the WebSocket layer (raw text frames).
	LayerTransport Layer = 0
	// LayerWire is the message layer (decoded JSON).
	LayerWire Layer = 1
	// LayerSupervisor is the connection lifecycle layer.
	LayerSupervisor Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSupervisor:
		return "SUPERVISOR"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryHeartbeat indicates a ping, pong or liveness timeout.
	CategoryHeartbeat Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryHeartbeat:
		return "HEARTBEAT"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame payload size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded protocol message at the wire layer.
type MessageEvent struct {
	// Type is the wire message type ("hello", "control_request", ...).
	Type string `cbor:"1,keyasint"`

	// RequestID is the raw JSON id of a control request or result.
	RequestID string `cbor:"2,keyasint,omitempty"`

	// Action names the requested control action.
	Action string `cbor:"3,keyasint,omitempty"`

	// Level is the severity of console and info events.
	Level string `cbor:"4,keyasint,omitempty"`

	// OK is set on control results.
	OK *bool `cbor:"5,keyasint,omitempty"`

	// HandlerTime is the duration from request receipt to result send.
	// Stored as nanoseconds.
	HandlerTime *time.Duration `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityClient is the connection supervisor's state machine.
	StateEntityClient StateEntity = 0
	// StateEntitySession is a single transport session.
	StateEntitySession StateEntity = 1
	// StateEntityBuffer is the outbound event buffer.
	StateEntityBuffer StateEntity = 2
)

// String returns the entity name.
func (e StateEntity) String() string {
	switch e {
	case StateEntityClient:
		return "CLIENT"
	case StateEntitySession:
		return "SESSION"
	case StateEntityBuffer:
		return "BUFFER"
	default:
		return "UNKNOWN"
	}
}

// HeartbeatEvent captures liveness traffic.
type HeartbeatEvent struct {
	// Type of heartbeat event.
	Type HeartbeatType `cbor:"1,keyasint"`

	// Deadline is the pong deadline after the event, if armed.
	Deadline *time.Time `cbor:"2,keyasint,omitempty"`
}

// HeartbeatType indicates the kind of heartbeat event.
type HeartbeatType uint8

const (
	// HeartbeatPing indicates a ping message.
	HeartbeatPing HeartbeatType = 0
	// HeartbeatPong indicates a pong message.
	HeartbeatPong HeartbeatType = 1
	// HeartbeatTimeout indicates the pong deadline passed.
	HeartbeatTimeout HeartbeatType = 2
)

// String returns the heartbeat type name.
func (h HeartbeatType) String() string {
	switch h {
	case HeartbeatPing:
		return "PING"
	case HeartbeatPong:
		return "PONG"
	case HeartbeatTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Stage is the connection stage that failed ("dial", "auth", ...).
	Stage string `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
