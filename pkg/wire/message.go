package wire

import (
	"encoding/json"
	"time"

	"github.com/aria-bridge/bridge-go/pkg/version"
)

// ProtocolVersion is the bridge protocol version announced in hello.
const ProtocolVersion = version.Protocol

// RoleBridge is the role tag sent in auth.
const RoleBridge = "bridge"

// PlatformGo is the platform tag sent in hello.
const PlatformGo = "go"

// Type is the message discriminator.
type Type string

// Message types.
const (
	TypeAuth           Type = "auth"
	TypeAuthSuccess    Type = "auth_success"
	TypeHello          Type = "hello"
	TypeHelloAck       Type = "hello_ack"
	TypePing           Type = "ping"
	TypePong           Type = "pong"
	TypeConsole        Type = "console"
	TypeError          Type = "error"
	TypeInfo           Type = "info"
	TypeControlRequest Type = "control_request"
	TypeControlResult  Type = "control_result"
)

// Level is a console severity.
type Level string

// Console levels understood by the bridge host.
const (
	LevelLog   Level = "log"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is implemented by application events that travel through the
// outbound buffer.
type Event interface {
	EventType() Type
}

// Auth opens the handshake.
type Auth struct {
	Type   Type   `json:"type"`
	Secret string `json:"secret"`
	Role   string `json:"role"`
}

// AuthSuccess is the peer's auth acceptance.
type AuthSuccess struct {
	Type     Type   `json:"type"`
	Role     string `json:"role,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

// Hello announces client capabilities after auth succeeds.
type Hello struct {
	Type         Type     `json:"type"`
	Capabilities []string `json:"capabilities"`
	Platform     string   `json:"platform"`
	ProjectID    *string  `json:"projectId"`
	Protocol     int      `json:"protocol"`
}

// HelloAck is the peer's optional reply to hello.
type HelloAck struct {
	Type     Type `json:"type"`
	Protocol int  `json:"protocol,omitempty"`
}

// Heartbeat is a ping or pong.
type Heartbeat struct {
	Type Type `json:"type"`
}

// Console is a console log event.
type Console struct {
	Type      Type   `json:"type"`
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// EventType implements Event.
func (Console) EventType() Type { return TypeConsole }

// Error is an application error event.
type Error struct {
	Type      Type   `json:"type"`
	Message   string `json:"message"`
	Stack     string `json:"stack,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// EventType implements Event.
func (Error) EventType() Type { return TypeError }

// Info is an informational event, used for the coalesced drop notice.
type Info struct {
	Type      Type   `json:"type"`
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// EventType implements Event.
func (Info) EventType() Type { return TypeInfo }

// ControlRequest asks the client to run an action.
type ControlRequest struct {
	Type   Type            `json:"type"`
	ID     json.RawMessage `json:"id"`
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// ControlResult answers a ControlRequest.
type ControlResult struct {
	Type   Type            `json:"type"`
	ID     json.RawMessage `json:"id"`
	OK     bool            `json:"ok"`
	Result any             `json:"result,omitempty"`
	Error  *ResultError    `json:"error,omitempty"`
}

// ResultError describes a failed control action.
type ResultError struct {
	Message string `json:"message"`
}

// Unknown carries a well-formed frame with an unrecognized type.
type Unknown struct {
	Type Type
	Raw  json.RawMessage
}

// Timestamp converts t to the wire timestamp representation.
func Timestamp(t time.Time) int64 {
	return t.UnixMilli()
}

// NewAuth creates an auth message with the bridge role.
func NewAuth(secret string) Auth {
	return Auth{Type: TypeAuth, Secret: secret, Role: RoleBridge}
}

// NewHello creates a hello message. An empty projectID encodes as null.
func NewHello(capabilities []string, platform, projectID string) Hello {
	h := Hello{
		Type:         TypeHello,
		Capabilities: capabilities,
		Platform:     platform,
		Protocol:     ProtocolVersion,
	}
	if h.Capabilities == nil {
		h.Capabilities = []string{}
	}
	if projectID != "" {
		h.ProjectID = &projectID
	}
	return h
}

// NewPing creates a ping.
func NewPing() Heartbeat { return Heartbeat{Type: TypePing} }

// NewPong creates a pong.
func NewPong() Heartbeat { return Heartbeat{Type: TypePong} }

// NewConsole creates a console event.
func NewConsole(level Level, message string, at time.Time) Console {
	if level == "" {
		level = LevelInfo
	}
	return Console{Type: TypeConsole, Level: level, Message: message, Timestamp: Timestamp(at)}
}

// NewError creates an error event. An empty stack is omitted.
func NewError(message, stack string, at time.Time) Error {
	return Error{Type: TypeError, Message: message, Stack: stack, Timestamp: Timestamp(at)}
}

// NewInfo creates an info event.
func NewInfo(message string, at time.Time) Info {
	return Info{Type: TypeInfo, Level: LevelInfo, Message: message, Timestamp: Timestamp(at)}
}

// NewControlSuccess creates a successful control result.
func NewControlSuccess(id json.RawMessage, result any) ControlResult {
	return ControlResult{Type: TypeControlResult, ID: id, OK: true, Result: result}
}

// NewControlFailure creates a failed control result.
func NewControlFailure(id json.RawMessage, message string) ControlResult {
	return ControlResult{Type: TypeControlResult, ID: id, OK: false, Error: &ResultError{Message: message}}
}
