package bridge

import (
	"errors"
	"fmt"

	"github.com/aria-bridge/bridge-go/pkg/connection"
)

// Errors returned by the client.
var (
	// ErrStopped is returned when using a client after Stop.
	ErrStopped = connection.ErrStopped

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("bridge: invalid config")

	// ErrAuthTimeout means auth_success did not arrive within the heartbeat timeout.
	ErrAuthTimeout = errors.New("bridge: auth timeout")

	// ErrAuthRejected means the host closed the connection during auth.
	ErrAuthRejected = errors.New("bridge: auth rejected")
)

// Stage names the connection step that failed.
type Stage string

// Connection stages.
const (
	StageDial  Stage = "dial"
	StageAuth  Stage = "auth"
	StageHello Stage = "hello"
)

// ErrorKind classifies a connect failure.
type ErrorKind uint8

// Connect failure kinds.
const (
	KindTransport ErrorKind = iota
	KindTimeout
	KindRejected
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ConnectError reports a failed connection attempt. Every ConnectError is
// retried after backoff.
type ConnectError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("bridge: %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
