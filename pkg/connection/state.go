package connection

import (
	"errors"
	"sync"
)

// ErrStopped is returned by Tracker.Transition once the tracker is stopped.
var ErrStopped = errors.New("connection stopped")

// State represents the supervisor state.
type State uint8

const (
	// StateIdle indicates the supervisor has not been started.
	StateIdle State = iota

	// StateConnecting indicates a transport is being acquired.
	StateConnecting

	// StateAuthenticating indicates auth was sent and auth_success is awaited.
	StateAuthenticating

	// StateHelloPending indicates auth succeeded and hello is being sent.
	StateHelloPending

	// StateConnected indicates the session is live.
	StateConnected

	// StateDraining indicates the session is being torn down.
	StateDraining

	// StateBackoff indicates the supervisor is waiting before the next attempt.
	StateBackoff

	// StateStopped indicates the supervisor has been stopped. Terminal.
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateHelloPending:
		return "HELLO_PENDING"
	case StateConnected:
		return "CONNECTED"
	case StateDraining:
		return "DRAINING"
	case StateBackoff:
		return "BACKOFF"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Tracker records the current state and notifies an observer on change.
// The zero value is not usable; use NewTracker.
type Tracker struct {
	mu            sync.RWMutex
	state         State
	onStateChange func(oldState, newState State)
}

// NewTracker creates a tracker in StateIdle.
func NewTracker() *Tracker {
	return &Tracker{state: StateIdle}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// OnStateChange sets a callback for state changes.
// The callback runs on the goroutine that performed the transition.
func (t *Tracker) OnStateChange(fn func(oldState, newState State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStateChange = fn
}

// Transition moves to newState. Once stopped, the tracker ignores every
// transition and returns ErrStopped.
func (t *Tracker) Transition(newState State) error {
	t.mu.Lock()
	oldState := t.state
	if oldState == StateStopped {
		t.mu.Unlock()
		return ErrStopped
	}
	if oldState == newState {
		t.mu.Unlock()
		return nil
	}
	t.state = newState
	cb := t.onStateChange
	t.mu.Unlock()

	if cb != nil {
		cb(oldState, newState)
	}
	return nil
}
