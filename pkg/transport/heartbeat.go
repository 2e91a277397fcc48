package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Heartbeat defaults.
const (
	// DefaultPingInterval is how often a ping is sent.
	DefaultPingInterval = 15 * time.Second

	// DefaultPongTimeout is how long the session may go without an
	// observed ping or pong once the deadline is armed.
	DefaultPongTimeout = 30 * time.Second

	// DefaultWatchdogPoll is how often the deadline is checked.
	DefaultWatchdogPoll = 50 * time.Millisecond
)

// ErrHeartbeatTimeout is returned by the watchdog when the pong deadline passes.
var ErrHeartbeatTimeout = errors.New("transport: heartbeat timeout")

// Deadline is the pong deadline shared by a session's reader, heartbeat
// sender and watchdog. The zero deadline is unarmed.
type Deadline struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	timeout time.Duration
	at      time.Time
	armed   bool
}

// NewDeadline creates an unarmed deadline.
func NewDeadline(clock clockwork.Clock, timeout time.Duration) *Deadline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Deadline{clock: clock, timeout: timeout}
}

// Reset moves the deadline to now+timeout. Called for every observed ping
// or pong.
func (d *Deadline) Reset() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.at = d.clock.Now().Add(d.timeout)
	d.armed = true
	return d.at
}

// Arm sets the deadline to now+timeout only if it is not already armed.
// It reports the resulting deadline and whether this call armed it.
func (d *Deadline) Arm() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.armed {
		return d.at, false
	}
	d.at = d.clock.Now().Add(d.timeout)
	d.armed = true
	return d.at, true
}

// Expired reports whether the deadline is armed and now is past it.
func (d *Deadline) Expired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed && d.clock.Now().After(d.at)
}

// At returns the current deadline and whether it is armed.
func (d *Deadline) At() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.at, d.armed
}

// HeartbeatConfig configures a Heartbeat.
type HeartbeatConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Poll     time.Duration
}

// DefaultHeartbeatConfig returns the 15s/30s/50ms defaults.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: DefaultPingInterval,
		Timeout:  DefaultPongTimeout,
		Poll:     DefaultWatchdogPoll,
	}
}

// Validate checks the configuration. A zero Poll is filled in by NewHeartbeat.
func (c HeartbeatConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", c.Interval)
	}
	if c.Timeout <= c.Interval {
		return fmt.Errorf("heartbeat timeout %v must exceed interval %v", c.Timeout, c.Interval)
	}
	if c.Poll < 0 {
		return fmt.Errorf("watchdog poll must not be negative, got %v", c.Poll)
	}
	return nil
}

// HeartbeatStats is a snapshot of heartbeat counters.
type HeartbeatStats struct {
	PingsSent    uint64
	PingsFailed  uint64
	Observed     uint64
	LastObserved time.Time
}

// Heartbeat runs the ping sender and the liveness watchdog for one session.
type Heartbeat struct {
	cfg       HeartbeatConfig
	clock     clockwork.Clock
	deadline  *Deadline
	sendPing  func() error
	onTimeout func()

	pingsSent   atomic.Uint64
	pingsFailed atomic.Uint64
	observed    atomic.Uint64
	lastSeen    atomic.Int64
	timedOut    atomic.Bool
}

// NewHeartbeat creates a heartbeat over deadline. sendPing transmits one
// ping; onTimeout, if set, runs once when the watchdog fires.
func NewHeartbeat(cfg HeartbeatConfig, clock clockwork.Clock, deadline *Deadline, sendPing func() error, onTimeout func()) *Heartbeat {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultWatchdogPoll
	}
	if deadline == nil {
		deadline = NewDeadline(clock, cfg.Timeout)
	}
	return &Heartbeat{
		cfg:       cfg,
		clock:     clock,
		deadline:  deadline,
		sendPing:  sendPing,
		onTimeout: onTimeout,
	}
}

// Deadline returns the shared pong deadline.
func (h *Heartbeat) Deadline() *Deadline {
	return h.deadline
}

// RunSender pings immediately and then every Interval until ctx is done or
// a ping cannot be sent. Each ping arms the deadline if it is unarmed.
func (h *Heartbeat) RunSender(ctx context.Context) error {
	if err := h.ping(); err != nil {
		return err
	}

	ticker := h.clock.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := h.ping(); err != nil {
				return err
			}
		}
	}
}

// RunWatchdog polls the deadline until ctx is done or the deadline passes,
// in which case it calls onTimeout and returns ErrHeartbeatTimeout.
func (h *Heartbeat) RunWatchdog(ctx context.Context) error {
	ticker := h.clock.NewTicker(h.cfg.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if h.deadline.Expired() {
				if h.timedOut.CompareAndSwap(false, true) && h.onTimeout != nil {
					h.onTimeout()
				}
				return ErrHeartbeatTimeout
			}
		}
	}
}

// Observe records an inbound ping or pong and resets the deadline.
func (h *Heartbeat) Observe() time.Time {
	now := h.clock.Now()
	h.observed.Add(1)
	h.lastSeen.Store(now.UnixNano())
	return h.deadline.Reset()
}

// Stats returns current counters.
func (h *Heartbeat) Stats() HeartbeatStats {
	s := HeartbeatStats{
		PingsSent:   h.pingsSent.Load(),
		PingsFailed: h.pingsFailed.Load(),
		Observed:    h.observed.Load(),
	}
	if ns := h.lastSeen.Load(); ns != 0 {
		s.LastObserved = time.Unix(0, ns)
	}
	return s
}

func (h *Heartbeat) ping() error {
	h.deadline.Arm()
	if err := h.sendPing(); err != nil {
		h.pingsFailed.Add(1)
		return fmt.Errorf("send ping: %w", err)
	}
	h.pingsSent.Add(1)
	return nil
}
