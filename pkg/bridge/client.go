package bridge

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/aria-bridge/bridge-go/pkg/connection"
	"github.com/aria-bridge/bridge-go/pkg/control"
	"github.com/aria-bridge/bridge-go/pkg/log"
	"github.com/aria-bridge/bridge-go/pkg/outbox"
	"github.com/aria-bridge/bridge-go/pkg/transport"
	"github.com/aria-bridge/bridge-go/pkg/wire"
)

// Client is a bridge client. It keeps one session to the host alive,
// reconnecting with backoff, buffers application events while offline and
// serves control requests.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	plog       log.Logger
	clock      clockwork.Clock
	dialer     transport.Dialer
	metrics    *Metrics
	tracer     trace.Tracer
	randSource rand.Source

	drainTimeout time.Duration

	instanceID string
	tracker    *connection.Tracker
	backoff    *connection.Backoff
	buffer     *outbox.Buffer
	plane      *control.Plane

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	sess     *session
	clientID string

	done     chan struct{}
	doneOnce sync.Once

	cbMu      sync.RWMutex
	callbacks []func(oldState, newState connection.State)

	peerProtocol atomic.Int64
	sessions     atomic.Uint64
}

// New creates a client. Zero fields of cfg take their defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:        cfg,
		logger:     slog.Default(),
		plog:       log.NoopLogger{},
		clock:      clockwork.NewRealClock(),
		instanceID: uuid.NewString(),
		tracker:    connection.NewTracker(),
		done:       make(chan struct{}),

		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("bridge", c.instanceID)

	if c.dialer == nil {
		c.dialer = &transport.WebSocketDialer{
			Secret:           cfg.Secret,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	}
	c.backoff = connection.NewBackoffWithConfig(connection.BackoffConfig{
		Initial: cfg.BackoffInitial,
		Max:     cfg.BackoffMax,
		Source:  c.randSource,
	})
	c.buffer = outbox.New(cfg.BufferLimit, c.clock)

	planeOpts := []control.Option{
		control.WithLogger(c.logger),
		control.WithObserver(c.observeControl),
	}
	if c.tracer != nil {
		planeOpts = append(planeOpts, control.WithTracer(c.tracer))
	}
	c.plane = control.NewPlane(planeOpts...)

	c.tracker.OnStateChange(c.stateChanged)
	c.metrics.recordState(connection.StateIdle)
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Start launches the connection supervisor and returns immediately.
// Calling Start on a running client does nothing; after Stop it returns
// ErrStopped. Cancelling ctx has the same effect as Stop.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return nil
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("bridge starting", "url", c.cfg.URL, "protocol", wire.ProtocolVersion)
	go c.supervise(ctx)
	return nil
}

// Stop ends the session, cancels every background task and waits for them.
// When Stop returns the transport is closed. Stop is idempotent and safe to
// call in any state, including before Start. Running control handlers get
// the drain timeout to finish; calling Stop from inside a handler therefore
// returns only after that timeout.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.stopped = true
	started := c.started
	cancel := c.cancel
	c.mu.Unlock()

	if !started {
		_ = c.tracker.Transition(connection.StateStopped)
		c.closeDone()
		return
	}
	cancel()
	<-c.done
}

// Done is closed once the client has fully stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SendConsole queues a console event and flushes it if a session is live.
// An empty level means info.
func (c *Client) SendConsole(message string, level wire.Level) error {
	return c.send(wire.NewConsole(level, message, c.clock.Now()))
}

// SendError queues an error event and flushes it if a session is live.
// An empty stack is omitted on the wire.
func (c *Client) SendError(message, stack string) error {
	return c.send(wire.NewError(message, stack, c.clock.Now()))
}

// OnControl installs the control handler, replacing any previous one.
// Nil removes it; requests are then ignored.
func (c *Client) OnControl(h control.Handler) {
	c.plane.SetHandler(h)
}

// State returns the supervisor state.
func (c *Client) State() connection.State {
	return c.tracker.State()
}

// OnStateChange registers fn to run on every state transition. Callbacks
// run on the goroutine performing the transition and must not block.
func (c *Client) OnStateChange(fn func(oldState, newState connection.State)) {
	if fn == nil {
		return
	}
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// PeerProtocol returns the protocol the host announced in hello_ack, or 0
// if none was received on the current session.
func (c *Client) PeerProtocol() int {
	return int(c.peerProtocol.Load())
}

// ClientID returns the identifier assigned by the host in auth_success.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Buffered returns the number of events waiting to be sent.
func (c *Client) Buffered() int {
	return c.buffer.Len()
}

// Connected reports whether a session is live.
func (c *Client) Connected() bool {
	return c.State() == connection.StateConnected
}

func (c *Client) send(ev wire.Event) error {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	if c.buffer.Enqueue(ev) {
		c.metrics.recordDrop()
	}
	c.flush()
	return nil
}

// flush drains the buffer into the current session, if any. A failed send
// leaves the event at the head of the buffer; the receive loop notices the
// broken transport and the next session retries.
func (c *Client) flush() {
	defer func() { c.metrics.recordBufferDepth(c.buffer.Len()) }()

	s := c.currentSession()
	if s == nil {
		return
	}
	if _, err := c.buffer.Flush(s.sendEvent); err != nil {
		c.logger.Debug("flush interrupted", "session", s.id, "error", err)
	}
}

func (c *Client) currentSession() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

func (c *Client) setSession(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess = s
}

// clearSession unpublishes s if it is still current.
func (c *Client) clearSession(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == s {
		c.sess = nil
	}
}

func (c *Client) setClientID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientID = id
}

func (c *Client) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Client) stateChanged(oldState, newState connection.State) {
	c.logger.Info("bridge state", "from", oldState.String(), "to", newState.String())
	c.metrics.recordState(newState)
	c.plog.Log(log.Event{
		Timestamp: c.clock.Now(),
		Layer:     log.LayerSupervisor,
		Category:  log.CategoryState,
		Endpoint:  c.cfg.URL,
		ProjectID: c.cfg.ProjectID,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityClient,
			OldState: oldState.String(),
			NewState: newState.String(),
		},
	})

	c.cbMu.RLock()
	callbacks := c.callbacks
	c.cbMu.RUnlock()
	for _, fn := range callbacks {
		fn(oldState, newState)
	}
}

func (c *Client) observeControl(o control.Outcome) {
	result := "ok"
	switch {
	case errors.Is(o.ReplyErr, control.ErrNoHandler):
		result = "unhandled"
	case o.ReplyErr != nil:
		result = "unsent"
	case o.Panicked:
		result = "panic"
	case !o.OK:
		result = "error"
	}
	c.metrics.recordControl(result, o.Duration)
}
