package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aria-bridge/bridge-go/pkg/wire"
)

const tracerName = "github.com/aria-bridge/bridge-go/pkg/control"

// ErrNoHandler is reported to observers for requests dropped because no
// handler was installed.
var ErrNoHandler = errors.New("control: no handler installed")

// Request is one control request from the host.
type Request struct {
	// ID is the raw JSON id, echoed byte-for-byte in the result.
	ID     json.RawMessage
	Action string
	Args   json.RawMessage
}

// NewRequest converts a decoded wire message.
func NewRequest(m *wire.ControlRequest) Request {
	return Request{ID: m.ID, Action: m.Action, Args: m.Args}
}

// Bind decodes Args into v. Absent args leave v untouched.
func (r Request) Bind(v any) error {
	if len(r.Args) == 0 || string(r.Args) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Args, v); err != nil {
		return fmt.Errorf("control %q: bad args: %w", r.Action, err)
	}
	return nil
}

// Handler handles control requests. A non-nil error becomes ok:false with
// the error text as the message.
type Handler interface {
	Handle(ctx context.Context, req Request) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// ReplyFunc sends a control result to the host.
type ReplyFunc func(wire.ControlResult) error

// Outcome describes one finished dispatch.
type Outcome struct {
	Action   string
	OK       bool
	Panicked bool
	Duration time.Duration

	// ReplyErr is set when the result could not be sent.
	ReplyErr error
}

// Option configures a Plane.
type Option func(*Plane)

// WithTracer sets the tracer used for dispatch spans. The default is the
// global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Plane) { p.tracer = t }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plane) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers fn to run after every dispatch.
func WithObserver(fn func(Outcome)) Option {
	return func(p *Plane) { p.observer = fn }
}

// Plane dispatches control requests to the installed handler.
type Plane struct {
	mu      sync.RWMutex
	handler Handler

	// idle is closed while no handler runs.
	runMu   sync.Mutex
	running int
	idle    chan struct{}

	tracer   trace.Tracer
	logger   *slog.Logger
	observer func(Outcome)
}

// NewPlane creates a plane with no handler.
func NewPlane(opts ...Option) *Plane {
	p := &Plane{logger: slog.Default(), idle: make(chan struct{})}
	close(p.idle)
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	return p
}

// SetHandler replaces the handler. Nil clears it.
func (p *Plane) SetHandler(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// Handler returns the installed handler, or nil.
func (p *Plane) Handler() Handler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handler
}

// Dispatch runs the handler for req in a new goroutine and sends exactly one
// result through reply. It returns false, without replying, when no handler
// is installed. ctx is passed to the handler and should be cancelled when
// the session ends.
func (p *Plane) Dispatch(ctx context.Context, req Request, reply ReplyFunc) bool {
	h := p.Handler()
	if h == nil {
		p.logger.Debug("control request ignored, no handler", "action", req.Action)
		if p.observer != nil {
			p.observer(Outcome{Action: req.Action, ReplyErr: ErrNoHandler})
		}
		return false
	}

	p.begin()
	go func() {
		defer p.end()
		p.run(ctx, h, req, reply)
	}()
	return true
}

// Wait blocks until every dispatched handler has finished.
func (p *Plane) Wait() {
	<-p.idleCh()
}

// WaitUntil waits for every dispatched handler to finish or for deadline
// to fire, whichever comes first. It reports whether the plane went idle.
// Handlers still running afterwards are abandoned; their replies fail once
// the session transport is closed.
func (p *Plane) WaitUntil(deadline <-chan time.Time) bool {
	select {
	case <-p.idleCh():
		return true
	case <-deadline:
		return false
	}
}

// InFlight returns the number of running handlers.
func (p *Plane) InFlight() int {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.running
}

func (p *Plane) begin() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.running == 0 {
		p.idle = make(chan struct{})
	}
	p.running++
}

func (p *Plane) end() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.running--
	if p.running == 0 {
		close(p.idle)
	}
}

func (p *Plane) idleCh() <-chan struct{} {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.idle
}

func (p *Plane) run(ctx context.Context, h Handler, req Request, reply ReplyFunc) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "bridge.control "+req.Action,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("bridge.control.action", req.Action),
			attribute.String("bridge.control.id", string(req.ID)),
		),
	)
	defer span.End()

	result, panicked, err := invoke(ctx, h, req)

	var msg wire.ControlResult
	if err == nil {
		var encoded json.RawMessage
		encoded, err = encodeResult(result)
		if err == nil {
			var res any
			if encoded != nil {
				res = encoded
			}
			msg = wire.NewControlSuccess(req.ID, res)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		msg = wire.NewControlFailure(req.ID, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Bool("bridge.control.ok", msg.OK))

	replyErr := reply(msg)
	if replyErr != nil {
		span.AddEvent("reply failed", trace.WithAttributes(attribute.String("error", replyErr.Error())))
		p.logger.Warn("control result not sent", "action", req.Action, "error", replyErr)
	}

	if p.observer != nil {
		p.observer(Outcome{
			Action:   req.Action,
			OK:       msg.OK,
			Panicked: panicked,
			Duration: time.Since(start),
			ReplyErr: replyErr,
		})
	}
}

// invoke calls the handler, converting a panic into an error.
func invoke(ctx context.Context, h Handler, req Request) (result any, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, panicked = nil, true
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	result, err = h.Handle(ctx, req)
	return result, false, err
}

// encodeResult marshals the handler result up front so an unencodable value
// becomes a failure instead of a lost reply. Nil encodes to no result.
func encodeResult(result any) (json.RawMessage, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return data, nil
}
