package bridge

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/aria-bridge/bridge-go/pkg/log"
	"github.com/aria-bridge/bridge-go/pkg/transport"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the operational logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProtocolLogger captures frames, messages and state changes.
func WithProtocolLogger(logger log.Logger) Option {
	return func(c *Client) { c.plog = log.OrNoop(logger) }
}

// WithClock injects the time source. Tests use clockwork.NewFakeClock().
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d transport.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithMetrics records client metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer sets the tracer for control request spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithDrainTimeout bounds how long session teardown waits for running
// control handlers before abandoning them. Defaults to DefaultDrainTimeout.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.drainTimeout = d
		}
	}
}

// WithRandSource seeds backoff jitter.
func WithRandSource(src rand.Source) Option {
	return func(c *Client) { c.randSource = src }
}
