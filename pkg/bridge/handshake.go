package bridge

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/aria-bridge/bridge-go/pkg/connection"
	"github.com/aria-bridge/bridge-go/pkg/wire"
)

// handshake sends auth, waits for auth_success and sends hello. It runs on
// the supervisor goroutine, which is the only reader of the transport until
// serve starts. Inbound ping and pong reset the session deadline.
//
// The wait is bounded by HeartbeatTimeout from the moment auth is sent. On
// timeout or stop the transport is closed to unblock Receive.
func (s *session) handshake(ctx context.Context) error {
	c := s.c

	if err := s.send(wire.NewAuth(c.cfg.Secret)); err != nil {
		return &ConnectError{Stage: StageAuth, Kind: KindTransport, Err: err}
	}

	var timedOut atomic.Bool
	timer := c.clock.AfterFunc(c.cfg.HeartbeatTimeout, func() {
		timedOut.Store(true)
		_ = s.tr.Close()
	})
	defer timer.Stop()

	stop := context.AfterFunc(ctx, func() { _ = s.tr.Close() })
	defer stop()

	for {
		data, err := s.tr.Receive()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case timedOut.Load():
				return &ConnectError{Stage: StageAuth, Kind: KindTimeout, Err: ErrAuthTimeout}
			default:
				return &ConnectError{Stage: StageAuth, Kind: KindRejected, Err: fmt.Errorf("%w: %w", ErrAuthRejected, err)}
			}
		}

		msg, err := wire.Decode(data)
		if err != nil {
			c.logger.Debug("ignoring malformed frame during auth", "session", s.id, "error", err)
			continue
		}
		s.logInbound(msg)

		switch m := msg.(type) {
		case *wire.Heartbeat:
			s.observe(m.Type)
			if m.Type == wire.TypePing {
				if err := s.send(wire.NewPong()); err != nil {
					return &ConnectError{Stage: StageAuth, Kind: KindTransport, Err: err}
				}
			}
		case *wire.AuthSuccess:
			if !timer.Stop() || timedOut.Load() {
				return &ConnectError{Stage: StageAuth, Kind: KindTimeout, Err: ErrAuthTimeout}
			}
			c.setClientID(m.ClientID)
			return s.hello()
		default:
			c.logger.Debug("ignoring frame before auth_success", "session", s.id, "type", fmt.Sprintf("%T", msg))
		}
	}
}

// hello announces capabilities. hello_ack is optional and handled by the
// receive loop if it arrives.
func (s *session) hello() error {
	c := s.c
	if err := c.tracker.Transition(connection.StateHelloPending); err != nil {
		return err
	}
	hello := wire.NewHello(c.cfg.Capabilities, c.cfg.Platform, c.cfg.ProjectID)
	if err := s.send(hello); err != nil {
		return &ConnectError{Stage: StageHello, Kind: KindTransport, Err: err}
	}
	return nil
}
