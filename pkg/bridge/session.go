package bridge

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/aria-bridge/bridge-go/pkg/control"
	"github.com/aria-bridge/bridge-go/pkg/log"
	"github.com/aria-bridge/bridge-go/pkg/transport"
	"github.com/aria-bridge/bridge-go/pkg/version"
	"github.com/aria-bridge/bridge-go/pkg/wire"
)

// session is one authenticated transport. The client publishes it for
// flushing once hello is sent and clears it before teardown completes.
type session struct {
	c  *Client
	id string
	tr transport.Transport

	hb         *transport.Heartbeat
	hbTimedOut atomic.Bool
}

func newSession(c *Client, id string, tr transport.Transport) *session {
	s := &session{c: c, id: id, tr: tr}
	cfg := transport.HeartbeatConfig{
		Interval: c.cfg.HeartbeatInterval,
		Timeout:  c.cfg.HeartbeatTimeout,
	}
	deadline := transport.NewDeadline(c.clock, cfg.Timeout)
	s.hb = transport.NewHeartbeat(cfg, c.clock, deadline, s.ping, s.heartbeatExpired)
	return s
}

// serve runs the receive loop, the ping sender and the watchdog until the
// first of them fails or ctx is done.
func (s *session) serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.hb.RunSender(gctx) })
	g.Go(func() error { return s.hb.RunWatchdog(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		_ = s.tr.Close()
		return nil
	})

	err := g.Wait()
	switch {
	case s.hbTimedOut.Load():
		return transport.ErrHeartbeatTimeout
	case ctx.Err() != nil:
		return ctx.Err()
	case err == nil:
		return transport.ErrConnectionClosed
	}
	return err
}

func (s *session) readLoop(ctx context.Context) error {
	for {
		data, err := s.tr.Receive()
		if err != nil {
			return err
		}

		msg, err := wire.Decode(data)
		if err != nil {
			s.c.logger.Debug("ignoring malformed frame", "session", s.id, "error", err)
			continue
		}
		s.logInbound(msg)

		switch m := msg.(type) {
		case *wire.Heartbeat:
			s.observe(m.Type)
			if m.Type == wire.TypePing {
				if err := s.send(wire.NewPong()); err != nil {
					return err
				}
			}

		case *wire.HelloAck:
			s.c.peerProtocol.Store(int64(m.Protocol))
			if m.Protocol != 0 {
				if err := version.CheckPeer(m.Protocol); err != nil {
					s.c.logger.Warn("host protocol mismatch", "session", s.id, "error", err)
				}
			}

		case *wire.ControlRequest:
			s.c.plane.Dispatch(ctx, control.NewRequest(m), s.reply)

		case *wire.Unknown:
			s.c.logger.Debug("ignoring unknown message", "session", s.id, "type", string(m.Type))

		default:
			s.c.logger.Debug("ignoring unexpected message", "session", s.id)
		}
	}
}

// observe records inbound liveness traffic.
func (s *session) observe(t wire.Type) {
	at := s.hb.Observe()
	s.logHeartbeat(log.DirectionIn, t, &at)
}

func (s *session) ping() error {
	return s.send(wire.NewPing())
}

func (s *session) heartbeatExpired() {
	s.hbTimedOut.Store(true)
	s.c.logger.Warn("no ping or pong within timeout", "session", s.id, "timeout", s.c.cfg.HeartbeatTimeout)
	s.logHeartbeatTimeout()
	_ = s.tr.Close()
}

func (s *session) send(msg any) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	if err := s.tr.Send(data); err != nil {
		return err
	}
	s.logOutbound(msg)
	return nil
}

// sendEvent is the flush target for the outbound buffer.
func (s *session) sendEvent(ev wire.Event) error {
	if err := s.send(ev); err != nil {
		return err
	}
	s.c.metrics.recordSent(ev.EventType())
	return nil
}

// reply sends a control result directly, bypassing the buffer.
func (s *session) reply(res wire.ControlResult) error {
	if !s.tr.IsOpen() {
		return transport.ErrConnectionClosed
	}
	return s.send(res)
}
