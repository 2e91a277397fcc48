package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aria-bridge/bridge-go/pkg/connection"
	"github.com/aria-bridge/bridge-go/pkg/log"
	"github.com/aria-bridge/bridge-go/pkg/transport"
)

// frameLogger is implemented by transports that can record raw frames.
type frameLogger interface {
	SetLogger(logger log.Logger, sessionID string)
}

// remoteAddresser is implemented by transports that know the peer address.
type remoteAddresser interface {
	RemoteAddr() string
}

func remoteAddr(tr transport.Transport) string {
	if ra, ok := tr.(remoteAddresser); ok {
		return ra.RemoteAddr()
	}
	return ""
}

// supervise runs connect, serve and backoff cycles until ctx is done.
func (c *Client) supervise(ctx context.Context) {
	defer c.finish()

	for {
		err := c.connectAndServe(ctx)
		if ctx.Err() != nil {
			return
		}
		c.reportFailure(err)

		delay := c.backoff.Next()
		if c.tracker.Transition(connection.StateBackoff) != nil {
			return
		}
		c.logger.Info("reconnecting", "delay", delay, "attempt", c.backoff.Attempts())

		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(delay):
		}
	}
}

// finish marks the client stopped once the supervisor exits.
func (c *Client) finish() {
	c.mu.Lock()
	c.stopped = true
	c.sess = nil
	c.mu.Unlock()

	_ = c.tracker.Transition(connection.StateStopped)
	c.logger.Info("bridge stopped", "buffered", c.buffer.Len())
	c.closeDone()
}

// connectAndServe runs one session from dial to teardown. It always
// returns a non-nil error describing why the session ended.
func (c *Client) connectAndServe(ctx context.Context) error {
	if err := c.tracker.Transition(connection.StateConnecting); err != nil {
		return err
	}

	sessionID := uuid.NewString()
	tr, err := c.dialer.Dial(ctx, c.cfg.URL)
	if err != nil {
		return &ConnectError{Stage: StageDial, Kind: KindTransport, Err: err}
	}
	if fl, ok := tr.(frameLogger); ok {
		fl.SetLogger(c.plog, sessionID)
	}

	s := newSession(c, sessionID, tr)
	defer func() { _ = tr.Close() }()

	c.peerProtocol.Store(0)
	if err := c.tracker.Transition(connection.StateAuthenticating); err != nil {
		return err
	}
	if err := s.handshake(ctx); err != nil {
		return err
	}
	c.backoff.Reset()

	c.setSession(s)
	if _, err := c.buffer.Flush(s.sendEvent); err != nil {
		c.clearSession(s)
		return fmt.Errorf("flush buffer: %w", err)
	}
	c.metrics.recordBufferDepth(c.buffer.Len())

	if err := c.tracker.Transition(connection.StateConnected); err != nil {
		c.clearSession(s)
		return err
	}
	c.metrics.recordConnected(c.sessions.Add(1) > 1)
	c.logger.Info("session established", "session_id", sessionID, "remote", remoteAddr(tr), "client_id", c.ClientID())
	s.logState("", "OPEN", "")

	err = s.serve(ctx)

	_ = c.tracker.Transition(connection.StateDraining)
	c.clearSession(s)
	_ = tr.Close()
	if !c.plane.WaitUntil(c.clock.After(c.drainTimeout)) {
		c.logger.Warn("abandoning control handlers", "in_flight", c.plane.InFlight(), "after", c.drainTimeout)
	}
	s.logState("OPEN", "CLOSED", err.Error())
	return err
}

func (c *Client) reportFailure(err error) {
	var cerr *ConnectError
	switch {
	case errors.As(err, &cerr):
		c.metrics.recordConnectFailure(cerr.Stage, cerr.Kind)
		c.logger.Warn("connection attempt failed", "stage", string(cerr.Stage), "kind", cerr.Kind.String(), "error", cerr.Err)
	case errors.Is(err, transport.ErrHeartbeatTimeout):
		c.metrics.recordHeartbeatTimeout()
		c.logger.Warn("heartbeat timeout, reconnecting")
	default:
		c.logger.Info("session ended", "error", err)
	}

	ev := log.Event{
		Timestamp: c.clock.Now(),
		Layer:     log.LayerSupervisor,
		Category:  log.CategoryError,
		Endpoint:  c.cfg.URL,
		ProjectID: c.cfg.ProjectID,
		Error:     &log.ErrorEventData{Layer: log.LayerSupervisor, Message: err.Error()},
	}
	if cerr != nil {
		ev.Error.Stage = string(cerr.Stage)
		ev.Error.Context = cerr.Kind.String()
	}
	c.plog.Log(ev)
}
