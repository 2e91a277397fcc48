package bridge

import (
	"time"

	"github.com/aria-bridge/bridge-go/pkg/log"
	"github.com/aria-bridge/bridge-go/pkg/wire"
)

// Protocol log helpers. Each is a no-op when no protocol logger is set.

func (s *session) enabled() bool {
	_, noop := s.c.plog.(log.NoopLogger)
	return !noop
}

func (s *session) event(dir log.Direction, layer log.Layer, cat log.Category) log.Event {
	return log.Event{
		Timestamp: s.c.clock.Now(),
		SessionID: s.id,
		Direction: dir,
		Layer:     layer,
		Category:  cat,
		Endpoint:  s.c.cfg.URL,
		ClientID:  s.c.ClientID(),
		ProjectID: s.c.cfg.ProjectID,
	}
}

func (s *session) logInbound(msg any) {
	s.logMessage(log.DirectionIn, msg)
}

func (s *session) logOutbound(msg any) {
	if hb, ok := msg.(wire.Heartbeat); ok {
		var deadline *time.Time
		if at, armed := s.hb.Deadline().At(); armed {
			deadline = &at
		}
		s.logHeartbeat(log.DirectionOut, hb.Type, deadline)
		return
	}
	s.logMessage(log.DirectionOut, msg)
}

// logMessage records decoded messages. Heartbeats are recorded separately.
func (s *session) logMessage(dir log.Direction, msg any) {
	if !s.enabled() {
		return
	}
	me := describe(msg)
	if me == nil {
		return
	}
	ev := s.event(dir, log.LayerWire, log.CategoryMessage)
	ev.Message = me
	s.c.plog.Log(ev)
}

func (s *session) logHeartbeat(dir log.Direction, t wire.Type, deadline *time.Time) {
	if !s.enabled() {
		return
	}
	ht := log.HeartbeatPing
	if t == wire.TypePong {
		ht = log.HeartbeatPong
	}
	ev := s.event(dir, log.LayerWire, log.CategoryHeartbeat)
	ev.Heartbeat = &log.HeartbeatEvent{Type: ht, Deadline: deadline}
	s.c.plog.Log(ev)
}

func (s *session) logHeartbeatTimeout() {
	if !s.enabled() {
		return
	}
	ev := s.event(log.DirectionIn, log.LayerWire, log.CategoryHeartbeat)
	ev.Heartbeat = &log.HeartbeatEvent{Type: log.HeartbeatTimeout}
	if at, armed := s.hb.Deadline().At(); armed {
		ev.Heartbeat.Deadline = &at
	}
	s.c.plog.Log(ev)
}

func (s *session) logState(oldState, newState, reason string) {
	if !s.enabled() {
		return
	}
	ev := s.event(log.DirectionNone, log.LayerSupervisor, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntitySession,
		OldState: oldState,
		NewState: newState,
		Reason:   reason,
	}
	s.c.plog.Log(ev)
}

// describe summarizes a wire message. The auth secret is never recorded.
func describe(msg any) *log.MessageEvent {
	switch m := msg.(type) {
	case wire.Auth:
		return &log.MessageEvent{Type: string(wire.TypeAuth)}
	case wire.Hello:
		return &log.MessageEvent{Type: string(wire.TypeHello)}
	case wire.Console:
		return &log.MessageEvent{Type: string(wire.TypeConsole), Level: string(m.Level)}
	case wire.Error:
		return &log.MessageEvent{Type: string(wire.TypeError)}
	case wire.Info:
		return &log.MessageEvent{Type: string(wire.TypeInfo), Level: string(m.Level)}
	case wire.ControlResult:
		ok := m.OK
		return &log.MessageEvent{Type: string(wire.TypeControlResult), RequestID: string(m.ID), OK: &ok}
	case *wire.AuthSuccess:
		return &log.MessageEvent{Type: string(wire.TypeAuthSuccess)}
	case *wire.HelloAck:
		return &log.MessageEvent{Type: string(wire.TypeHelloAck)}
	case *wire.ControlRequest:
		return &log.MessageEvent{Type: string(wire.TypeControlRequest), RequestID: string(m.ID), Action: m.Action}
	case *wire.Unknown:
		return &log.MessageEvent{Type: string(m.Type)}
	default:
		return nil
	}
}
