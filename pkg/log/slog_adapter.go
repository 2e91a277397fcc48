package log

import (
	"context"
	"log/slog"
)

// SlogAdapter renders protocol events through an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter. A nil logger uses slog.Default().
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Log writes the event as one structured record.
func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", event.ClientID))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		m := event.Message
		attrs = append(attrs, slog.String("msg_type", m.Type))
		if m.RequestID != "" {
			attrs = append(attrs, slog.String("request_id", m.RequestID))
		}
		if m.Action != "" {
			attrs = append(attrs, slog.String("action", m.Action))
		}
		if m.Level != "" {
			attrs = append(attrs, slog.String("level", m.Level))
		}
		if m.OK != nil {
			attrs = append(attrs, slog.Bool("ok", *m.OK))
		}
		if m.HandlerTime != nil {
			attrs = append(attrs, slog.Duration("handler_time", *m.HandlerTime))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Heartbeat != nil:
		attrs = append(attrs, slog.String("hb_type", event.Heartbeat.Type.String()))
		if event.Heartbeat.Deadline != nil {
			attrs = append(attrs, slog.Time("deadline", *event.Heartbeat.Deadline))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Stage != "" {
			attrs = append(attrs, slog.String("stage", event.Error.Stage))
		}
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(ctx, slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
