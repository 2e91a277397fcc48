// Package commands implements the protocol log subcommands of ariabridge.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aria-bridge/bridge-go/pkg/log"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	SessionID string
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		SessionID: f.SessionID,
		Layer:     f.Layer,
		Direction: f.Direction,
		Category:  f.Category,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format(timeLayout)
	fmt.Fprintf(w, "%s [session:%s] %-3s %s %s\n",
		ts, shortenID(event.SessionID), event.Direction.String(), event.Layer.String(), typeLabel(event))

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.Heartbeat != nil:
		formatHeartbeatDetails(w, event.Heartbeat)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

func typeLabel(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Message != nil:
		return event.Message.Type
	case event.Heartbeat != nil:
		return event.Heartbeat.Type.String()
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of a session ID.
func shortenID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) == 0 {
		return
	}
	// Frames are JSON text; anything else is shown quoted.
	data := string(frame.Data)
	if !utf8.ValidString(data) {
		data = strconv.Quote(data)
	}
	fmt.Fprintf(w, "  Data: %s", data)
	if frame.Truncated {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	if msg.RequestID != "" {
		fmt.Fprintf(w, "  ID: %s\n", msg.RequestID)
	}
	if msg.Action != "" {
		fmt.Fprintf(w, "  Action: %s\n", msg.Action)
	}
	if msg.Level != "" {
		fmt.Fprintf(w, "  Level: %s\n", msg.Level)
	}
	if msg.OK != nil {
		fmt.Fprintf(w, "  OK: %t\n", *msg.OK)
	}
	if msg.HandlerTime != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(*msg.HandlerTime))
	}
}

func formatHeartbeatDetails(w io.Writer, hb *log.HeartbeatEvent) {
	if hb.Deadline != nil {
		fmt.Fprintf(w, "  Deadline: %s\n", hb.Deadline.UTC().Format(timeLayout))
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Stage != "" {
		fmt.Fprintf(w, "  Stage: %s\n", err.Stage)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayer parses a layer name (case-insensitive).
func ParseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "supervisor":
		return log.LayerSupervisor, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or supervisor)", s)
	}
}

// ParseDirection parses a direction name (case-insensitive).
func ParseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "none", "-":
		return log.DirectionNone, nil
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in, out or none)", s)
	}
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "heartbeat":
		return log.CategoryHeartbeat, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, heartbeat, state, or error)", s)
	}
}

// RunView prints every event matching filter.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
