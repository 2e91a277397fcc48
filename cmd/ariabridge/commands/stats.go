package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/aria-bridge/bridge-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	MessagesByType    map[string]int
	Sessions          map[string]*SessionStats
	HeartbeatTimeouts int
	ControlFailures   int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single session.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	ClientID  string
	Endpoint  string
}

// Collect aggregates events from reader.
func Collect(reader *log.Reader) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		MessagesByType:    make(map[string]int),
		Sessions:          make(map[string]*SessionStats),
	}

	err := reader.Each(func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if m := event.Message; m != nil {
		s.MessagesByType[m.Type]++
		if m.OK != nil && !*m.OK {
			s.ControlFailures++
		}
	}
	if hb := event.Heartbeat; hb != nil && hb.Type == log.HeartbeatTimeout {
		s.HeartbeatTimeouts++
	}
	if event.Error != nil {
		s.Errors++
	}

	// Supervisor state events carry no session.
	if event.SessionID == "" {
		return
	}
	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}
	if event.ClientID != "" && sess.ClientID == "" {
		sess.ClientID = event.ClientID
	}
	if event.Endpoint != "" && sess.Endpoint == "" {
		sess.Endpoint = event.Endpoint
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats, err := Collect(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Bridge Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerSupervisor} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryHeartbeat, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut, log.DirectionNone} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.MessagesByType) > 0 {
		types := make([]string, 0, len(stats.MessagesByType))
		for t := range stats.MessagesByType {
			types = append(types, t)
		}
		sort.Strings(types)
		fmt.Fprintln(w, "Messages by Type:")
		for _, t := range types {
			fmt.Fprintf(w, "  %-16s %d\n", t+":", stats.MessagesByType[t])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenID(s.id), s.stats.Events, duration)
			if s.stats.ClientID != "" {
				fmt.Fprintf(w, "           Client: %s\n", s.stats.ClientID)
			}
			if s.stats.Endpoint != "" {
				fmt.Fprintf(w, "           Endpoint: %s\n", s.stats.Endpoint)
			}
		}
	}

	if stats.HeartbeatTimeouts > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Heartbeat Timeouts: %d\n", stats.HeartbeatTimeouts)
	}
	if stats.ControlFailures > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Control Failures: %d\n", stats.ControlFailures)
	}
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
