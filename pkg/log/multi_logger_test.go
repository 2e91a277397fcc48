package log

import (
	"sync"
	"testing"
	"time"
)

// recordingLogger records events for testing.
type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestMultiLoggerCallsAll(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	multi := NewMultiLogger(a, nil, b)

	if multi.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (nil skipped)", multi.Len())
	}

	multi.Log(Event{Timestamp: time.Now(), SessionID: "s-1"})

	for i, r := range []*recordingLogger{a, b} {
		if len(r.events) != 1 || r.events[0].SessionID != "s-1" {
			t.Errorf("logger %d: events = %v", i, r.events)
		}
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	// Should not panic.
	NewMultiLogger().Log(Event{})
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	r := &recordingLogger{}
	if OrNoop(r) != Logger(r) {
		t.Error("OrNoop should return the logger it was given")
	}
	NoopLogger{}.Log(Event{})
}
