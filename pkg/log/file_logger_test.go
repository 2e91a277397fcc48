package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+FileExtension)

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	if err := r.Each(func(e Event) error {
		out = append(out, e)
		return nil
	}); err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	return out
}

func TestFileLoggerCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "bridge.blog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
	if logger.Path() != path {
		t.Errorf("Path() = %q, want %q", logger.Path(), path)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := createTestLogFile(t, []Event{{Timestamp: time.Now(), SessionID: "s-1"}})

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(Event{Timestamp: time.Now(), SessionID: "s-2"})
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	events := readAll(t, r)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].SessionID != "s-1" || events[1].SessionID != "s-2" {
		t.Errorf("order = %q, %q", events[0].SessionID, events[1].SessionID)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "x.blog"))
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(Event{Timestamp: time.Now()})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	// Ignored after close.
	logger.Log(Event{Timestamp: time.Now()})
	if logger.Written() != 1 {
		t.Errorf("Written() = %d, want 1", logger.Written())
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.blog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	const goroutines = 8
	const perGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				logger.Log(Event{Timestamp: time.Now(), Category: CategoryHeartbeat, Heartbeat: &HeartbeatEvent{Type: HeartbeatPing}})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	if n := len(readAll(t, r)); n != goroutines*perGoroutine {
		t.Errorf("read %d events, want %d", n, goroutines*perGoroutine)
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, SessionID: "s-1", Direction: DirectionOut, Layer: LayerWire, Category: CategoryMessage},
		{Timestamp: base.Add(time.Second), SessionID: "s-1", Direction: DirectionIn, Layer: LayerWire, Category: CategoryHeartbeat},
		{Timestamp: base.Add(2 * time.Second), SessionID: "s-2", ClientID: "c-9", Layer: LayerSupervisor, Category: CategoryState},
		{Timestamp: base.Add(3 * time.Second), SessionID: "s-2", Layer: LayerSupervisor, Category: CategoryError},
	}
	path := createTestLogFile(t, events)

	in := DirectionIn
	wireLayer := LayerWire
	stateCat := CategoryState
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"All", Filter{}, 4},
		{"Session", Filter{SessionID: "s-1"}, 2},
		{"Client", Filter{ClientID: "c-9"}, 1},
		{"Direction", Filter{Direction: &in}, 1},
		{"Layer", Filter{Layer: &wireLayer}, 2},
		{"Category", Filter{Category: &stateCat}, 1},
		{"TimeWindow", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"NoMatch", Filter{SessionID: "nope"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer r.Close()

			if got := len(readAll(t, r)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderEOF(t *testing.T) {
	path := createTestLogFile(t, nil)
	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestReaderTruncatedFile(t *testing.T) {
	path := createTestLogFile(t, []Event{{Timestamp: time.Now(), SessionID: "truncate-me"}})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Errorf("Next() error = %v, want decode error", err)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.blog")); err == nil {
		t.Error("expected error for missing file")
	}
}
