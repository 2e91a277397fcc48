package connection

import (
	"math/rand"
	"sync"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		// Expected sequence (without jitter): 1s, 2s, 4s, 8s, 16s, 30s, 30s...
		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			30 * time.Second,
			30 * time.Second, // Should stay at max
		}

		for i, exp := range expected {
			base := b.Current()
			_ = b.Next()

			if base != exp {
				t.Errorf("Attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("JitterWithinBounds", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial: 100 * time.Millisecond,
			Max:     800 * time.Millisecond,
			Source:  rand.NewSource(42),
		})

		for i := 0; i < 20; i++ {
			base := b.Current()
			d := b.Next()
			hi := time.Duration(float64(base) * 1.5)
			if d < base || d > hi {
				t.Errorf("Sample %d: %v out of range [%v, %v]", i, d, base, hi)
			}
		}
	})

	t.Run("JitterVaries", func(t *testing.T) {
		samples := make(map[time.Duration]bool)
		for i := 0; i < 10; i++ {
			b := NewBackoffWithConfig(BackoffConfig{
				Initial: time.Second,
				Source:  rand.NewSource(int64(i)),
			})
			samples[b.Next()] = true
		}
		if len(samples) < 2 {
			t.Error("All jittered samples are identical - jitter may not be working")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()

		for i := 0; i < 5; i++ {
			b.Next()
		}

		if b.Current() <= InitialBackoff {
			t.Error("Backoff should have increased")
		}

		b.Reset()

		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v after reset, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
	})

	t.Run("Attempts", func(t *testing.T) {
		b := NewBackoff()

		if b.Attempts() != 0 {
			t.Errorf("Initial Attempts() = %d, want 0", b.Attempts())
		}

		for i := 1; i <= 5; i++ {
			b.Next()
			if b.Attempts() != i {
				t.Errorf("After %d calls, Attempts() = %d", i, b.Attempts())
			}
		}
	})

	t.Run("CustomConfigNoJitter", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial: 100 * time.Millisecond,
			Max:     500 * time.Millisecond,
			Jitter:  -1,
		})

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond, // Max
			500 * time.Millisecond,
		}

		for i, exp := range expected {
			if got := b.Next(); got != exp {
				t.Errorf("Attempt %d: delay = %v, want %v", i, got, exp)
			}
		}
	})

	t.Run("MaxBelowInitial", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial: 200 * time.Millisecond,
			Max:     100 * time.Millisecond,
			Jitter:  -1,
		})
		if got := b.Next(); got != 200*time.Millisecond {
			t.Errorf("Next() = %v, want 200ms", got)
		}
		if got := b.Current(); got != 200*time.Millisecond {
			t.Errorf("Current() = %v, want 200ms", got)
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		b := NewBackoff()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.Next()
			}()
		}
		wg.Wait()
		if b.Attempts() != 10 {
			t.Errorf("Attempts() = %d, want 10", b.Attempts())
		}
	})
}

func TestSequence(t *testing.T) {
	got := Sequence(time.Second, 30*time.Second)
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if Sequence(0, time.Second) != nil {
		t.Error("expected nil for non-positive initial")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateConnecting, "CONNECTING"},
		{StateAuthenticating, "AUTHENTICATING"},
		{StateHelloPending, "HELLO_PENDING"},
		{StateConnected, "CONNECTED"},
		{StateDraining, "DRAINING"},
		{StateBackoff, "BACKOFF"},
		{StateStopped, "STOPPED"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestTracker(t *testing.T) {
	t.Run("InitialState", func(t *testing.T) {
		tr := NewTracker()
		if tr.State() != StateIdle {
			t.Errorf("State() = %v, want IDLE", tr.State())
		}
	})

	t.Run("Callbacks", func(t *testing.T) {
		tr := NewTracker()

		var mu sync.Mutex
		var transitions [][2]State
		tr.OnStateChange(func(oldState, newState State) {
			mu.Lock()
			transitions = append(transitions, [2]State{oldState, newState})
			mu.Unlock()
		})

		_ = tr.Transition(StateConnecting)
		_ = tr.Transition(StateConnecting) // no-op
		_ = tr.Transition(StateAuthenticating)

		mu.Lock()
		defer mu.Unlock()
		if len(transitions) != 2 {
			t.Fatalf("transitions = %v, want 2 entries", transitions)
		}
		if transitions[0] != [2]State{StateIdle, StateConnecting} {
			t.Errorf("transitions[0] = %v", transitions[0])
		}
		if transitions[1] != [2]State{StateConnecting, StateAuthenticating} {
			t.Errorf("transitions[1] = %v", transitions[1])
		}
	})

	t.Run("StoppedIsTerminal", func(t *testing.T) {
		tr := NewTracker()
		_ = tr.Transition(StateConnected)
		if err := tr.Transition(StateStopped); err != nil {
			t.Fatalf("Transition(STOPPED) = %v", err)
		}
		if err := tr.Transition(StateConnecting); err != ErrStopped {
			t.Errorf("Transition after stop = %v, want ErrStopped", err)
		}
		if tr.State() != StateStopped {
			t.Errorf("State() = %v, want STOPPED", tr.State())
		}
	})
}
