package connection

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff defaults, matching the bridge host's reconnect guidance.
const (
	// InitialBackoff is the initial reconnection delay.
	InitialBackoff = 1 * time.Second

	// MaxBackoff is the maximum reconnection delay.
	MaxBackoff = 30 * time.Second

	// BackoffMultiplier is the factor by which backoff increases.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of base delay.
	JitterFactor = 0.5
)

// Backoff calculates exponential backoff delays with jitter.
type Backoff struct {
	mu sync.Mutex

	// Current backoff delay (before jitter)
	current time.Duration

	// Configuration
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64

	// Attempt counter
	attempts int

	// Random source for jitter
	rng *rand.Rand
}

// NewBackoff creates a new backoff calculator with default settings.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{})
}

// BackoffConfig allows customizing backoff parameters.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	// Jitter is the upper bound of the random extra delay as a fraction of
	// the base delay. Zero selects JitterFactor; negative disables jitter.
	Jitter float64

	// Source seeds the jitter. Nil uses a time-seeded source.
	Source rand.Source
}

// NewBackoffWithConfig creates a backoff calculator with custom settings.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxBackoff
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = BackoffMultiplier
	}
	switch {
	case cfg.Jitter == 0:
		cfg.Jitter = JitterFactor
	case cfg.Jitter < 0:
		cfg.Jitter = 0
	}
	if cfg.Source == nil {
		cfg.Source = rand.NewSource(time.Now().UnixNano())
	}

	return &Backoff{
		current:    cfg.Initial,
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(cfg.Source),
	}
}

// Next returns the next backoff delay (with jitter) and advances the backoff.
// The returned delay lies in [current, current*(1+jitter)].
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Reset resets the backoff to initial values.
// Call this after a successful handshake.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the number of backoff attempts since last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the current base backoff (without jitter).
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.jitter*b.rng.Float64())
}

// Sequence returns the base delays (without jitter) produced by a backoff
// with the given bounds, stopping at the first value equal to max.
func Sequence(initial, max time.Duration) []time.Duration {
	if initial <= 0 || max < initial {
		return nil
	}
	var out []time.Duration
	for d := initial; ; d *= 2 {
		if d >= max {
			return append(out, max)
		}
		out = append(out, d)
	}
}
