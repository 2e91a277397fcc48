// Package outbox holds application events until a live session can send them.
package outbox

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/aria-bridge/bridge-go/pkg/wire"
)

// DefaultLimit is the default buffer capacity.
const DefaultLimit = 200

// DropNoticePrefix starts the message of the coalesced drop notice.
const DropNoticePrefix = "bridge buffered drop count="

// SendFunc delivers one event to the peer.
type SendFunc func(wire.Event) error

// Buffer is a bounded FIFO of pending events. When full, the oldest event is
// dropped and counted; the count is reported once as a single info event after
// the next successful flush.
//
// Buffer is safe for concurrent use. Flushes are serialized with each other,
// so events reach the peer in enqueue order. Enqueue never waits for a flush
// in progress.
type Buffer struct {
	flushMu sync.Mutex

	mu      sync.Mutex
	limit   int
	events  []entry
	seq     uint64
	dropped int
	clock   clockwork.Clock
}

type entry struct {
	seq uint64
	ev  wire.Event
}

// New creates a buffer holding at most limit events.
// A limit below 1 selects DefaultLimit. A nil clock uses the real clock.
func New(limit int, clock clockwork.Clock) *Buffer {
	if limit < 1 {
		limit = DefaultLimit
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Buffer{
		limit:  limit,
		events: make([]entry, 0, limit),
		clock:  clock,
	}
}

// Enqueue appends ev, dropping the oldest event if the buffer is full.
// It reports whether an event was dropped.
func (b *Buffer) Enqueue(ev wire.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := false
	if len(b.events) >= b.limit {
		b.events[0] = entry{}
		b.events = b.events[1:]
		b.dropped++
		dropped = true
	}
	b.seq++
	b.events = append(b.events, entry{seq: b.seq, ev: ev})
	return dropped
}

// Flush sends buffered events in FIFO order and then, if any events were
// dropped since the last successful flush, one drop notice.
//
// A nil send is a no-op (no live transport). If send fails, the failed event
// stays at the head of the buffer, the drop count is kept, and the error is
// returned. Flush returns the number of events delivered, excluding the notice.
// send runs without the buffer lock held.
func (b *Buffer) Flush(send SendFunc) (int, error) {
	if send == nil {
		return 0, nil
	}

	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	sent := 0
	for {
		head, ok := b.head()
		if !ok {
			break
		}
		if err := send(head.ev); err != nil {
			return sent, fmt.Errorf("outbox: flush: %w", err)
		}
		b.pop(head.seq)
		sent++
	}

	b.mu.Lock()
	count := b.dropped
	b.mu.Unlock()

	if count > 0 {
		notice := wire.NewInfo(fmt.Sprintf("%s%d", DropNoticePrefix, count), b.clock.Now())
		if err := send(notice); err != nil {
			return sent, fmt.Errorf("outbox: drop notice: %w", err)
		}
		b.mu.Lock()
		b.dropped -= count
		b.mu.Unlock()
	}

	b.mu.Lock()
	// Reclaim the backing array once drained.
	if len(b.events) == 0 && cap(b.events) > b.limit {
		b.events = make([]entry, 0, b.limit)
	}
	b.mu.Unlock()
	return sent, nil
}

func (b *Buffer) head() (entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return entry{}, false
	}
	return b.events[0], true
}

// pop removes the delivered event seq. If Enqueue already dropped it while
// it was being sent, the drop is uncounted since the peer got it.
func (b *Buffer) pop(seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) > 0 && b.events[0].seq == seq {
		b.events[0] = entry{}
		b.events = b.events[1:]
		return
	}
	b.dropped--
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Dropped returns the number of events dropped since the last reported notice.
func (b *Buffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Limit returns the buffer capacity.
func (b *Buffer) Limit() int {
	return b.limit
}
