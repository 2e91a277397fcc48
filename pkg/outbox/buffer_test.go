package outbox

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aria-bridge/bridge-go/pkg/wire"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func console(msg string) wire.Event {
	return wire.NewConsole(wire.LevelInfo, msg, epoch)
}

// collector records sent events and can fail on demand.
type collector struct {
	mu     sync.Mutex
	events []wire.Event
	failAt int // fail the Nth call (1-based); 0 never fails
	calls  int
}

func (c *collector) send(ev wire.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failAt != 0 && c.calls == c.failAt {
		return errors.New("write: broken pipe")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, ev := range c.events {
		switch e := ev.(type) {
		case wire.Console:
			out = append(out, e.Message)
		case wire.Info:
			out = append(out, "info:"+e.Message)
		}
	}
	return out
}

func TestBufferOverflowScenario(t *testing.T) {
	b := New(3, clockwork.NewFakeClockAt(epoch))
	for i := 0; i < 5; i++ {
		b.Enqueue(console(fmt.Sprintf("m%d", i)))
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 2, b.Dropped())

	c := &collector{}
	sent, err := b.Flush(c.send)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, []string{"m2", "m3", "m4", "info:bridge buffered drop count=2"}, c.messages())

	info, ok := c.events[3].(wire.Info)
	require.True(t, ok)
	assert.Equal(t, wire.Timestamp(epoch), info.Timestamp)
	assert.Equal(t, wire.LevelInfo, info.Level)

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Dropped())
}

func TestBufferKeepsLastCapacityEvents(t *testing.T) {
	for capacity := 1; capacity <= 6; capacity++ {
		for n := capacity + 1; n <= capacity+7; n++ {
			t.Run(fmt.Sprintf("C%d_N%d", capacity, n), func(t *testing.T) {
				b := New(capacity, nil)
				for i := 0; i < n; i++ {
					b.Enqueue(console(fmt.Sprintf("e%d", i)))
				}

				c := &collector{}
				_, err := b.Flush(c.send)
				require.NoError(t, err)

				var want []string
				for i := n - capacity; i < n; i++ {
					want = append(want, fmt.Sprintf("e%d", i))
				}
				want = append(want, fmt.Sprintf("info:%s%d", DropNoticePrefix, n-capacity))
				assert.Equal(t, want, c.messages())
			})
		}
	}
}

func TestBufferNoDropNoNotice(t *testing.T) {
	b := New(5, nil)
	b.Enqueue(console("a"))
	b.Enqueue(console("b"))

	c := &collector{}
	_, err := b.Flush(c.send)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.messages())
}

func TestBufferNoticeOnlyOnce(t *testing.T) {
	b := New(1, nil)
	b.Enqueue(console("a"))
	b.Enqueue(console("b"))

	c := &collector{}
	_, err := b.Flush(c.send)
	require.NoError(t, err)
	_, err = b.Flush(c.send)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "info:bridge buffered drop count=1"}, c.messages())
}

func TestBufferFlushWithoutTransport(t *testing.T) {
	b := New(2, nil)
	b.Enqueue(console("a"))

	sent, err := b.Flush(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, b.Len())
}

func TestBufferSendFailureKeepsEvents(t *testing.T) {
	b := New(3, nil)
	for i := 0; i < 4; i++ {
		b.Enqueue(console(fmt.Sprintf("m%d", i)))
	}

	// Second send fails: m1 was delivered, m2 must stay at the head.
	failing := &collector{failAt: 2}
	sent, err := b.Flush(failing.send)
	require.Error(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"m1"}, failing.messages())
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 1, b.Dropped(), "drop count survives a failed flush")

	c := &collector{}
	_, err = b.Flush(c.send)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3", "info:bridge buffered drop count=1"}, c.messages())
}

func TestBufferNoticeFailureKeepsCount(t *testing.T) {
	b := New(1, nil)
	b.Enqueue(console("a"))
	b.Enqueue(console("b"))

	failing := &collector{failAt: 2}
	_, err := b.Flush(failing.send)
	require.Error(t, err)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 1, b.Dropped())

	c := &collector{}
	_, err = b.Flush(c.send)
	require.NoError(t, err)
	assert.Equal(t, []string{"info:bridge buffered drop count=1"}, c.messages())
}

func TestBufferDefaults(t *testing.T) {
	b := New(0, nil)
	assert.Equal(t, DefaultLimit, b.Limit())
}

func TestBufferEnqueueReportsDrop(t *testing.T) {
	b := New(1, nil)
	assert.False(t, b.Enqueue(console("a")))
	assert.True(t, b.Enqueue(console("b")))
	assert.Equal(t, 1, b.Len())

	c := &collector{}
	_, err := b.Flush(c.send)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "info:bridge buffered drop count=1"}, c.messages())
}

func TestBufferConcurrentEnqueueAndFlush(t *testing.T) {
	const producers = 8
	const perProducer = 200

	b := New(50, nil)
	c := &collector{}

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Enqueue(console(fmt.Sprintf("p%d-%04d", p, i)))
				if i%10 == 0 {
					_, _ = b.Flush(c.send)
				}
			}
		}(p)
	}
	wg.Wait()
	_, err := b.Flush(c.send)
	require.NoError(t, err)

	assert.LessOrEqual(t, b.Len(), b.Limit())

	// Delivered plus reported drops accounts for every event exactly once,
	// and each producer's events arrive in order.
	delivered := 0
	reported := 0
	last := make(map[string]string)
	for _, msg := range c.messages() {
		if rest, ok := strings.CutPrefix(msg, "info:"+DropNoticePrefix); ok {
			n, err := strconv.Atoi(rest)
			require.NoError(t, err)
			reported += n
			continue
		}
		delivered++
		producer := msg[:2]
		if prev, ok := last[producer]; ok {
			assert.Less(t, prev, msg, "out of order for %s", producer)
		}
		last[producer] = msg
	}
	assert.Equal(t, producers*perProducer, delivered+reported)
}

func TestEnqueueDoesNotWaitForSlowFlush(t *testing.T) {
	b := New(2, nil)
	b.Enqueue(console("a"))

	inSend := make(chan struct{})
	release := make(chan struct{})
	c := &collector{}
	slow := func(ev wire.Event) error {
		if ev.(wire.Console).Message == "a" {
			close(inSend)
			<-release
		}
		return c.send(ev)
	}

	flushed := make(chan error, 1)
	go func() {
		_, err := b.Flush(slow)
		flushed <- err
	}()
	<-inSend

	enqueued := make(chan struct{})
	go func() {
		b.Enqueue(console("b"))
		b.Enqueue(console("c"))
		close(enqueued)
	}()
	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked behind a flush in progress")
	}

	close(release)
	require.NoError(t, <-flushed)

	// "a" was dropped by the overflow while in flight but still delivered,
	// so no drop is reported.
	assert.Equal(t, []string{"a", "b", "c"}, c.messages())
	assert.Equal(t, 0, b.Dropped())
	assert.Equal(t, 0, b.Len())
}
