package control

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aria-bridge/bridge-go/pkg/wire"
)

// replies collects results sent by the plane.
type replies struct {
	mu      sync.Mutex
	results []wire.ControlResult
	err     error
}

func (r *replies) send(res wire.ControlResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return r.err
}

func (r *replies) all() []wire.ControlResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wire.ControlResult(nil), r.results...)
}

func encode(t *testing.T, res wire.ControlResult) map[string]any {
	t.Helper()
	data, err := wire.Encode(res)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func echoHandler() Handler {
	return HandlerFunc(func(_ context.Context, req Request) (any, error) {
		switch req.Action {
		case "fail":
			return nil, errors.New("nope")
		case "echo":
			var args map[string]any
			if err := req.Bind(&args); err != nil {
				return nil, err
			}
			return map[string]any{"echo": args}, nil
		case "panic":
			panic("boom")
		case "nothing":
			return nil, nil
		case "unencodable":
			return make(chan int), nil
		}
		return nil, errors.New("unknown action " + req.Action)
	})
}

func TestDispatchResults(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want map[string]any
	}{
		{
			name: "Echo",
			req:  Request{ID: json.RawMessage(`"r1"`), Action: "echo", Args: json.RawMessage(`{"value":1}`)},
			want: map[string]any{"type": "control_result", "id": "r1", "ok": true, "result": map[string]any{"echo": map[string]any{"value": float64(1)}}},
		},
		{
			name: "Fail",
			req:  Request{ID: json.RawMessage(`7`), Action: "fail"},
			want: map[string]any{"type": "control_result", "id": float64(7), "ok": false, "error": map[string]any{"message": "nope"}},
		},
		{
			name: "Panic",
			req:  Request{ID: json.RawMessage(`"p"`), Action: "panic"},
			want: map[string]any{"type": "control_result", "id": "p", "ok": false, "error": map[string]any{"message": "handler panic: boom"}},
		},
		{
			name: "NilResult",
			req:  Request{ID: json.RawMessage(`"n"`), Action: "nothing"},
			want: map[string]any{"type": "control_result", "id": "n", "ok": true},
		},
		{
			name: "ObjectID",
			req:  Request{ID: json.RawMessage(`{"seq":3}`), Action: "nothing"},
			want: map[string]any{"type": "control_result", "id": map[string]any{"seq": float64(3)}, "ok": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlane()
			p.SetHandler(echoHandler())
			r := &replies{}

			require.True(t, p.Dispatch(context.Background(), tt.req, r.send))
			p.Wait()

			got := r.all()
			require.Len(t, got, 1, "exactly one result per request")
			assert.Equal(t, tt.want, encode(t, got[0]))
		})
	}
}

func TestDispatchUnencodableResult(t *testing.T) {
	p := NewPlane()
	p.SetHandler(echoHandler())
	r := &replies{}

	p.Dispatch(context.Background(), Request{ID: json.RawMessage(`1`), Action: "unencodable"}, r.send)
	p.Wait()

	got := r.all()
	require.Len(t, got, 1)
	assert.False(t, got[0].OK)
	assert.Contains(t, got[0].Error.Message, "encode result")
}

func TestDispatchWithoutHandler(t *testing.T) {
	var outcomes []Outcome
	p := NewPlane(WithObserver(func(o Outcome) { outcomes = append(outcomes, o) }))
	r := &replies{}

	assert.False(t, p.Dispatch(context.Background(), Request{ID: json.RawMessage(`1`), Action: "x"}, r.send))
	p.Wait()

	assert.Empty(t, r.all())
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].ReplyErr, ErrNoHandler)
}

func TestSetHandlerReplaces(t *testing.T) {
	p := NewPlane()
	assert.Nil(t, p.Handler())

	first := HandlerFunc(func(context.Context, Request) (any, error) { return "first", nil })
	second := HandlerFunc(func(context.Context, Request) (any, error) { return "second", nil })

	p.SetHandler(first)
	p.SetHandler(second)
	r := &replies{}
	p.Dispatch(context.Background(), Request{ID: json.RawMessage(`1`)}, r.send)
	p.Wait()
	require.Len(t, r.all(), 1)
	assert.Equal(t, json.RawMessage(`"second"`), r.all()[0].Result)

	p.SetHandler(nil)
	assert.Nil(t, p.Handler())
}

func TestDispatchDoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	p := NewPlane()
	p.SetHandler(HandlerFunc(func(ctx context.Context, _ Request) (any, error) {
		<-release
		return "done", nil
	}))
	r := &replies{}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			p.Dispatch(context.Background(), Request{ID: json.RawMessage(`1`)}, r.send)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a slow handler")
	}
	assert.Equal(t, 3, p.InFlight())

	close(release)
	p.Wait()
	assert.Equal(t, 0, p.InFlight())
	assert.Len(t, r.all(), 3)
}

func TestCancelledContextReachesHandler(t *testing.T) {
	p := NewPlane()
	p.SetHandler(HandlerFunc(func(ctx context.Context, _ Request) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	r := &replies{}

	ctx, cancel := context.WithCancel(context.Background())
	p.Dispatch(ctx, Request{ID: json.RawMessage(`"c"`), Action: "wait"}, r.send)
	cancel()
	p.Wait()

	got := r.all()
	require.Len(t, got, 1)
	assert.False(t, got[0].OK)
	assert.Equal(t, context.Canceled.Error(), got[0].Error.Message)
}

func TestObserverSeesReplyFailure(t *testing.T) {
	var mu sync.Mutex
	var outcomes []Outcome
	p := NewPlane(WithObserver(func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}))
	p.SetHandler(echoHandler())
	r := &replies{err: errors.New("transport closed")}

	p.Dispatch(context.Background(), Request{ID: json.RawMessage(`1`), Action: "panic"}, r.send)
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "panic", outcomes[0].Action)
	assert.True(t, outcomes[0].Panicked)
	assert.False(t, outcomes[0].OK)
	assert.Error(t, outcomes[0].ReplyErr)
}

func TestRequestBind(t *testing.T) {
	var v struct{ N int }
	require.NoError(t, Request{}.Bind(&v))
	require.NoError(t, Request{Args: json.RawMessage(`null`)}.Bind(&v))
	require.NoError(t, Request{Args: json.RawMessage(`{"N":4}`)}.Bind(&v))
	assert.Equal(t, 4, v.N)
	assert.Error(t, Request{Action: "x", Args: json.RawMessage(`[`)}.Bind(&v))

	req := NewRequest(&wire.ControlRequest{ID: json.RawMessage(`5`), Action: "a", Args: json.RawMessage(`{}`)})
	assert.Equal(t, "a", req.Action)
	assert.Equal(t, json.RawMessage(`5`), req.ID)
}

func TestWaitUntilAbandonsHungHandler(t *testing.T) {
	p := NewPlane()
	release := make(chan struct{})
	p.SetHandler(HandlerFunc(func(context.Context, Request) (any, error) {
		<-release
		return "late", nil
	}))
	r := &replies{}

	assert.True(t, p.WaitUntil(nil), "idle plane returns at once")

	ctx, cancel := context.WithCancel(context.Background())
	p.Dispatch(ctx, Request{ID: json.RawMessage(`1`), Action: "hang"}, r.send)
	cancel()

	deadline := make(chan time.Time, 1)
	deadline <- time.Now()
	assert.False(t, p.WaitUntil(deadline))
	assert.Equal(t, 1, p.InFlight())

	// A later dispatch is tracked alongside the abandoned one.
	p.SetHandler(echoHandler())
	p.Dispatch(context.Background(), Request{ID: json.RawMessage(`2`), Action: "echo"}, r.send)

	close(release)
	assert.True(t, p.WaitUntil(time.After(time.Second)))
	assert.Equal(t, 0, p.InFlight())
	assert.Len(t, r.all(), 2)
}
