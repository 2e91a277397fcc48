package log

import (
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp: ts,
		SessionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction: DirectionOut,
		Layer:     LayerWire,
		Category:  CategoryMessage,
		Endpoint:  "ws://localhost:9877",
		ClientID:  "client-7",
		ProjectID: "proj",
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.SessionID != original.SessionID {
		t.Errorf("SessionID: got %q, want %q", decoded.SessionID, original.SessionID)
	}
	if decoded.Direction != original.Direction {
		t.Errorf("Direction: got %v, want %v", decoded.Direction, original.Direction)
	}
	if decoded.Layer != original.Layer {
		t.Errorf("Layer: got %v, want %v", decoded.Layer, original.Layer)
	}
	if decoded.Endpoint != original.Endpoint {
		t.Errorf("Endpoint: got %q, want %q", decoded.Endpoint, original.Endpoint)
	}
	if decoded.ClientID != original.ClientID {
		t.Errorf("ClientID: got %q, want %q", decoded.ClientID, original.ClientID)
	}
	if decoded.ProjectID != original.ProjectID {
		t.Errorf("ProjectID: got %q, want %q", decoded.ProjectID, original.ProjectID)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	ok := true
	handler := 1500 * time.Microsecond
	deadline := time.Date(2026, 1, 28, 10, 0, 30, 0, time.UTC)

	tests := []struct {
		name  string
		event Event
		check func(t *testing.T, got Event)
	}{
		{
			name: "Frame",
			event: Event{Frame: &FrameEvent{Size: 256, Data: []byte(`{"type":"ping"}`), Truncated: true}},
			check: func(t *testing.T, got Event) {
				if got.Frame == nil || got.Frame.Size != 256 || !got.Frame.Truncated {
					t.Fatalf("Frame = %+v", got.Frame)
				}
				if string(got.Frame.Data) != `{"type":"ping"}` {
					t.Errorf("Data = %q", got.Frame.Data)
				}
			},
		},
		{
			name: "Message",
			event: Event{Message: &MessageEvent{
				Type: "control_result", RequestID: `"r1"`, Action: "echo", OK: &ok, HandlerTime: &handler,
			}},
			check: func(t *testing.T, got Event) {
				m := got.Message
				if m == nil || m.Type != "control_result" || m.RequestID != `"r1"` || m.Action != "echo" {
					t.Fatalf("Message = %+v", m)
				}
				if m.OK == nil || !*m.OK {
					t.Errorf("OK = %v", m.OK)
				}
				if m.HandlerTime == nil || *m.HandlerTime != handler {
					t.Errorf("HandlerTime = %v", m.HandlerTime)
				}
			},
		},
		{
			name: "StateChange",
			event: Event{StateChange: &StateChangeEvent{
				Entity: StateEntityClient, OldState: "CONNECTED", NewState: "DRAINING", Reason: "heartbeat timeout",
			}},
			check: func(t *testing.T, got Event) {
				sc := got.StateChange
				if sc == nil || sc.Entity != StateEntityClient || sc.OldState != "CONNECTED" ||
					sc.NewState != "DRAINING" || sc.Reason != "heartbeat timeout" {
					t.Errorf("StateChange = %+v", sc)
				}
			},
		},
		{
			name:  "Heartbeat",
			event: Event{Heartbeat: &HeartbeatEvent{Type: HeartbeatPing, Deadline: &deadline}},
			check: func(t *testing.T, got Event) {
				hb := got.Heartbeat
				if hb == nil || hb.Type != HeartbeatPing || hb.Deadline == nil || !hb.Deadline.Equal(deadline) {
					t.Errorf("Heartbeat = %+v", hb)
				}
			},
		},
		{
			name:  "Error",
			event: Event{Error: &ErrorEventData{Layer: LayerSupervisor, Message: "auth timeout", Stage: "auth"}},
			check: func(t *testing.T, got Event) {
				e := got.Error
				if e == nil || e.Layer != LayerSupervisor || e.Message != "auth timeout" || e.Stage != "auth" {
					t.Errorf("Error = %+v", e)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.event.Timestamp = time.Now()
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}
			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionNone.String(), "-"},
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerWire.String(), "WIRE"},
		{LayerSupervisor.String(), "SUPERVISOR"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryHeartbeat.String(), "HEARTBEAT"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{StateEntityClient.String(), "CLIENT"},
		{StateEntitySession.String(), "SESSION"},
		{StateEntityBuffer.String(), "BUFFER"},
		{HeartbeatPing.String(), "PING"},
		{HeartbeatPong.String(), "PONG"},
		{HeartbeatTimeout.String(), "TIMEOUT"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error decoding garbage")
	}
}
