package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Codec errors.
var (
	ErrMissingType = errors.New("wire: missing type")
	ErrNotObject   = errors.New("wire: frame is not a JSON object")
)

type envelope struct {
	Type Type `json:"type"`
}

// Encode encodes a message to a JSON text frame.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// PeekType returns the type discriminator of a frame without decoding the rest.
func PeekType(data []byte) (Type, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "" {
			return "", ErrNotObject
		}
		return "", fmt.Errorf("wire: decode envelope: %w", err)
	}
	if env.Type == "" {
		return "", ErrMissingType
	}
	return env.Type, nil
}

// Decode decodes an inbound frame into its typed message.
//
// Returned values are *AuthSuccess, *HelloAck, *Heartbeat (ping or pong),
// *ControlRequest, or *Unknown for any other well-formed type. Client-bound
// event types (console, error, info) and client-originated handshake types
// decode as *Unknown.
func Decode(data []byte) (any, error) {
	typ, err := PeekType(data)
	if err != nil {
		return nil, err
	}

	var msg any
	switch typ {
	case TypeAuthSuccess:
		msg = &AuthSuccess{}
	case TypeHelloAck:
		msg = &HelloAck{}
	case TypePing, TypePong:
		msg = &Heartbeat{}
	case TypeControlRequest:
		msg = &ControlRequest{}
	default:
		return &Unknown{Type: typ, Raw: append(json.RawMessage(nil), data...)}, nil
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("wire: decode %s: %w", typ, err)
	}
	return msg, nil
}
