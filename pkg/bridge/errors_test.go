package bridge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectError(t *testing.T) {
	err := &ConnectError{Stage: StageAuth, Kind: KindTimeout, Err: ErrAuthTimeout}
	assert.Equal(t, "bridge: auth failed (timeout): bridge: auth timeout", err.Error())
	assert.True(t, errors.Is(err, ErrAuthTimeout))

	wrapped := fmt.Errorf("cycle: %w", err)
	var cerr *ConnectError
	assert.True(t, errors.As(wrapped, &cerr))
	assert.Equal(t, StageAuth, cerr.Stage)
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "transport", KindTransport.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "rejected", KindRejected.String())
	assert.Equal(t, "unknown", ErrorKind(9).String())
}
