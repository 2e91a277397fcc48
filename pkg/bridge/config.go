package bridge

import (
	"fmt"
	"net/url"
	"time"

	"github.com/aria-bridge/bridge-go/pkg/connection"
	"github.com/aria-bridge/bridge-go/pkg/outbox"
	"github.com/aria-bridge/bridge-go/pkg/transport"
	"github.com/aria-bridge/bridge-go/pkg/wire"
)

// Defaults.
const (
	DefaultURL              = "ws://localhost:9877"
	DefaultHandshakeTimeout = 5 * time.Second

	// DefaultDrainTimeout bounds how long session teardown waits for
	// running control handlers.
	DefaultDrainTimeout = 5 * time.Second
)

// DefaultCapabilities are announced in hello when none are configured.
var DefaultCapabilities = []string{"console", "error"}

// Config configures a Client. It is copied by New and never changed after.
type Config struct {
	// URL is the host endpoint (ws:// or wss://).
	URL string

	// Secret is the shared secret sent in auth and in the upgrade header.
	Secret string

	// ProjectID is announced in hello. Empty is sent as null.
	ProjectID string

	// Capabilities are announced in hello.
	Capabilities []string

	// Platform is announced in hello.
	Platform string

	// HeartbeatInterval is the ping period.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is the pong deadline. It also bounds the wait for
	// auth_success. Must exceed HeartbeatInterval.
	HeartbeatTimeout time.Duration

	// BufferLimit is the outbound buffer capacity.
	BufferLimit int

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// HandshakeTimeout bounds the WebSocket dial and upgrade.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig() Config {
	return Config{
		URL:               DefaultURL,
		Capabilities:      append([]string(nil), DefaultCapabilities...),
		Platform:          wire.PlatformGo,
		HeartbeatInterval: transport.DefaultPingInterval,
		HeartbeatTimeout:  transport.DefaultPongTimeout,
		BufferLimit:       outbox.DefaultLimit,
		BackoffInitial:    connection.InitialBackoff,
		BackoffMax:        connection.MaxBackoff,
		HandshakeTimeout:  DefaultHandshakeTimeout,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.Capabilities == nil {
		c.Capabilities = d.Capabilities
	} else {
		c.Capabilities = append([]string(nil), c.Capabilities...)
	}
	if c.Platform == "" {
		c.Platform = d.Platform
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if c.BufferLimit == 0 {
		c.BufferLimit = d.BufferLimit
	}
	if c.BackoffInitial == 0 {
		c.BackoffInitial = d.BackoffInitial
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	return c
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: url scheme must be ws or wss, got %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url has no host", ErrInvalidConfig)
	}
	hb := transport.HeartbeatConfig{Interval: c.HeartbeatInterval, Timeout: c.HeartbeatTimeout}
	if err := hb.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.BufferLimit < 1 {
		return fmt.Errorf("%w: buffer limit must be at least 1, got %d", ErrInvalidConfig, c.BufferLimit)
	}
	if c.BackoffInitial <= 0 {
		return fmt.Errorf("%w: initial backoff must be positive", ErrInvalidConfig)
	}
	if c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("%w: max backoff %v below initial %v", ErrInvalidConfig, c.BackoffMax, c.BackoffInitial)
	}
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("%w: handshake timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}
