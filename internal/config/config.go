// Package config loads CLI settings from YAML or TOML files and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/aria-bridge/bridge-go/pkg/bridge"
)

// Environment overrides, applied after the file.
const (
	EnvURL       = "ARIA_BRIDGE_URL"
	EnvSecret    = "ARIA_BRIDGE_SECRET"
	EnvProjectID = "ARIA_BRIDGE_PROJECT_ID"
)

// ErrUnknownFormat is returned for files that are neither YAML nor TOML.
var ErrUnknownFormat = errors.New("config: unknown file format")

// Format is a config file syntax.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Settings is everything the CLI needs to run a client.
type Settings struct {
	Bridge bridge.Config

	// MetricsAddr serves /metrics when set.
	MetricsAddr string

	// ProtocolLog is a .blog file path that receives protocol events.
	ProtocolLog string

	LogLevel slog.Level
}

// Default returns settings with bridge defaults.
func Default() Settings {
	return Settings{Bridge: bridge.DefaultConfig(), LogLevel: slog.LevelInfo}
}

// File mirrors the on-disk layout. Absent keys leave defaults untouched.
// Durations use Go syntax ("15s", "500ms").
type File struct {
	URL               *string  `yaml:"url" toml:"url"`
	Secret            *string  `yaml:"secret" toml:"secret"`
	ProjectID         *string  `yaml:"project_id" toml:"project_id"`
	Capabilities      []string `yaml:"capabilities" toml:"capabilities"`
	HeartbeatInterval *string  `yaml:"heartbeat_interval" toml:"heartbeat_interval"`
	HeartbeatTimeout  *string  `yaml:"heartbeat_timeout" toml:"heartbeat_timeout"`
	BufferLimit       *int     `yaml:"buffer_limit" toml:"buffer_limit"`
	BackoffInitial    *string  `yaml:"backoff_initial" toml:"backoff_initial"`
	BackoffMax        *string  `yaml:"backoff_max" toml:"backoff_max"`
	HandshakeTimeout  *string  `yaml:"handshake_timeout" toml:"handshake_timeout"`
	MetricsAddr       *string  `yaml:"metrics_addr" toml:"metrics_addr"`
	ProtocolLog       *string  `yaml:"protocol_log" toml:"protocol_log"`
	LogLevel          *string  `yaml:"log_level" toml:"log_level"`
}

// Load reads path (if non-empty), applies the environment and validates
// the bridge configuration.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		f, err := ReadFile(path)
		if err != nil {
			return Settings{}, err
		}
		if err := f.Apply(&s); err != nil {
			return Settings{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	ApplyEnv(&s, os.LookupEnv)
	if err := s.Bridge.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ReadFile decodes the file at path.
func ReadFile(path string) (File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return File{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	f, err := Decode(data, format)
	if err != nil {
		return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return f, nil
}

// Decode parses data. Unknown keys are errors in both formats.
func Decode(data []byte, format Format) (File, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return File{}, err
		}
	case FormatTOML:
		meta, err := toml.Decode(string(data), &f)
		if err != nil {
			return File{}, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return File{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
	default:
		return File{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return f, nil
}

// Apply copies the keys present in f onto s.
func (f File) Apply(s *Settings) error {
	setString(&s.Bridge.URL, f.URL)
	setString(&s.Bridge.Secret, f.Secret)
	setString(&s.Bridge.ProjectID, f.ProjectID)
	setString(&s.MetricsAddr, f.MetricsAddr)
	setString(&s.ProtocolLog, f.ProtocolLog)
	if f.Capabilities != nil {
		s.Bridge.Capabilities = append([]string(nil), f.Capabilities...)
	}
	if f.BufferLimit != nil {
		s.Bridge.BufferLimit = *f.BufferLimit
	}

	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"heartbeat_interval", f.HeartbeatInterval, &s.Bridge.HeartbeatInterval},
		{"heartbeat_timeout", f.HeartbeatTimeout, &s.Bridge.HeartbeatTimeout},
		{"backoff_initial", f.BackoffInitial, &s.Bridge.BackoffInitial},
		{"backoff_max", f.BackoffMax, &s.Bridge.BackoffMax},
		{"handshake_timeout", f.HandshakeTimeout, &s.Bridge.HandshakeTimeout},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(*d.src))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if f.LogLevel != nil {
		if err := s.LogLevel.UnmarshalText([]byte(strings.TrimSpace(*f.LogLevel))); err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
	}
	return nil
}

// ApplyEnv applies the environment overrides found by lookup.
func ApplyEnv(s *Settings, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvURL); ok && v != "" {
		s.Bridge.URL = v
	}
	if v, ok := lookup(EnvSecret); ok {
		s.Bridge.Secret = v
	}
	if v, ok := lookup(EnvProjectID); ok {
		s.Bridge.ProjectID = v
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
