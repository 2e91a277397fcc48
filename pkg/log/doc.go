// Package log provides protocol capture for the bridge client.
//
// Protocol capture is separate from operational logging (slog): it records a
// machine-readable trace of every frame, decoded message, heartbeat and
// state change so a misbehaving session can be replayed after the fact.
//
// # Basic Usage
//
//	// Development: render events through slog
//	client, _ := bridge.New(cfg, bridge.WithProtocolLogger(log.NewSlogAdapter(slog.Default())))
//
//	// Production: append to a CBOR file
//	fl, _ := log.NewFileLogger("/var/log/aria/bridge.blog")
//	client, _ := bridge.New(cfg, bridge.WithProtocolLogger(fl))
//
//	// Both
//	client, _ := bridge.New(cfg, bridge.WithProtocolLogger(log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()), fl)))
//
// # Event Types
//
//   - Transport: raw text frames (FrameEvent)
//   - Wire: decoded messages (MessageEvent)
//   - Supervisor: state changes (StateChangeEvent)
//
// Heartbeats and errors have dedicated payloads.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with the .blog extension.
// "ariabridge log view" and "ariabridge log stats" read them.
package log
