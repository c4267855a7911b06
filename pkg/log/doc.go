// Package log provides structured protocol-event logging for the pairing
// engine.
//
// This package defines the Logger interface and Event types for capturing
// engine-level events (advertisements, handshake steps, session state
// changes, commands, errors). It is separate from operational logging (slog):
// protocol capture provides a machine-readable trace for debugging and
// analysis.
//
// Applications configure capture by handing the engine a Logger:
//
//	// For development: log to console via slog
//	plog := log.NewSlogAdapter(slog.Default())
//
//	// For production: write to a binary file
//	fileLog, _ := log.NewFileLogger("/var/log/nearpair/engine.nplog")
//
//	// Both at once
//	plog = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fileLog)
//
// Log files use CBOR encoding with the .nplog extension.
package log
