// Package logging provides the minimal Logger interface used across the
// procedure engine together with its adapters:
//
//   - SlogAdapter wrapping *slog.Logger
//   - ZapAdapter wrapping *zap.Logger
//   - StructuredLogger, a slog based logger with component and session scoping
//   - NoOpLogger for silent operation (tests, library defaults)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(func(o *engine.Options) { o.Logger = logger })
//
// All methods take key/value pairs in slog style.
package logging
