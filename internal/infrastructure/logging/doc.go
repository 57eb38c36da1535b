// Package logging provides structured logging for the Insteon bridge.
//
// It wraps log/slog so every component logs the same way:
//
//   - JSON output for production, text output for development
//   - service and version fields on every entry
//   - level filtering (debug, info, warn, error)
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Never log hub passwords or MQTT credentials.
package logging
