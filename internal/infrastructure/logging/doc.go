// Package logging provides structured logging for the dccutils server.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON or text output
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Host console output: lines routed to the automation context's
//     print surface when the host swallows stdout
//
// # Configuration
//
//	logging:
//	  level: "info"        # debug, info, warn, error
//	  format: "text"       # json, text
//	  output: "stderr"     # stdout, stderr
//	  host_console: false  # print through the host instead
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("listening", "port", 10000)
//	logger.Error("capture failed", "error", err)
package logging
