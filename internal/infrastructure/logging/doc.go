// Package logging provides structured logging for the doorduino gateway.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the gateway's loops.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "syslog"   # stdout, stderr, syslog
//	  syslog_tag: "doorduino"
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("serial connected", "device", "/dev/ttyACM0")
//
// Never log button secrets. Button IDs are fine, they are printed on the fob.
package logging
