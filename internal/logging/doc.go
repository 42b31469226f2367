// Package logging provides structured logging for azurctl.
//
// This package wraps the zap logger with convenience functions for
// common logging patterns used throughout the project. It provides both
// general logging functions and specialized functions for wire-protocol
// logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (wire traffic, message decoding)
//   - Info: Normal operations (connections, state changes)
//   - Warn: Non-fatal issues (dropped commands, device errors, retries)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Receiver connected",
//	    zap.String("remote_addr", "192.168.1.100:14999"),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
// Connection Logging:
//
//	logging.LogConnection(remoteAddr, "connected")
//	logging.LogConnection(remoteAddr, "connection_lost")
//
// Wire Traffic Logging:
//
//	logging.LogWireTX(remoteAddr, line)
//	logging.LogWireRX(remoteAddr, chunk)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// CLI commands use InitializeFromEnv, which stays silent unless
// AZURCTL_LOG_LEVEL is set.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
