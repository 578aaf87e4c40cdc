// Package logging provides structured logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for machine parsing
//   - Development: colored console output, debug level
//
// Components take a *zap.Logger; pass logger.Named("registry") or similar so
// log lines carry their origin.
//
// Example Usage:
//
//	logger := logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)
//	defer logger.Sync()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Error("Failed to save index", zap.Error(err))
package logging
