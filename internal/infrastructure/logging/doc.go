// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Both modes write to stderr. The sidecar's stdout is the IPC channel and
// must only ever carry protocol lines.
//
// Example Usage:
//
//	logger, err := logging.New(logging.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	logger.Info("Browser ready", zap.String("url", homeURL))
//	logger.Error("Script load failed", zap.Error(err))
package logging
