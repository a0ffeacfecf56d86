// Package logging provides structured logging for lifxlab.
//
// This package wraps a global zap logger with convenience functions used by
// the protocol, transport, discovery and server packages. Logging is silent
// until Initialize is called with a level or LIFXLAB_LOG_LEVEL is set, so
// the CLI prints only its own output by default.
//
// # Log Levels
//
//   - Debug: hex dumps of datagrams, decoded frames, skipped replies
//   - Info: discovery cycles, dispatch summaries, server lifecycle
//   - Warn: per-device send failures, malformed replies
//   - Error: socket failures, server errors
//
// # Usage
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
//	logging.Info("Device discovered",
//	    zap.String("target", target.String()),
//	    zap.String("addr", addr.String()),
//	)
//
// Logs go to stderr so they never interleave with CLI results on stdout.
package logging
