// Package logx configures eurobot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional Telegram sink (min-level + rate limiting)
//
// Loggers created from a Service stay live across Service.Apply() calls,
// so levels and sinks can change under config hot-reload without
// re-plumbing component loggers.
package logx
