// Package logx configures the jobserver client's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - Diagnostics on stderr, never stdout (stdout belongs to build commands)
//   - A safe no-op zero value for library callers that don't want logs
package logx
