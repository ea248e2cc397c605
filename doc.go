//go:build unix

// Package jobserver implements the client side of the GNU make jobserver
// protocol on POSIX systems.
//
// # Overview
//
// The jobserver limits parallelism across cooperating build processes by
// handing out tokens from an external pool. The pool is a fifo or a plain
// pipe holding N bytes; each byte is permission to run one parallel job.
// A child that wants to start a job reads one byte from the pool and writes
// it back when the job finishes. The pool itself is created and sized by the
// parent (typically make); this package only attaches to it.
//
// The pool is advertised through the MAKEFLAGS environment variable as
// --jobserver-auth=<val> (or --jobserver-fds=<val> in older versions of
// make), where <val> is either "fifo:<path>" or "<read_fd>,<write_fd>".
//
// # Protocol
//
// Every process is implicitly allowed one unit of work for its own
// invocation: the first Acquire always succeeds without touching the pool,
// and the matching Release never writes a byte back. Beyond that, Acquire
// performs a single non-blocking read (a failed Acquire means "no token
// right now", not an error) and Release writes a single byte. The pool makes
// no ordering promises about which waiting process redeems a freed token.
//
// # Failure model
//
// An unrecognized descriptor disables the client: it falls back to serial
// execution and every Acquire succeeds locally. A descriptor-pair pool whose
// read side fails marks the channel broken and degrades the same way for the
// rest of the process (this is the recursive-invocation case, where the
// inherited descriptors are already closed). A fifo pool that cannot be
// opened or read is fatal, as is any failed release write: a token silently
// lost would corrupt the shared count for every cooperating process.
//
// Call Clear (or Close) on every exit path so held tokens return to the
// pool before the process dies.
package jobserver
