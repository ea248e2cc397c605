//go:build unix

package jobserver

import (
	"context"
	"os"
	"time"

	"golang.org/x/time/rate"

	"jobserver/pkg/logx"
)

// channel is one live attachment to the token pool. The two POSIX
// implementations carry different read-error policies: an inherited pipe
// that fails is a recoverable degradation, a fifo that fails is not.
type channel interface {
	// readToken performs a single non-blocking one-byte read.
	// (false, nil) means no token is available right now.
	readToken() (bool, error)
	// writeToken returns exactly one token byte to the pool.
	writeToken() error
	close() error
	// recoverableRead reports whether a failed read degrades the client to
	// serial execution instead of aborting the process.
	recoverableRead() bool
	String() string
}

// tokenState tracks the protocol position explicitly instead of overloading
// a signed counter the way make-derived clients traditionally do.
type tokenState uint8

const (
	// stateDisabled: no pool attached; Acquire always grants serially.
	stateDisabled tokenState = iota
	// stateAttached: pool attached, implicit token granted but not yet used.
	stateAttached
	// stateIdle: pool attached, every token released.
	stateIdle
	// stateHolding: one or more tokens in use, counted by held.
	stateHolding
)

// Client coordinates with an external jobserver token pool.
//
// One instance per process. The client owns its channel handles exclusively
// and is not safe for concurrent use; the jobserver's cross-process safety
// comes from the atomicity of single-byte pipe reads and writes, not from
// anything in here.
type Client struct {
	log  logx.Logger
	desc Descriptor

	ch     channel
	broken bool

	state tokenState
	held  int // valid when state == stateHolding

	// fatalf reports an unrecoverable protocol failure and is expected not
	// to return. nil means log.Fatal. Tests substitute a recorder.
	fatalf func(msg string, fields ...logx.Field)
}

// New parses a MAKEFLAGS-style string and attaches to the jobserver pool it
// describes, if any.
//
// No descriptor, or one that is unrecognized, leaves the client disabled:
// work proceeds serially and every Acquire succeeds locally (the
// unrecognized case logs a warning). A fifo that cannot be opened, or a
// negative descriptor pair, is fatal: the parent explicitly asked for pool
// coordination and continuing without it would break its concurrency cap.
func New(makeflags string, log logx.Logger) *Client {
	return newClient(makeflags, log, nil)
}

// NewFromEnv builds the client from the MAKEFLAGS environment variable,
// read once.
func NewFromEnv(log logx.Logger) *Client {
	return New(os.Getenv("MAKEFLAGS"), log)
}

func newClient(makeflags string, log logx.Logger, fatalf func(string, ...logx.Field)) *Client {
	c := &Client{log: log, fatalf: fatalf}

	c.desc = ParseMakeflags(makeflags)
	switch c.desc.Kind() {
	case KindNone:
		return c
	case KindUnrecognized:
		c.log.Warn("invalid jobserver value", logx.String("jobserver", c.desc.Raw))
		return c
	case KindPipe:
		ch, err := bindPipe(c.desc.ReadFD, c.desc.WriteFD)
		if err != nil {
			c.fatal("failed to open jobserver", logx.String("jobserver", c.desc.Raw), logx.Err(err))
			return c
		}
		c.ch = ch
	case KindFifo:
		ch, err := bindFifo(c.desc.FifoPath)
		if err != nil {
			c.fatal("failed to open jobserver", logx.String("jobserver", c.desc.Raw), logx.Err(err))
			return c
		}
		c.ch = ch
	}

	c.state = stateAttached
	c.log.Info("using jobserver", logx.String("jobserver", c.desc.Raw))
	return c
}

// Enabled reports whether a token pool is attached.
func (c *Client) Enabled() bool { return c.ch != nil }

// Descriptor returns the parsed pool descriptor, mainly for diagnostics.
func (c *Client) Descriptor() Descriptor { return c.desc }

// Tokens reports the held-token count using the traditional make-client
// convention: -1 attached with the implicit token still unused, 0 disabled
// or fully released, n > 0 tokens in use.
func (c *Client) Tokens() int {
	switch c.state {
	case stateAttached:
		return -1
	case stateHolding:
		return c.held
	default:
		return 0
	}
}

// Acquire obtains permission to run one unit of parallel work. It never
// blocks: false means "no token right now", and the caller retries later or
// runs this unit without extra parallelism.
//
// The first unit of work is implicitly granted without touching the pool,
// as is all work on a disabled or broken client (serial fallback).
func (c *Client) Acquire() bool {
	if c.ch == nil || c.broken || c.state != stateHolding {
		c.state = stateHolding
		c.held = 1
		return true
	}

	ok, err := c.ch.readToken()
	if err != nil {
		c.broken = true
		if c.ch.recoverableRead() {
			// Typical when this process is itself invoked recursively and
			// inherits descriptors that are already closed.
			c.log.Warn("jobserver pipe closed, falling back to serial execution",
				logx.String("jobserver", c.desc.Raw), logx.Err(err))
		} else {
			c.fatal("failed to read from jobserver",
				logx.String("jobserver", c.desc.Raw), logx.Err(err))
		}
		return false
	}
	if ok {
		c.held++
	}
	return ok
}

// Release returns one token. It must be called once for every successful
// Acquire, including on failure and unwind paths. The last token held is
// the implicit one and is never written back; neither is anything written
// on a broken channel.
func (c *Client) Release() {
	switch c.state {
	case stateAttached:
		// Released before any explicit acquire: normalize only.
		c.state = stateIdle
		return
	case stateDisabled, stateIdle:
		return
	}

	c.held--
	if c.held == 0 {
		c.state = stateIdle
		return
	}
	if c.broken {
		return
	}

	if err := c.ch.writeToken(); err != nil {
		// Never downgraded: a token silently lost corrupts the shared
		// pool count for every cooperating process.
		c.fatal("failed to write to jobserver",
			logx.String("jobserver", c.desc.Raw), logx.Err(err))
	}
}

// Clear drains every held token back to the pool. Call it on every exit
// path, before handles are closed; tokens held by a dead process are leaked
// from the pool's point of view.
func (c *Client) Clear() {
	for c.state == stateAttached || c.state == stateHolding {
		c.Release()
	}
}

// Close drains held tokens and closes the channel handles. Subsequent calls
// are no-ops.
func (c *Client) Close() error {
	c.Clear()
	if c.ch == nil {
		return nil
	}
	err := c.ch.close()
	c.ch = nil
	c.state = stateDisabled
	return err
}

// waitPoll paces WaitAcquire retries. 10ms keeps worst-case token latency
// well under human-visible build stalls without spinning on a contended
// pool.
const waitPoll = 10 * time.Millisecond

// WaitAcquire polls Acquire until a token is granted or ctx is done. The
// core protocol is strictly non-blocking; this is a convenience for
// schedulers with nothing better to do than wait.
func (c *Client) WaitAcquire(ctx context.Context) error {
	lim := rate.NewLimiter(rate.Every(waitPoll), 1)
	for {
		if c.Acquire() {
			return nil
		}
		if err := lim.Wait(ctx); err != nil {
			// The limiter fails fast once the next poll cannot finish
			// before the deadline, with an error of its own. Callers match
			// on context.DeadlineExceeded/Canceled, so wait out the context
			// and report its error instead.
			<-ctx.Done()
			return ctx.Err()
		}
	}
}

func (c *Client) fatal(msg string, fields ...logx.Field) {
	if c.fatalf != nil {
		c.fatalf(msg, fields...)
		return
	}
	c.log.Fatal(msg, fields...)
}
