//go:build unix

package jobserver

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"
)

// tokenByte is what Release writes back to the pool. The pool does not
// interpret token contents; '+' matches what GNU make itself writes.
const tokenByte = '+'

// readByte reads one byte from fd, retrying interrupted calls.
func readByte(fd int) (int, error) {
	var b [1]byte
	for {
		n, err := unix.Read(fd, b[:])
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// writeByte writes one byte to fd, retrying interrupted calls.
func writeByte(fd int, b byte) (int, error) {
	buf := [1]byte{b}
	for {
		n, err := unix.Write(fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// closeFDs closes every fd that is still open, keeping the first error.
func closeFDs(fds ...*int) error {
	var first error
	for _, fd := range fds {
		if *fd < 0 {
			continue
		}
		if err := unix.Close(*fd); err != nil && first == nil {
			first = err
		}
		*fd = -1
	}
	return first
}

// ---- Descriptor-pair pool ("R,W") ----

type pipeChannel struct {
	rfd, wfd int
}

// bindPipe adopts two descriptors already opened by the parent process.
// The read side is switched to non-blocking so Acquire's single read can
// never stall the scheduler. O_NONBLOCK lives on the shared open file
// description, which the cooperating-make protocol tolerates: every
// conforming client handles EAGAIN on the pool.
func bindPipe(rfd, wfd int) (*pipeChannel, error) {
	if rfd < 0 || wfd < 0 {
		return nil, fmt.Errorf("invalid descriptor pair %d,%d", rfd, wfd)
	}
	// Best effort: a stale descriptor surfaces lazily on the first read.
	_ = unix.SetNonblock(rfd, true)
	return &pipeChannel{rfd: rfd, wfd: wfd}, nil
}

func (c *pipeChannel) readToken() (bool, error) {
	n, err := readByte(c.rfd)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// n == 0 is EOF: all writers gone. Reported as "no token", same as the
	// would-block case; the scheduler keeps its implicit token.
	return n > 0, nil
}

func (c *pipeChannel) writeToken() error {
	n, err := writeByte(c.wfd, tokenByte)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("short write (%d bytes)", n)
	}
	return nil
}

func (c *pipeChannel) close() error { return closeFDs(&c.rfd, &c.wfd) }

func (c *pipeChannel) recoverableRead() bool { return true }

func (c *pipeChannel) String() string {
	return strconv.Itoa(c.rfd) + "," + strconv.Itoa(c.wfd)
}

// ---- Named-pipe pool ("fifo:<path>") ----

type fifoChannel struct {
	path     string
	rfd, wfd int
}

// bindFifo opens the fifo twice: non-blocking for reads, blocking for
// writes. Read first: a fifo opened O_WRONLY blocks until a reader exists,
// and our own read side satisfies that. There is no eager usability probe;
// a fifo whose far end is already gone is only detected by the first
// failing operation.
func bindFifo(path string) (*fifoChannel, error) {
	rfd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %q for read: %w", path, err)
	}
	wfd, err := unix.Open(path, unix.O_WRONLY, 0)
	if err != nil {
		_ = unix.Close(rfd)
		return nil, fmt.Errorf("open %q for write: %w", path, err)
	}
	return &fifoChannel{path: path, rfd: rfd, wfd: wfd}, nil
}

func (c *fifoChannel) readToken() (bool, error) {
	n, err := readByte(c.rfd)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *fifoChannel) writeToken() error {
	n, err := writeByte(c.wfd, tokenByte)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("short write (%d bytes)", n)
	}
	return nil
}

func (c *fifoChannel) close() error { return closeFDs(&c.rfd, &c.wfd) }

func (c *fifoChannel) recoverableRead() bool { return false }

func (c *fifoChannel) String() string { return fifoPrefix + c.path }
